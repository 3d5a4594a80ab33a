package worker_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/verbelo/verbelo/internal/adapters/mq/queue"
	"github.com/verbelo/verbelo/internal/adapters/mq/worker"
	"github.com/verbelo/verbelo/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// recordingApplier tracks per-player apply order.
type recordingApplier struct {
	mu    sync.Mutex
	seen  map[string][]string
	fail  map[string]bool
	total int
}

func newRecordingApplier() *recordingApplier {
	return &recordingApplier{
		seen: make(map[string][]string),
		fail: make(map[string]bool),
	}
}

func (a *recordingApplier) Apply(_ context.Context, s worker.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total++
	a.seen[s.PlayerID] = append(a.seen[s.PlayerID], s.SessionID)
	if a.fail[s.SessionID] {
		return errors.New("boom")
	}
	return nil
}

func (a *recordingApplier) snapshot() (int, map[string][]string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string][]string, len(a.seen))
	for k, v := range a.seen {
		out[k] = append([]string(nil), v...)
	}
	return a.total, out
}

func TestPoolProcessesEverything(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(1024))
	applier := newRecordingApplier()

	pool := worker.NewPool(4, q, applier)
	pool.Start(ctx)

	const players = 6
	const perPlayer = 40
	for i := 0; i < perPlayer; i++ {
		for p := 0; p < players; p++ {
			ok := q.Enqueue(ctx, worker.Session{
				SessionID: fmt.Sprintf("p%d-s%d", p, i),
				PlayerID:  "p" + strconv.Itoa(p),
			})
			if !ok {
				t.Fatalf("enqueue failed at p%d i%d", p, i)
			}
		}
	}

	if err := q.Close(); err != nil {
		t.Fatalf("close queue: %v", err)
	}
	pool.Stop()

	total, seen := applier.snapshot()
	if total != players*perPlayer {
		t.Fatalf("want %d applies, got %d", players*perPlayer, total)
	}

	// Per-player submission order survives the shard routing.
	for p := 0; p < players; p++ {
		got := seen["p"+strconv.Itoa(p)]
		if len(got) != perPlayer {
			t.Fatalf("player p%d: want %d sessions, got %d", p, perPlayer, len(got))
		}
		for i, id := range got {
			want := fmt.Sprintf("p%d-s%d", p, i)
			if id != want {
				t.Fatalf("player p%d order broken at %d: got %q", p, i, id)
			}
		}
	}
}

func TestPoolContinuesAfterApplyError(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(16))
	applier := newRecordingApplier()
	applier.fail["bad"] = true

	pool := worker.NewPool(2, q, applier)
	pool.Start(ctx)

	q.Enqueue(ctx, worker.Session{SessionID: "bad", PlayerID: "p1"})
	q.Enqueue(ctx, worker.Session{SessionID: "good", PlayerID: "p1"})

	if err := q.Close(); err != nil {
		t.Fatalf("close queue: %v", err)
	}
	pool.Stop()

	total, seen := applier.snapshot()
	if total != 2 {
		t.Fatalf("want both sessions attempted, got %d", total)
	}
	if got := seen["p1"]; len(got) != 2 || got[1] != "good" {
		t.Fatalf("session after failure not applied: %v", got)
	}
}

func TestPoolStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := queue.NewInMemoryQueue(queue.WithCapacity(16))
	applier := newRecordingApplier()

	pool := worker.NewPool(2, q, applier)
	pool.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after context cancel")
	}
}
