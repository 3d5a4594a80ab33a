package queue_test

import (
	"context"
	"strconv"
	"testing"

	"github.com/verbelo/verbelo/internal/adapters/mq/queue"
)

func session(id string) queue.Session {
	return queue.Session{SessionID: id, PlayerID: "p-" + id}
}

func TestEnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(4))

	if ok := q.Enqueue(ctx, session("a")); !ok {
		t.Fatal("enqueue into empty queue failed")
	}
	if got := q.Len(ctx); got != 1 {
		t.Fatalf("want len 1, got %d", got)
	}

	s := <-q.Dequeue(ctx)
	if s.SessionID != "a" {
		t.Fatalf("want session a, got %q", s.SessionID)
	}
	if got := q.Len(ctx); got != 0 {
		t.Fatalf("want len 0 after dequeue, got %d", got)
	}
}

func TestEnqueueFull(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(2))

	for i := 0; i < 2; i++ {
		if ok := q.Enqueue(ctx, session(strconv.Itoa(i))); !ok {
			t.Fatalf("enqueue %d failed below capacity", i)
		}
	}
	if ok := q.Enqueue(ctx, session("overflow")); ok {
		t.Fatal("enqueue into full queue must report backpressure")
	}
	if got := q.Len(ctx); got != 2 {
		t.Fatalf("full queue length changed: %d", got)
	}
}

func TestOrdering(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(16))

	for i := 0; i < 10; i++ {
		q.Enqueue(ctx, session(strconv.Itoa(i)))
	}
	for i := 0; i < 10; i++ {
		s := <-q.Dequeue(ctx)
		if s.SessionID != strconv.Itoa(i) {
			t.Fatalf("FIFO violated at %d: got %q", i, s.SessionID)
		}
	}
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	q := queue.NewInMemoryQueue(queue.WithCapacity(4))

	q.Enqueue(ctx, session("a"))
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
	if ok := q.Enqueue(ctx, session("b")); ok {
		t.Fatal("enqueue after close must fail")
	}

	// Buffered sessions remain readable, then the channel closes.
	s, ok := <-q.Dequeue(ctx)
	if !ok || s.SessionID != "a" {
		t.Fatalf("want buffered session a, got %q (open=%v)", s.SessionID, ok)
	}
	if _, ok := <-q.Dequeue(ctx); ok {
		t.Fatal("drained closed queue must report closed channel")
	}
}
