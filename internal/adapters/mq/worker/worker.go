// Package worker runs the shard workers that apply queued sessions.
//
// Sessions are routed to a shard by hashing the player id, so exactly one
// goroutine ever applies sessions for a given player. That preserves the
// submission order per player and rules out lost games_played increments,
// without any cross-player serialization.
package worker

import (
	"context"
	"hash/fnv"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/verbelo/verbelo/internal/domain/model"
	"github.com/verbelo/verbelo/pkg/logger"
	"github.com/verbelo/verbelo/pkg/metrics"
)

const defaultShardBuffer = 256

// Session is what workers read off the queue.
type Session = model.Session

// Applier applies one completed session to the rating state.
type Applier interface {
	Apply(ctx context.Context, s Session) error
}

// Queue defines how the pool receives sessions.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Session
}

// Pool owns the dispatcher and its shard workers.
type Pool struct {
	queue       Queue
	applier     Applier
	shards      []chan Session
	shardBuffer int

	wg     sync.WaitGroup
	logger logger.Logger
}

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithShardBuffer sets the per-shard channel buffer.
func WithShardBuffer(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.shardBuffer = n
		}
	}
}

// NewPool creates a pool with shardCount workers. A non-positive count
// falls back to the CPU count.
func NewPool(shardCount int, queue Queue, applier Applier, opts ...Option) *Pool {
	if shardCount < 1 {
		shardCount = runtime.NumCPU()
	}
	p := &Pool{
		queue:       queue,
		applier:     applier,
		shards:      make([]chan Session, shardCount),
		shardBuffer: defaultShardBuffer,
		logger:      logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the shard workers and the dispatcher.
func (p *Pool) Start(ctx context.Context) {
	for i := range p.shards {
		p.shards[i] = make(chan Session, p.shardBuffer)
		p.wg.Add(1)
		go p.runShard(ctx, i, p.shards[i])
	}
	p.wg.Add(1)
	go p.dispatch(ctx)

	metrics.UpdateWorkerActiveCount(len(p.shards))
}

// Stop waits for the dispatcher and every shard to drain. The session
// queue must be closed first so the dispatcher can exit.
func (p *Pool) Stop() {
	p.wg.Wait()
	metrics.UpdateWorkerActiveCount(0)
}

// dispatch routes sessions to their owning shard. A blocking send keeps
// per-player ordering intact; backpressure surfaces at the queue instead.
func (p *Pool) dispatch(ctx context.Context) {
	defer func() {
		for _, ch := range p.shards {
			close(ch)
		}
		p.wg.Done()
	}()

	in := p.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-in:
			if !ok {
				return
			}
			shard := p.shardFor(s.PlayerID)
			select {
			case p.shards[shard] <- s:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Pool) shardFor(playerID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(playerID))
	return int(h.Sum32() % uint32(len(p.shards)))
}

func (p *Pool) runShard(ctx context.Context, idx int, in <-chan Session) {
	defer p.wg.Done()

	log := p.logger.Named("shard-" + strconv.Itoa(idx))
	for s := range in {
		p.process(ctx, log, s)
	}
}

func (p *Pool) process(ctx context.Context, log logger.Logger, s Session) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := p.applier.Apply(ctx, s); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_error")
		log.Error(ctx, "failed to apply session",
			logger.String("sessionID", s.SessionID),
			logger.String("playerID", s.PlayerID),
			logger.Error(err),
		)
	}
}
