// Package service wires the rating model, store, dedupe set, session queue
// and worker shards into the rating engine the transports talk to.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/verbelo/verbelo/internal/adapters/mq/queue"
	"github.com/verbelo/verbelo/internal/adapters/mq/worker"
	"github.com/verbelo/verbelo/internal/adapters/store"
	"github.com/verbelo/verbelo/internal/domain/dedupe"
	"github.com/verbelo/verbelo/internal/domain/model"
	"github.com/verbelo/verbelo/internal/domain/rating"
	"github.com/verbelo/verbelo/pkg/logger"
	"github.com/verbelo/verbelo/pkg/metrics"
)

const (
	defaultQueueSize  = 100_000
	defaultDedupeSize = 50_000
	defaultLockStripe = 256
)

// Result reports the outcome of applying one session.
type Result struct {
	PlayerID    string
	Delta       int
	Points      int
	RankDisplay string
	RankChanged bool
	GamesPlayed int
}

// Stats is the materialized standing of a player.
type Stats struct {
	PlayerID       string
	RankDisplay    string
	Points         int
	GlobalRank     int
	GamesPlayed    int
	ShadowStrength float64
	LastUpdate     time.Time
}

// Leaderboard bundles the neighborhood view and the global top list.
type Leaderboard struct {
	Neighbors []store.Position
	Top       []store.Position
}

// Service owns the rating pipeline. Reads go straight to the store;
// writes are serialized per player, either by the shard workers for
// queued sessions or by the striped locks for direct calls.
type Service struct {
	store   store.Store
	model   *rating.Model
	deduper dedupe.Deduper
	queue   queue.Queue
	pool    *worker.Pool
	locks   *playerLocks

	queueSize  int
	dedupeSize int
	shardCount int

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the rating store backend.
func WithStore(s store.Store) Option {
	return func(svc *Service) {
		if s != nil {
			svc.store = s
		}
	}
}

// WithModel replaces the rating model.
func WithModel(m *rating.Model) Option {
	return func(svc *Service) {
		if m != nil {
			svc.model = m
		}
	}
}

// WithQueueSize bounds the session queue.
func WithQueueSize(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.queueSize = n
		}
	}
}

// WithDedupeSize bounds the dedupe set.
func WithDedupeSize(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.dedupeSize = n
		}
	}
}

// WithShardCount sets the number of worker shards.
func WithShardCount(n int) Option {
	return func(svc *Service) {
		if n > 0 {
			svc.shardCount = n
		}
	}
}

// New creates a Service. Start must be called before use.
func New(opts ...Option) *Service {
	svc := &Service{
		model:      rating.New(),
		queueSize:  defaultQueueSize,
		dedupeSize: defaultDedupeSize,
		locks:      newPlayerLocks(defaultLockStripe),
		logger:     logger.Get().Named("rating-service"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// sessionApplier adapts the service into the worker pool contract.
type sessionApplier struct {
	svc *Service
}

func (a sessionApplier) Apply(ctx context.Context, s worker.Session) error {
	if err := s.Validate(); err != nil {
		metrics.RecordSessionRejected()
		return err
	}
	_, err := a.svc.ApplySession(ctx, s.PlayerID, s.Signals())
	return err
}

// Start builds the pipeline and launches the worker shards.
func (s *Service) Start(ctx context.Context) error {
	if s.started {
		return ErrAlreadyStarted
	}
	if s.store == nil {
		s.store = store.NewMemoryStore()
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.pool = worker.NewPool(s.shardCount, s.queue, sessionApplier{svc: s})
	s.pool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop drains the queue through the workers, then releases the store.
func (s *Service) Stop(ctx context.Context) error {
	if !s.started {
		return ErrNotStarted
	}
	if err := s.queue.Close(); err != nil {
		return fmt.Errorf("close queue: %w", err)
	}
	s.pool.Stop()
	s.started = false

	s.logger.Info(ctx, "rating service stopped")
	return s.store.Close()
}

// defaultRecord is the standing of a player never seen before.
func (s *Service) defaultRecord(playerID string) store.Record {
	return store.Record{
		PlayerID:       playerID,
		Points:         0,
		Grade:          s.model.GradeFor(0),
		ShadowStrength: s.model.Baseline(),
		GamesPlayed:    0,
	}
}

// ApplySession scores one completed session and commits the new standing.
// Updates for the same player never interleave; the delta is computed
// against the shadow strength the save is based on.
func (s *Service) ApplySession(ctx context.Context, playerID string, sig rating.Signals) (Result, error) {
	session := model.Session{
		PlayerID:   playerID,
		Accuracy:   sig.Accuracy,
		Attempts:   sig.Attempts,
		TimeTaken:  sig.TimeTaken,
		Difficulty: sig.Difficulty,
	}
	if err := session.Validate(); err != nil {
		metrics.RecordSessionRejected()
		return Result{}, err
	}

	mu := s.locks.acquire(playerID)
	defer mu.Unlock()

	rec, err := s.store.Load(ctx, playerID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Result{}, fmt.Errorf("load standing: %w", err)
		}
		rec = s.defaultRecord(playerID)
	}

	score := s.model.PerformanceScore(sig)
	delta := s.model.PointDelta(sig, rec.ShadowStrength)

	points := rec.Points + delta
	if points < 0 {
		points = 0
	}
	grade := s.model.GradeFor(points)
	changed := grade != rec.Grade

	rec.Points = points
	rec.Grade = grade
	rec.ShadowStrength = s.model.NextShadowStrength(rec.ShadowStrength, score)

	saved, err := s.store.Save(ctx, rec)
	if err != nil {
		return Result{}, fmt.Errorf("save standing: %w", err)
	}

	metrics.RecordSessionApplied()
	metrics.ObservePointDelta(float64(delta))
	metrics.ObservePerformanceScore(score)
	if changed {
		metrics.RecordRankChange()
	}

	s.logger.Debug(ctx, "session applied",
		logger.String("playerID", playerID),
		logger.Int("delta", delta),
		logger.Int("points", points),
		logger.String("grade", grade.String()),
		logger.Bool("rankChanged", changed),
	)

	return Result{
		PlayerID:    playerID,
		Delta:       delta,
		Points:      saved.Points,
		RankDisplay: saved.Grade.String(),
		RankChanged: changed,
		GamesPlayed: saved.GamesPlayed,
	}, nil
}

// GetStats returns the player's standing, materializing a default record
// for first-time lookups. Materialization does not count as a game.
func (s *Service) GetStats(ctx context.Context, playerID string) (Stats, error) {
	if playerID == "" {
		return Stats{}, fmt.Errorf("%w: missing player id", model.ErrInvalidSignals)
	}

	rec, err := s.store.Ensure(ctx, playerID, s.defaultRecord(playerID))
	if err != nil {
		return Stats{}, fmt.Errorf("ensure standing: %w", err)
	}
	pos, err := s.store.GlobalRank(ctx, playerID)
	if err != nil {
		return Stats{}, fmt.Errorf("global rank: %w", err)
	}

	return Stats{
		PlayerID:       playerID,
		RankDisplay:    rec.Grade.String(),
		Points:         rec.Points,
		GlobalRank:     pos,
		GamesPlayed:    rec.GamesPlayed,
		ShadowStrength: rec.ShadowStrength,
		LastUpdate:     rec.LastUpdate,
	}, nil
}

// GetLeaderboard composes the window around playerID with the global
// top-n list. A topN below 1 skips the top list. It is a pure read;
// unknown players surface as not found.
func (s *Service) GetLeaderboard(ctx context.Context, playerID string, radius, topN int) (Leaderboard, error) {
	neighbors, err := s.store.Neighbors(ctx, playerID, radius)
	if err != nil {
		return Leaderboard{}, fmt.Errorf("neighbors: %w", err)
	}
	out := Leaderboard{Neighbors: neighbors}
	if topN >= 1 {
		if out.Top, err = s.store.Top(ctx, topN); err != nil {
			return Leaderboard{}, fmt.Errorf("top: %w", err)
		}
	}
	return out, nil
}

// Top returns the global top-n list on its own.
func (s *Service) Top(ctx context.Context, n int) ([]store.Position, error) {
	return s.store.Top(ctx, n)
}

// SeenAndRecord checks session id idempotency, recording unseen ids.
func (s *Service) SeenAndRecord(ctx context.Context, sessionID string) bool {
	if !s.started {
		return false
	}
	seen := s.deduper.SeenAndRecord(ctx, sessionID)
	if seen {
		metrics.RecordSessionDuplicate()
	}
	return seen
}

// Unrecord releases a session id so the submission can be retried.
func (s *Service) Unrecord(ctx context.Context, sessionID string) {
	if s.started {
		s.deduper.Unrecord(ctx, sessionID)
	}
}

// Enqueue hands a session to the async pipeline. Returns false under
// backpressure; the caller decides whether to surface a retry.
func (s *Service) Enqueue(ctx context.Context, sess model.Session) bool {
	if !s.started {
		return false
	}
	return s.queue.Enqueue(ctx, sess)
}

// PlayerCount returns the number of rated players.
func (s *Service) PlayerCount(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// RuntimeStats exposes pipeline gauges for the stats endpoint.
func (s *Service) RuntimeStats(ctx context.Context) map[string]any {
	out := map[string]any{
		"started": s.started,
	}
	if s.started {
		out["queue_length"] = s.queue.Len(ctx)
		out["queue_capacity"] = s.queueSize
		out["dedupe_tracked"] = s.deduper.Size()
	}
	if n, err := s.store.Count(ctx); err == nil {
		out["players_total"] = n
		metrics.UpdatePlayersTotal(n)
	}
	return out
}
