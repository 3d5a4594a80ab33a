package store

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/verbelo/verbelo/internal/domain/rating"
	"github.com/verbelo/verbelo/pkg/metrics"
)

// Treap-based in-memory Store.
//
// The treap is keyed by the leaderboard order (points DESC, seq ASC,
// id ASC): "less" means ranks earlier, so an in-order traversal walks the
// board from best to worst. Subtree sizes give O(log n) expected rank and
// positional-window queries.

// treapNode is one player's position in the ordering.
type treapNode struct {
	id     string
	points int
	seq    int64
	prio   uint64
	left   *treapNode
	right  *treapNode
	size   int
}

func nsize(n *treapNode) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *treapNode) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// before reports whether entry a ranks ahead of entry b.
func before(aPoints int, aSeq int64, aID string, bPoints int, bSeq int64, bID string) bool {
	if aPoints != bPoints {
		return aPoints > bPoints
	}
	if aSeq != bSeq {
		return aSeq < bSeq
	}
	return aID < bID
}

func rotateRight(y *treapNode) *treapNode {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *treapNode) *treapNode {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insertNode(n, ins *treapNode) *treapNode {
	if n == nil {
		ins.size = 1
		return ins
	}
	if before(ins.points, ins.seq, ins.id, n.points, n.seq, n.id) {
		n.left = insertNode(n.left, ins)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insertNode(n.right, ins)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *treapNode, points int, seq int64, id string) *treapNode {
	if n == nil {
		return nil
	}
	switch {
	case points == n.points && seq == n.seq && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, points, seq, id)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, points, seq, id)
		}
	case before(points, seq, id, n.points, n.seq, n.id):
		n.left = deleteNode(n.left, points, seq, id)
	default:
		n.right = deleteNode(n.right, points, seq, id)
	}
	fix(n)
	return n
}

// positionOf returns the 1-based rank of the entry, or 0 when absent.
func positionOf(n *treapNode, points int, seq int64, id string) int {
	pos := 0
	for n != nil {
		switch {
		case points == n.points && seq == n.seq && id == n.id:
			return pos + nsize(n.left) + 1
		case before(points, seq, id, n.points, n.seq, n.id):
			n = n.left
		default:
			pos += nsize(n.left) + 1
			n = n.right
		}
	}
	return 0
}

// collectWindow appends the entries at positions [lo, hi] (1-based,
// inclusive) in rank order. offset is the number of entries ranked before
// the subtree rooted at n.
func collectWindow(n *treapNode, offset, lo, hi int, out *[]*treapNode) {
	if n == nil || lo > hi {
		return
	}
	myPos := offset + nsize(n.left) + 1
	if lo < myPos {
		collectWindow(n.left, offset, lo, hi, out)
	}
	if lo <= myPos && myPos <= hi {
		*out = append(*out, n)
	}
	if hi > myPos {
		collectWindow(n.right, myPos, lo, hi, out)
	}
}

// memRecord holds the fields not encoded in the treap key.
type memRecord struct {
	points     int
	seq        int64
	grade      rating.Grade
	shadow     float64
	games      int
	lastUpdate time.Time
}

// MemoryStore is the in-memory Store backend. It serializes writers with a
// single mutex and gives readers point-in-time consistent snapshots under
// the read lock; reads observe every committed save (read-your-writes).
type MemoryStore struct {
	mu      sync.RWMutex
	root    *treapNode
	byID    map[string]*memRecord
	nextSeq int64
	rng     *rand.Rand
	now     func() time.Time
}

// MemoryOption applies a configuration option to the MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the clock used for last_update stamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		byID: make(map[string]*memRecord),
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // treap priorities, not crypto
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) record(id string, rec *memRecord) Record {
	return Record{
		PlayerID:       id,
		Points:         rec.points,
		Grade:          rec.grade,
		ShadowStrength: rec.shadow,
		GamesPlayed:    rec.games,
		LastUpdate:     rec.lastUpdate,
		Seq:            rec.seq,
	}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, playerID string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[playerID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return s.record(playerID, rec), nil
}

// Ensure implements Store.
func (s *MemoryStore) Ensure(_ context.Context, playerID string, defaults Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.byID[playerID]; ok {
		return s.record(playerID, rec), nil
	}

	s.nextSeq++
	rec := &memRecord{
		points:     defaults.Points,
		seq:        s.nextSeq,
		grade:      defaults.Grade,
		shadow:     defaults.ShadowStrength,
		games:      defaults.GamesPlayed,
		lastUpdate: defaults.LastUpdate,
	}
	s.byID[playerID] = rec
	s.root = insertNode(s.root, &treapNode{
		id: playerID, points: rec.points, seq: rec.seq, prio: s.rng.Uint64(),
	})
	metrics.UpdatePlayersTotal(len(s.byID))
	return s.record(playerID, rec), nil
}

// Save implements Store. The games_played increment and last_update stamp
// happen under the same lock as the ordering update.
func (s *MemoryStore) Save(_ context.Context, in Record) (Record, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[in.PlayerID]
	if ok {
		s.root = deleteNode(s.root, rec.points, rec.seq, in.PlayerID)
	} else {
		s.nextSeq++
		rec = &memRecord{seq: s.nextSeq}
		s.byID[in.PlayerID] = rec
	}

	rec.points = in.Points
	rec.grade = in.Grade
	rec.shadow = in.ShadowStrength
	rec.games++
	rec.lastUpdate = s.now()

	s.root = insertNode(s.root, &treapNode{
		id: in.PlayerID, points: rec.points, seq: rec.seq, prio: s.rng.Uint64(),
	})
	metrics.UpdatePlayersTotal(len(s.byID))
	return s.record(in.PlayerID, rec), nil
}

// GlobalRank implements Store in O(log n) expected time.
func (s *MemoryStore) GlobalRank(_ context.Context, playerID string) (int, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[playerID]
	if !ok {
		return 0, ErrNotFound
	}
	pos := positionOf(s.root, rec.points, rec.seq, playerID)
	if pos == 0 {
		return 0, ErrNotFound
	}
	return pos, nil
}

// Neighbors implements Store.
func (s *MemoryStore) Neighbors(_ context.Context, playerID string, radius int) ([]Position, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if radius < 0 {
		return nil, ErrInvalidRadius
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	target := positionOf(s.root, rec.points, rec.seq, playerID)

	lo := target - radius
	if lo < 1 {
		lo = 1
	}
	hi := target + radius

	nodes := make([]*treapNode, 0, hi-lo+1)
	collectWindow(s.root, 0, lo, hi, &nodes)
	return s.positions(nodes, lo), nil
}

// Top implements Store.
func (s *MemoryStore) Top(_ context.Context, n int) ([]Position, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]*treapNode, 0, n)
	collectWindow(s.root, 0, 1, n, &nodes)
	return s.positions(nodes, 1), nil
}

// positions materializes leaderboard rows; callers hold at least the read
// lock.
func (s *MemoryStore) positions(nodes []*treapNode, firstPos int) []Position {
	out := make([]Position, 0, len(nodes))
	for i, n := range nodes {
		rec := s.byID[n.id]
		out = append(out, Position{
			Position: firstPos + i,
			PlayerID: n.id,
			Grade:    rec.grade,
			Points:   rec.points,
		})
	}
	return out
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
