package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/verbelo/verbelo/pkg/metrics"
)

// RedisStore is the sorted-set Store backend. The board ZSET carries the
// ordering and a per-player HASH carries the full record.
//
// Redis breaks ZSET score ties lexically by member, which would put later
// players with equal points ahead of earlier ones whenever their ids sort
// lower. To keep the creation-order tie-break, the score packs the points
// into the high bits and the inverted creation sequence into the low bits:
//
//	score = points*seqSpan + (seqSpan - 1 - seq)
//
// Scores stay exact in a float64 as long as points < 2^22, far beyond any
// reachable ladder total.
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// seqSpan bounds the creation sequence packed into the low bits of a score.
const seqSpan = int64(1) << 31

var ensureScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
local seq = redis.call('INCR', KEYS[3])
redis.call('HSET', KEYS[1],
	'points', ARGV[1], 'rank', ARGV[2], 'tier', ARGV[3],
	'games_played', ARGV[4], 'shadow_strength', ARGV[5],
	'last_update', ARGV[6], 'seq', seq)
local span = tonumber(ARGV[7])
local score = tonumber(ARGV[1]) * span + (span - 1 - seq)
redis.call('ZADD', KEYS[2], score, ARGV[8])
return 1
`)

var saveScript = redis.NewScript(`
local seq = redis.call('HGET', KEYS[1], 'seq')
if not seq then
	seq = redis.call('INCR', KEYS[3])
end
seq = tonumber(seq)
local games = redis.call('HINCRBY', KEYS[1], 'games_played', 1)
redis.call('HSET', KEYS[1],
	'points', ARGV[1], 'rank', ARGV[2], 'tier', ARGV[3],
	'shadow_strength', ARGV[4], 'last_update', ARGV[5], 'seq', seq)
local span = tonumber(ARGV[6])
local score = tonumber(ARGV[1]) * span + (span - 1 - seq)
redis.call('ZADD', KEYS[2], score, ARGV[7])
return {seq, games}
`)

// RedisOption applies a configuration option to the RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix namespaces every key the store touches.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithRedisClock overrides the clock used for last_update stamps.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore connects to addr and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, addr string, opts ...RedisOption) (*RedisStore, error) {
	s := &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "verbelo",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("ping redis: %w: %w", ErrStorage, err)
	}
	return s, nil
}

func (s *RedisStore) playerKey(id string) string { return s.prefix + ":player:" + id }
func (s *RedisStore) boardKey() string           { return s.prefix + ":board" }
func (s *RedisStore) seqKey() string             { return s.prefix + ":seq" }

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, playerID string) (Record, error) {
	defer queryTimer()()

	fields, err := s.client.HGetAll(ctx, s.playerKey(playerID)).Result()
	if err != nil {
		metrics.RecordErrorByComponent("store", "redis")
		return Record{}, fmt.Errorf("load player: %w: %w", ErrStorage, err)
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return recordFromHash(playerID, fields)
}

// Ensure implements Store.
func (s *RedisStore) Ensure(ctx context.Context, playerID string, defaults Record) (Record, error) {
	var last string
	if !defaults.LastUpdate.IsZero() {
		last = defaults.LastUpdate.UTC().Format(time.RFC3339Nano)
	}
	err := ensureScript.Run(ctx, s.client,
		[]string{s.playerKey(playerID), s.boardKey(), s.seqKey()},
		defaults.Points,
		defaults.Grade.Rank.String(),
		int(defaults.Grade.Tier),
		defaults.GamesPlayed,
		defaults.ShadowStrength,
		last,
		seqSpan,
		playerID,
	).Err()
	if err != nil {
		metrics.RecordErrorByComponent("store", "redis")
		return Record{}, fmt.Errorf("ensure player: %w: %w", ErrStorage, err)
	}
	return s.Load(ctx, playerID)
}

// Save implements Store. The script folds the games_played increment, the
// hash write and the board update into one atomic server-side step.
func (s *RedisStore) Save(ctx context.Context, in Record) (Record, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	now := s.now().UTC()
	res, err := saveScript.Run(ctx, s.client,
		[]string{s.playerKey(in.PlayerID), s.boardKey(), s.seqKey()},
		in.Points,
		in.Grade.Rank.String(),
		int(in.Grade.Tier),
		in.ShadowStrength,
		now.Format(time.RFC3339Nano),
		seqSpan,
		in.PlayerID,
	).Slice()
	if err != nil {
		metrics.RecordErrorByComponent("store", "redis")
		return Record{}, fmt.Errorf("save player: %w: %w", ErrStorage, err)
	}

	out := in
	out.LastUpdate = now
	if len(res) == 2 {
		if seq, ok := res[0].(int64); ok {
			out.Seq = seq
		}
		if games, ok := res[1].(int64); ok {
			out.GamesPlayed = int(games)
		}
	}
	return out, nil
}

// GlobalRank implements Store.
func (s *RedisStore) GlobalRank(ctx context.Context, playerID string) (int, error) {
	defer queryTimer()()

	rank, err := s.client.ZRevRank(ctx, s.boardKey(), playerID).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		metrics.RecordErrorByComponent("store", "redis")
		return 0, fmt.Errorf("global rank: %w: %w", ErrStorage, err)
	}
	return int(rank) + 1, nil
}

// Neighbors implements Store.
func (s *RedisStore) Neighbors(ctx context.Context, playerID string, radius int) ([]Position, error) {
	defer queryTimer()()

	if radius < 0 {
		return nil, ErrInvalidRadius
	}

	rank, err := s.client.ZRevRank(ctx, s.boardKey(), playerID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RecordErrorByComponent("store", "redis")
		return nil, fmt.Errorf("neighbors: %w: %w", ErrStorage, err)
	}

	lo := rank - int64(radius)
	if lo < 0 {
		lo = 0
	}
	hi := rank + int64(radius)
	ids, err := s.client.ZRevRange(ctx, s.boardKey(), lo, hi).Result()
	if err != nil {
		metrics.RecordErrorByComponent("store", "redis")
		return nil, fmt.Errorf("neighbors: %w: %w", ErrStorage, err)
	}
	return s.positions(ctx, ids, int(lo)+1)
}

// Top implements Store.
func (s *RedisStore) Top(ctx context.Context, n int) ([]Position, error) {
	defer queryTimer()()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	ids, err := s.client.ZRevRange(ctx, s.boardKey(), 0, int64(n)-1).Result()
	if err != nil {
		metrics.RecordErrorByComponent("store", "redis")
		return nil, fmt.Errorf("top: %w: %w", ErrStorage, err)
	}
	return s.positions(ctx, ids, 1)
}

// positions fetches the display fields for each member in one pipeline.
func (s *RedisStore) positions(ctx context.Context, ids []string, firstPos int) ([]Position, error) {
	if len(ids) == 0 {
		return []Position{}, nil
	}

	cmds := make([]*redis.SliceCmd, len(ids))
	pipe := s.client.Pipeline()
	for i, id := range ids {
		cmds[i] = pipe.HMGet(ctx, s.playerKey(id), "points", "rank", "tier")
	}
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordErrorByComponent("store", "redis")
		return nil, fmt.Errorf("fetch positions: %w: %w", ErrStorage, err)
	}

	out := make([]Position, 0, len(ids))
	for i, id := range ids {
		vals := cmds[i].Val()
		if len(vals) != 3 || vals[0] == nil || vals[1] == nil || vals[2] == nil {
			return nil, fmt.Errorf("missing hash for board member %s: %w", id, ErrStorage)
		}
		points, err := strconv.Atoi(vals[0].(string))
		if err != nil {
			return nil, fmt.Errorf("corrupt points for %s: %w: %w", id, ErrStorage, err)
		}
		tier, err := strconv.Atoi(vals[2].(string))
		if err != nil {
			return nil, fmt.Errorf("corrupt tier for %s: %w: %w", id, ErrStorage, err)
		}
		grade, err := gradeFromParts(vals[1].(string), tier)
		if err != nil {
			return nil, err
		}
		out = append(out, Position{
			Position: firstPos + i,
			PlayerID: id,
			Grade:    grade,
			Points:   points,
		})
	}
	return out, nil
}

// Count implements Store.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.ZCard(ctx, s.boardKey()).Result()
	if err != nil {
		metrics.RecordErrorByComponent("store", "redis")
		return 0, fmt.Errorf("count: %w: %w", ErrStorage, err)
	}
	return int(n), nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func recordFromHash(playerID string, fields map[string]string) (Record, error) {
	rec := Record{PlayerID: playerID}

	var err error
	if rec.Points, err = strconv.Atoi(fields["points"]); err != nil {
		return Record{}, fmt.Errorf("corrupt points: %w: %w", ErrStorage, err)
	}
	if rec.GamesPlayed, err = strconv.Atoi(fields["games_played"]); err != nil {
		return Record{}, fmt.Errorf("corrupt games_played: %w: %w", ErrStorage, err)
	}
	if rec.ShadowStrength, err = strconv.ParseFloat(fields["shadow_strength"], 64); err != nil {
		return Record{}, fmt.Errorf("corrupt shadow_strength: %w: %w", ErrStorage, err)
	}
	if rec.Seq, err = strconv.ParseInt(fields["seq"], 10, 64); err != nil {
		return Record{}, fmt.Errorf("corrupt seq: %w: %w", ErrStorage, err)
	}

	tier, err := strconv.Atoi(fields["tier"])
	if err != nil {
		return Record{}, fmt.Errorf("corrupt tier: %w: %w", ErrStorage, err)
	}
	if rec.Grade, err = gradeFromParts(fields["rank"], tier); err != nil {
		return Record{}, err
	}

	if last := fields["last_update"]; last != "" {
		t, err := time.Parse(time.RFC3339Nano, last)
		if err != nil {
			return Record{}, fmt.Errorf("corrupt last_update: %w: %w", ErrStorage, err)
		}
		rec.LastUpdate = t
	}
	return rec, nil
}
