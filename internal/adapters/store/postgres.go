package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/verbelo/verbelo/internal/domain/rating"
	"github.com/verbelo/verbelo/pkg/metrics"
)

// PostgresStore is the relational Store backend. The BIGSERIAL seq column
// carries the creation-order tie-break, and the games_played increment is
// folded into the upsert so it commits atomically with the rating write.
type PostgresStore struct {
	db *sql.DB
}

const createRatingsTable = `
CREATE TABLE IF NOT EXISTS player_ratings (
	player_id       TEXT PRIMARY KEY,
	seq             BIGSERIAL,
	rank            TEXT NOT NULL,
	tier            INTEGER NOT NULL,
	points          INTEGER NOT NULL DEFAULT 0,
	games_played    INTEGER NOT NULL DEFAULT 0,
	shadow_strength DOUBLE PRECISION NOT NULL,
	last_update     TIMESTAMPTZ
)`

const createRatingsOrderIndex = `
CREATE INDEX IF NOT EXISTS player_ratings_order_idx
	ON player_ratings (points DESC, seq ASC, player_id ASC)`

const loadPlayer = `
SELECT seq, rank, tier, points, games_played, shadow_strength, last_update
FROM player_ratings
WHERE player_id = $1`

const insertDefaults = `
INSERT INTO player_ratings (player_id, rank, tier, points, games_played, shadow_strength)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (player_id) DO NOTHING`

const savePlayer = `
INSERT INTO player_ratings (player_id, rank, tier, points, games_played, shadow_strength, last_update)
VALUES ($1, $2, $3, $4, 1, $5, now())
ON CONFLICT (player_id) DO UPDATE SET
	rank            = EXCLUDED.rank,
	tier            = EXCLUDED.tier,
	points          = EXCLUDED.points,
	games_played    = player_ratings.games_played + 1,
	shadow_strength = EXCLUDED.shadow_strength,
	last_update     = now()
RETURNING seq, games_played, last_update`

const globalRankQuery = `
SELECT pos FROM (
	SELECT player_id,
	       ROW_NUMBER() OVER (ORDER BY points DESC, seq ASC, player_id ASC) AS pos
	FROM player_ratings
) ranked
WHERE player_id = $1`

const neighborsQuery = `
WITH ranked AS (
	SELECT ROW_NUMBER() OVER (ORDER BY points DESC, seq ASC, player_id ASC) AS pos,
	       player_id, rank, tier, points
	FROM player_ratings
),
target AS (
	SELECT pos FROM ranked WHERE player_id = $1
)
SELECT pos, player_id, rank, tier, points
FROM ranked
WHERE pos BETWEEN (SELECT pos FROM target) - $2
              AND (SELECT pos FROM target) + $2
ORDER BY pos`

const topQuery = `
SELECT ROW_NUMBER() OVER (ORDER BY points DESC, seq ASC, player_id ASC) AS pos,
       player_id, rank, tier, points
FROM player_ratings
ORDER BY points DESC, seq ASC, player_id ASC
LIMIT $1`

const countPlayers = `SELECT COUNT(*) FROM player_ratings`

// NewPostgresStore connects, verifies the connection, and creates the
// schema when missing.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w: %w", ErrStorage, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w: %w", ErrStorage, err)
	}
	for _, stmt := range []string{createRatingsTable, createRatingsOrderIndex} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init schema: %w: %w", ErrStorage, err)
		}
	}
	return &PostgresStore{db: db}, nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context, playerID string) (Record, error) {
	defer queryTimer()()

	row := s.db.QueryRowContext(ctx, loadPlayer, playerID)
	rec, err := scanRecord(playerID, row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		metrics.RecordErrorByComponent("store", "postgres")
		return Record{}, fmt.Errorf("load player: %w: %w", ErrStorage, err)
	}
	return rec, nil
}

// Ensure implements Store.
func (s *PostgresStore) Ensure(ctx context.Context, playerID string, defaults Record) (Record, error) {
	_, err := s.db.ExecContext(ctx, insertDefaults,
		playerID,
		defaults.Grade.Rank.String(),
		int(defaults.Grade.Tier),
		defaults.Points,
		defaults.GamesPlayed,
		defaults.ShadowStrength,
	)
	if err != nil {
		metrics.RecordErrorByComponent("store", "postgres")
		return Record{}, fmt.Errorf("ensure player: %w: %w", ErrStorage, err)
	}
	return s.Load(ctx, playerID)
}

// Save implements Store. The upsert increments games_played and stamps
// last_update server-side, which keeps concurrent saves for the same
// player from losing increments even across processes.
func (s *PostgresStore) Save(ctx context.Context, in Record) (Record, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	out := in
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, savePlayer,
		in.PlayerID,
		in.Grade.Rank.String(),
		int(in.Grade.Tier),
		in.Points,
		in.ShadowStrength,
	).Scan(&out.Seq, &out.GamesPlayed, &last)
	if err != nil {
		metrics.RecordErrorByComponent("store", "postgres")
		return Record{}, fmt.Errorf("save player: %w: %w", ErrStorage, err)
	}
	if last.Valid {
		out.LastUpdate = last.Time
	}
	return out, nil
}

// GlobalRank implements Store.
func (s *PostgresStore) GlobalRank(ctx context.Context, playerID string) (int, error) {
	defer queryTimer()()

	var pos int
	err := s.db.QueryRowContext(ctx, globalRankQuery, playerID).Scan(&pos)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		metrics.RecordErrorByComponent("store", "postgres")
		return 0, fmt.Errorf("global rank: %w: %w", ErrStorage, err)
	}
	return pos, nil
}

// Neighbors implements Store.
func (s *PostgresStore) Neighbors(ctx context.Context, playerID string, radius int) ([]Position, error) {
	defer queryTimer()()

	if radius < 0 {
		return nil, ErrInvalidRadius
	}

	rows, err := s.db.QueryContext(ctx, neighborsQuery, playerID, radius)
	if err != nil {
		metrics.RecordErrorByComponent("store", "postgres")
		return nil, fmt.Errorf("neighbors: %w: %w", ErrStorage, err)
	}
	defer rows.Close()

	out, err := scanPositions(rows)
	if err != nil {
		return nil, err
	}
	// The window always contains the target when it exists, so an empty
	// result means the player is unknown.
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// Top implements Store.
func (s *PostgresStore) Top(ctx context.Context, n int) ([]Position, error) {
	defer queryTimer()()

	if n < 1 {
		return nil, ErrInvalidLimit
	}

	rows, err := s.db.QueryContext(ctx, topQuery, n)
	if err != nil {
		metrics.RecordErrorByComponent("store", "postgres")
		return nil, fmt.Errorf("top: %w: %w", ErrStorage, err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// Count implements Store.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countPlayers).Scan(&n); err != nil {
		metrics.RecordErrorByComponent("store", "postgres")
		return 0, fmt.Errorf("count: %w: %w", ErrStorage, err)
	}
	return n, nil
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func queryTimer() func() {
	start := time.Now()
	return func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}
}

func scanRecord(playerID string, row *sql.Row) (Record, error) {
	var (
		rec      Record
		rankName string
		tier     int
		last     sql.NullTime
	)
	err := row.Scan(&rec.Seq, &rankName, &tier, &rec.Points, &rec.GamesPlayed, &rec.ShadowStrength, &last)
	if err != nil {
		return Record{}, err
	}
	rec.PlayerID = playerID
	rec.Grade, err = gradeFromParts(rankName, tier)
	if err != nil {
		return Record{}, err
	}
	if last.Valid {
		rec.LastUpdate = last.Time
	}
	return rec, nil
}

func scanPositions(rows *sql.Rows) ([]Position, error) {
	var out []Position
	for rows.Next() {
		var (
			p        Position
			rankName string
			tier     int
		)
		if err := rows.Scan(&p.Position, &p.PlayerID, &rankName, &tier, &p.Points); err != nil {
			metrics.RecordErrorByComponent("store", "postgres")
			return nil, fmt.Errorf("scan position: %w: %w", ErrStorage, err)
		}
		g, err := gradeFromParts(rankName, tier)
		if err != nil {
			return nil, err
		}
		p.Grade = g
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		metrics.RecordErrorByComponent("store", "postgres")
		return nil, fmt.Errorf("iterate positions: %w: %w", ErrStorage, err)
	}
	return out, nil
}

// gradeFromParts rebuilds a grade from its persisted rank name and tier
// number.
func gradeFromParts(rankName string, tier int) (rating.Grade, error) {
	g, err := rating.ParseGrade(fmt.Sprintf("%s %s", rankName, rating.Tier(tier)))
	if err != nil {
		return rating.Grade{}, fmt.Errorf("corrupt grade %q/%d: %w: %w", rankName, tier, ErrStorage, err)
	}
	return g, nil
}
