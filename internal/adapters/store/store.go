// Package store defines the rating store interface and its backends.
//
// Every backend orders players by points descending, then creation sequence
// ascending, then player id ascending. Earlier-created players therefore
// rank ahead of later ones on equal points; the ordering is total, so every
// player holds a unique 1-based position. All queries share the same order.
package store

import (
	"context"
	"time"

	"github.com/verbelo/verbelo/internal/domain/rating"
)

// Record is a player's persisted rating state.
type Record struct {
	PlayerID       string
	Points         int
	Grade          rating.Grade
	ShadowStrength float64
	GamesPlayed    int
	LastUpdate     time.Time

	// Seq is the store-assigned creation sequence used as the ranking
	// tie-break. Callers never set it.
	Seq int64
}

// Position is one leaderboard row.
type Position struct {
	Position int
	PlayerID string
	Grade    rating.Grade
	Points   int
}

// Store provides durable rating state plus order-based queries over points.
type Store interface {
	// Load returns the record for a player, or ErrNotFound.
	Load(ctx context.Context, playerID string) (Record, error)

	// Ensure inserts the given defaults when the player is unknown and
	// returns the current record either way. Unlike Save it does not
	// touch games_played, so a player materialized by a stats query
	// still reads as having played zero games.
	Ensure(ctx context.Context, playerID string, defaults Record) (Record, error)

	// Save upserts a record. The games_played increment and last_update
	// stamp happen inside the store, atomically with the write; callers
	// must not pre-compute either.
	Save(ctx context.Context, rec Record) (Record, error)

	// GlobalRank returns the player's 1-based position, or ErrNotFound.
	GlobalRank(ctx context.Context, playerID string) (int, error)

	// Neighbors returns players whose position falls within
	// [rank-radius, rank+radius], ordered by position ascending. The
	// target player is always part of the window.
	Neighbors(ctx context.Context, playerID string, radius int) ([]Position, error)

	// Top returns the n best players. ErrInvalidLimit for n < 1.
	Top(ctx context.Context, n int) ([]Position, error)

	// Count returns the number of tracked players.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}
