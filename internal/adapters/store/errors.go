package store

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("player not found")
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
	ErrInvalidRadius = errors.New("invalid neighbor radius")

	// ErrStorage wraps backend I/O failures. The engine never retries a
	// failed save: games_played makes blind retries unsafe.
	ErrStorage = errors.New("storage failure")
)
