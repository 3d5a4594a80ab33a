// Package model contains domain payloads passed between layers.
package model

import (
	"fmt"
	"time"

	"github.com/verbelo/verbelo/internal/domain/rating"
)

// Session represents one completed, ranked game submitted for rating.
// Fields mirror the JSON schema of POST /sessions.
type Session struct {
	SessionID  string    // unique id for idempotency
	PlayerID   string    // platform user id
	Accuracy   float64   // fraction of correct guesses in [0,1]
	Attempts   int       // guesses taken, >= 1
	TimeTaken  float64   // elapsed seconds, > 0
	Difficulty float64   // puzzle difficulty in [1,5]
	TS         time.Time // completion timestamp
}

// Signals extracts the rating inputs.
func (s Session) Signals() rating.Signals {
	return rating.Signals{
		Accuracy:   s.Accuracy,
		Attempts:   s.Attempts,
		TimeTaken:  s.TimeTaken,
		Difficulty: s.Difficulty,
	}
}

// Validate enforces the caller contract. A session that fails validation
// must not reach the rating store.
func (s Session) Validate() error {
	switch {
	case s.PlayerID == "":
		return fmt.Errorf("%w: missing player id", ErrInvalidSignals)
	case s.Attempts < 1:
		return fmt.Errorf("%w: attempts must be >= 1, got %d", ErrInvalidSignals, s.Attempts)
	case s.TimeTaken <= 0:
		return fmt.Errorf("%w: time taken must be > 0, got %g", ErrInvalidSignals, s.TimeTaken)
	case s.Accuracy < 0 || s.Accuracy > 1:
		return fmt.Errorf("%w: accuracy must be in [0,1], got %g", ErrInvalidSignals, s.Accuracy)
	case s.Difficulty < 1 || s.Difficulty > 5:
		return fmt.Errorf("%w: difficulty must be in [1,5], got %g", ErrInvalidSignals, s.Difficulty)
	}
	return nil
}
