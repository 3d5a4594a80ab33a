package model

import "errors"

// ErrInvalidSignals marks sessions whose signals violate the caller
// contract. The engine performs no partial update for such sessions.
var ErrInvalidSignals = errors.New("invalid session signals")
