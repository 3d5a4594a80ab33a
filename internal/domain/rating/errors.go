package rating

import "errors"

// Sentinel kinds for ladder configuration errors.
var (
	ErrBadLadder = errors.New("invalid rank ladder")
	ErrBadGrade  = errors.New("invalid grade")
)
