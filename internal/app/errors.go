package service

import "errors"

var (
	// ErrNotStarted is returned when an operation requires Start first.
	ErrNotStarted = errors.New("service not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("service already started")
)
