package run

import "errors"

// Sentinel errors for run operations, checked with errors.Is().
var (
	// ErrNotFound is returned when the requested run does not exist.
	ErrNotFound = errors.New("run not found")

	// ErrInvalidTransition is returned when a status change would move a
	// run backwards or out of a terminal state.
	ErrInvalidTransition = errors.New("invalid run transition")

	// ErrInvalidStatus is returned for an unknown status value.
	ErrInvalidStatus = errors.New("invalid run status")
)
