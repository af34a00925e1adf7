package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrUnavailable marks a transient storage failure. Retryable by the
	// caller; never conflated with an empty history.
	ErrUnavailable = errors.New("store unavailable")

	// ErrDuplicateEvent marks a re-delivered event id. Nothing was written.
	ErrDuplicateEvent = errors.New("duplicate event id")

	// ErrInvalidLimit rejects non-positive audit trail limits.
	ErrInvalidLimit = errors.New("invalid audit trail limit")
)
