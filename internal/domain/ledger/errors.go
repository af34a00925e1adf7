package ledger

import "errors"

// Sentinel kinds for chain construction errors.
var (
	ErrInvalidAction = errors.New("invalid ledger action")
)
