package progress

import "errors"

// Sentinel kinds for progress query errors.
var (
	ErrInvalidWindow = errors.New("invalid progress window")
)
