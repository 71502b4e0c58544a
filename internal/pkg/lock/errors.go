package lock

import "errors"

// Lock-related errors.
var (
	// ErrBusy is returned when a key is already held by someone else.
	ErrBusy = errors.New("lock is busy")
)
