package state

import "errors"

var (
	// ErrStore wraps any underlying filesystem or encoding failure.
	ErrStore = errors.New("state: store error")
	// ErrNotFound is returned when a requested record has no persisted entry.
	ErrNotFound = errors.New("state: not found")
)
