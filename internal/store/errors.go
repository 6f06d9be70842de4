package store

import "errors"

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")
