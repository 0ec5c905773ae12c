package state

import "errors"

// ErrNotFound is returned when a requested display state does not exist in the database.
var ErrNotFound = errors.New("not found")
