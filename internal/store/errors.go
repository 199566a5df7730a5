package store

import "errors"

// Domain errors for the store package.
var (
	// ErrNotFound is returned when a key or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCorrupt is returned when a stored snapshot cannot be decoded.
	ErrCorrupt = errors.New("stored snapshot is corrupt")

	// ErrWrite is returned when a snapshot could not be persisted.
	ErrWrite = errors.New("could not write snapshot")

	// ErrInvalid is returned when an admin edit is rejected.
	ErrInvalid = errors.New("invalid record")
)
