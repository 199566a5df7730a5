package version

import "errors"

var (
	// ErrResolve wraps every resolution failure.
	ErrResolve = errors.New("could not resolve version")

	// ErrVersionNotFound is returned when a binary carries no version resource.
	ErrVersionNotFound = errors.New("could not read version")
)
