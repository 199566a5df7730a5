package watch

import "errors"

var (
	// ErrWatchFailed is recorded onto every file whose directory could not be watched.
	ErrWatchFailed = errors.New("watch failed")

	// ErrNotStarted is returned by Refresh before Start or after Close.
	ErrNotStarted = errors.New("watch engine not started")
)
