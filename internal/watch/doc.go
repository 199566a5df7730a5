// Package watch turns filesystem notifications into change events.
//
// The Engine watches parent directories rather than files: one watch per
// distinct directory holding an enabled WatchedFile, plus the directory of
// the configuration store's backing file. Raw fsnotify events are
// canonicalised, filtered down to the watched files and the store backing
// path, and published onto a partybus.Bus as EventFileChanged or
// EventStoreChanged carrying a ChangeEvent.
//
// Refresh recomputes the directory set. When it is unchanged only the path
// filter is swapped; otherwise the current generation's watcher is cancelled
// (without waiting) and a new generation starts.
package watch
