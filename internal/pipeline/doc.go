// Package pipeline turns filesystem changes into published file versions.
//
// It subscribes to the watch engine's events on the bus, debounces them per
// path and then either reloads configuration (when the store itself changed)
// or resolves the file's version, records it on every matching WatchedFile
// and publishes one measurement per entry while the broker is connected.
//
// Store writes and broker publishes never overlap: payloads are assembled
// under the store write lock and sent after it is released.
package pipeline
