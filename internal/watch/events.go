package watch

import (
	"github.com/fsnotify/fsnotify"
	"github.com/wagoodman/go-partybus"
)

// Event types published by the Engine.
const (
	EventFileChanged  partybus.EventType = "watch.file-changed"
	EventStoreChanged partybus.EventType = "watch.store-changed"
)

// ChangeEvent is the Value of every event the Engine publishes.
type ChangeEvent struct {
	// Path is the canonical path that changed.
	Path string
	Op   fsnotify.Op
	// Generation identifies the watch set that observed the change.
	Generation uint64
}

// Bus is the subset of *partybus.Bus used by the Engine and its consumers.
type Bus interface {
	Publish(event partybus.Event)
	Subscribe(types ...partybus.EventType) *partybus.Subscription
	Unsubscribe(sub *partybus.Subscription) error
}
