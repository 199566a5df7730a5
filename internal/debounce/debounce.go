// Package debounce coalesces bursts of triggers per key.
//
// A Debouncer runs the most recently registered action for a key once no new
// call for that key has arrived within the quiet window. Keys are independent
// and may fire concurrently.
package debounce

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWindow is the quiet window used when New is given zero.
const DefaultWindow = 500 * time.Millisecond

type entry struct {
	timer  *time.Timer
	action func()
}

// Debouncer schedules per-key actions with last-call-wins semantics.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	stopped bool

	superseded atomic.Uint64
}

// New creates a Debouncer with the given quiet window.
func New(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer{
		window:  window,
		entries: make(map[string]*entry),
	}
}

// Window returns the quiet window.
func (d *Debouncer) Window() time.Duration {
	return d.window
}

// Debounce registers action to run for key once the window elapses without
// another call for the same key. A pending action for key is cancelled and
// will never run, even if its timer has already fired and is waiting on the
// lock. Calls after Stop are ignored.
func (d *Debouncer) Debounce(key string, action func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if prev, ok := d.entries[key]; ok {
		prev.timer.Stop()
		d.superseded.Add(1)
	}

	e := &entry{action: action}
	e.timer = time.AfterFunc(d.window, func() { d.fire(key, e) })
	d.entries[key] = e
}

// fire runs e if it is still the current entry for key.
func (d *Debouncer) fire(key string, e *entry) {
	d.mu.Lock()
	if d.entries[key] != e {
		d.mu.Unlock()
		return
	}
	delete(d.entries, key)
	d.mu.Unlock()

	e.action()
}

// Pending returns the number of keys with a scheduled action.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Superseded returns how many scheduled actions were replaced before running.
func (d *Debouncer) Superseded() uint64 {
	return d.superseded.Load()
}

// Stop cancels every pending action. Later Debounce calls are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, e := range d.entries {
		e.timer.Stop()
		delete(d.entries, key)
	}
	d.stopped = true
}
