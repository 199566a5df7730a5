package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/wagoodman/go-partybus"

	"github.com/nerrad567/versionwatch/internal/metrics"
	"github.com/nerrad567/versionwatch/internal/store"
)

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// FileStore is the part of the store the Engine needs.
type FileStore interface {
	Files(ctx context.Context) (store.Files, error)
	DisableFiles(ctx context.Context, match func(store.WatchedFile) bool, reason string) (int, error)
}

// filter is the set of canonical paths whose events are forwarded.
type filter struct {
	files map[string]struct{}
}

// Engine maintains the directory watch set and bridges fsnotify onto the bus.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Engine struct {
	bus       Bus
	files     FileStore
	storePath string
	logger    Logger

	// addWatch registers dir with w; replaced in tests.
	addWatch func(w *fsnotify.Watcher, dir string) error

	filter atomic.Pointer[filter]

	mu         sync.Mutex
	parent     context.Context
	cancel     context.CancelFunc
	generation uint64
	dirs       []string
	closed     bool
}

// New creates an Engine. storePath is the configuration store's backing file.
func New(bus Bus, files FileStore, storePath string) *Engine {
	e := &Engine{
		bus:       bus,
		files:     files,
		storePath: Canonical(storePath),
		logger:    noopLogger{},
		addWatch:  func(w *fsnotify.Watcher, dir string) error { return w.Add(dir) },
	}
	e.filter.Store(&filter{files: map[string]struct{}{}})
	return e
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	e.logger = logger
}

// StorePath returns the canonical store backing path.
func (e *Engine) StorePath() string {
	return e.storePath
}

// Start builds the first watch set. Watches live until ctx is cancelled or
// Close is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.parent = ctx
	e.mu.Unlock()
	return e.Refresh(ctx)
}

// Refresh recomputes the watch set from the latest files snapshot.
//
// Returns:
//   - error: ErrNotStarted before Start, or if fsnotify cannot create a watcher
func (e *Engine) Refresh(ctx context.Context) error {
	files, err := e.files.Files(ctx)
	if err != nil {
		// A missing or corrupt snapshot means nothing to watch but the store.
		e.logger.Warn("reading files snapshot", "error", err)
		files = store.Files{}
	}

	dirs, next := e.plan(files)

	e.mu.Lock()
	if e.parent == nil || e.closed {
		e.mu.Unlock()
		return ErrNotStarted
	}

	e.filter.Store(next)
	if e.cancel != nil && slices.Equal(dirs, e.dirs) {
		gen := e.generation
		e.mu.Unlock()
		metrics.WatchRefreshTotal.WithLabelValues("unchanged").Inc()
		e.logger.Debug("watch set unchanged", "generation", gen, "files", len(next.files))
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("creating watcher: %w", err)
	}

	if e.cancel != nil {
		e.cancel()
	}
	e.generation++
	gen := e.generation
	genCtx, cancel := context.WithCancel(e.parent)
	e.cancel = cancel

	// Only directories actually watched are kept, so a later Refresh retries
	// the ones that failed.
	failed := make(map[string]error)
	watched := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if err := e.addWatch(w, filepath.FromSlash(dir)); err != nil {
			failed[dir] = err
			continue
		}
		watched = append(watched, dir)
	}
	e.dirs = watched
	go e.run(genCtx, w, gen)
	e.mu.Unlock()

	metrics.WatchRefreshTotal.WithLabelValues("rebuilt").Inc()
	metrics.WatchedDirectories.Set(float64(len(watched)))
	e.logger.Info("watch set rebuilt", "generation", gen, "directories", len(dirs), "failed", len(failed))

	e.recordFailures(ctx, failed)
	return nil
}

// plan returns the sorted directory set and the path filter for files.
func (e *Engine) plan(files store.Files) ([]string, *filter) {
	f := &filter{files: make(map[string]struct{})}
	dirSet := map[string]struct{}{Dir(e.storePath): {}}

	for _, file := range files.Enabled() {
		p := Canonical(file.Path)
		if p == "" {
			continue
		}
		f.files[p] = struct{}{}
		dirSet[Dir(p)] = struct{}{}
	}

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	slices.Sort(dirs)
	return dirs, f
}

// recordFailures disables the files in every directory that failed to watch
// and records the error as their update state.
func (e *Engine) recordFailures(ctx context.Context, failed map[string]error) {
	storeDir := Dir(e.storePath)
	for dir, werr := range failed {
		if dir == storeDir {
			e.logger.Error("cannot watch store directory", "dir", dir, "error", werr)
			continue
		}

		reason := fmt.Sprintf("%v: %s: %v", ErrWatchFailed, dir, werr)
		n, err := e.files.DisableFiles(ctx, func(f store.WatchedFile) bool {
			return f.Enabled && Dir(Canonical(f.Path)) == dir
		}, reason)
		if err != nil {
			e.logger.Error("recording watch failure", "dir", dir, "error", err)
			continue
		}
		e.logger.Warn("directory watch failed", "dir", dir, "disabled", n, "error", werr)
	}
}

// run forwards events from w until ctx is cancelled.
func (e *Engine) run(ctx context.Context, w *fsnotify.Watcher, gen uint64) {
	defer w.Close() //nolint:errcheck // Best effort on shutdown

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			e.handle(ev, gen)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			// Overflow or a directory becoming inaccessible: keep the other watches.
			e.logger.Warn("watcher error", "generation", gen, "error", err)
		}
	}
}

func (e *Engine) handle(ev fsnotify.Event, gen uint64) {
	if ev.Op == fsnotify.Chmod {
		metrics.FSEventsTotal.WithLabelValues("ignored").Inc()
		return
	}

	p := Canonical(ev.Name)
	if (ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) && e.rewatch(p, gen) {
		return
	}
	change := ChangeEvent{Path: p, Op: ev.Op, Generation: gen}

	switch {
	case p == e.storePath:
		metrics.FSEventsTotal.WithLabelValues("store").Inc()
		e.bus.Publish(partybus.Event{Type: EventStoreChanged, Value: change})
	case e.watching(p):
		metrics.FSEventsTotal.WithLabelValues("file").Inc()
		e.bus.Publish(partybus.Event{Type: EventFileChanged, Value: change})
	default:
		metrics.FSEventsTotal.WithLabelValues("ignored").Inc()
	}
}

// rewatch rebuilds the watch set when dir, a watched directory of generation
// gen, was removed or renamed away. Its watch is gone for good, even if the
// directory comes back, so the rebuild re-adds it or records the failure on
// its files.
func (e *Engine) rewatch(dir string, gen uint64) bool {
	e.mu.Lock()
	if e.closed || e.generation != gen || !slices.Contains(e.dirs, dir) {
		e.mu.Unlock()
		return false
	}
	e.dirs = nil
	ctx := e.parent
	e.mu.Unlock()

	metrics.FSEventsTotal.WithLabelValues("directory").Inc()
	e.logger.Warn("watched directory removed", "dir", dir, "generation", gen)
	if err := e.Refresh(ctx); err != nil {
		e.logger.Error("rebuilding watch set", "error", err)
	}
	return true
}

func (e *Engine) watching(p string) bool {
	_, ok := e.filter.Load().files[p]
	return ok
}

// Generation returns the current watch generation (0 before Start).
func (e *Engine) Generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Dirs returns the current directory watch set.
func (e *Engine) Dirs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.dirs)
}

// Close cancels the current generation. Later Refresh calls return
// ErrNotStarted.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.dirs = nil
	e.closed = true
}
