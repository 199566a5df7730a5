package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wagoodman/go-partybus"

	"github.com/nerrad567/versionwatch/internal/store"
)

type disableCall struct {
	reason string
	paths  []string
}

type fakeStore struct {
	mu       sync.Mutex
	files    store.Files
	disabled []disableCall
}

func (f *fakeStore) Files(context.Context) (store.Files, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.files.Clone(), nil
}

func (f *fakeStore) DisableFiles(_ context.Context, match func(store.WatchedFile) bool, reason string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := disableCall{reason: reason}
	for id, file := range f.files {
		if match(file) {
			file.Enabled = false
			file.UpdateState = reason
			f.files[id] = file
			call.paths = append(call.paths, file.Path)
		}
	}
	f.disabled = append(f.disabled, call)
	return len(call.paths), nil
}

func (f *fakeStore) set(files ...store.WatchedFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = store.Files{}
	for _, file := range files {
		f.files[file.ID] = file
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func nextEvent(t *testing.T, sub *partybus.Subscription, want partybus.EventType, path string) ChangeEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-sub.Events():
			change, ok := ev.Value.(ChangeEvent)
			require.True(t, ok, "event value %T", ev.Value)
			if ev.Type == want && change.Path == path {
				return change
			}
		case <-deadline:
			t.Fatalf("no %s event for %s", want, path)
			return ChangeEvent{}
		}
	}
}

func assertNoEvent(t *testing.T, sub *partybus.Subscription, path string, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case ev := <-sub.Events():
			if change, ok := ev.Value.(ChangeEvent); ok && change.Path == path {
				t.Fatalf("unexpected %s event for %s", ev.Type, path)
			}
		case <-deadline:
			return
		}
	}
}

type harness struct {
	engine    *Engine
	store     *fakeStore
	sub       *partybus.Subscription
	dir       string
	storePath string
}

func newHarness(t *testing.T, files ...store.WatchedFile) *harness {
	t.Helper()
	dir := t.TempDir()
	storePath := filepath.Join(dir, "db", "kv.db")
	writeFile(t, storePath, "")

	fs := &fakeStore{}
	fs.set(files...)

	bus := partybus.NewBus()
	sub := bus.Subscribe(EventFileChanged, EventStoreChanged)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	e := New(bus, fs, storePath)
	require.NoError(t, e.Start(ctx))
	t.Cleanup(e.Close)

	return &harness{engine: e, store: fs, sub: sub, dir: dir, storePath: storePath}
}

func TestEngine_PublishesWatchedFileChanges(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "bin", "app.cfg")
	sibling := filepath.Join(dir, "bin", "other.cfg")
	writeFile(t, app, "v1")

	h := newHarness(t, store.WatchedFile{ID: "1", Path: app, Enabled: true})

	writeFile(t, sibling, "noise")
	writeFile(t, app, "v2")

	change := nextEvent(t, h.sub, EventFileChanged, Canonical(app))
	assert.Equal(t, uint64(1), change.Generation)
	assertNoEvent(t, h.sub, Canonical(sibling), 100*time.Millisecond)
}

func TestEngine_PublishesStoreChanges(t *testing.T) {
	h := newHarness(t)

	writeFile(t, h.storePath, "changed")

	nextEvent(t, h.sub, EventStoreChanged, Canonical(h.storePath))
}

func TestEngine_DisabledFilesAreIgnored(t *testing.T) {
	dir := t.TempDir()
	off := filepath.Join(dir, "off.cfg")
	writeFile(t, off, "v1")

	h := newHarness(t, store.WatchedFile{ID: "1", Path: off, Enabled: false})
	assert.NotContains(t, h.engine.Dirs(), Canonical(dir))

	writeFile(t, off, "v2")
	assertNoEvent(t, h.sub, Canonical(off), 150*time.Millisecond)
}

func TestEngine_RefreshUnchangedKeepsGeneration(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.cfg")
	b := filepath.Join(dir, "b.cfg")
	writeFile(t, a, "a")
	writeFile(t, b, "b")

	h := newHarness(t, store.WatchedFile{ID: "a", Path: a, Enabled: true})
	dirs := h.engine.Dirs()
	require.Equal(t, uint64(1), h.engine.Generation())

	// Same directory, one more file: only the filter changes.
	h.store.set(
		store.WatchedFile{ID: "a", Path: a, Enabled: true},
		store.WatchedFile{ID: "b", Path: b, Enabled: true},
	)
	require.NoError(t, h.engine.Refresh(context.Background()))

	assert.Equal(t, uint64(1), h.engine.Generation())
	assert.Equal(t, dirs, h.engine.Dirs())

	writeFile(t, b, "b2")
	change := nextEvent(t, h.sub, EventFileChanged, Canonical(b))
	assert.Equal(t, uint64(1), change.Generation)
}

func TestEngine_RefreshNewDirectoryStartsNewGeneration(t *testing.T) {
	first := filepath.Join(t.TempDir(), "a.cfg")
	second := filepath.Join(t.TempDir(), "b.cfg")
	writeFile(t, first, "a")
	writeFile(t, second, "b")

	h := newHarness(t, store.WatchedFile{ID: "a", Path: first, Enabled: true})

	h.store.set(store.WatchedFile{ID: "b", Path: second, Enabled: true})
	require.NoError(t, h.engine.Refresh(context.Background()))

	assert.Equal(t, uint64(2), h.engine.Generation())
	assert.Contains(t, h.engine.Dirs(), Dir(Canonical(second)))
	assert.NotContains(t, h.engine.Dirs(), Dir(Canonical(first)))

	writeFile(t, second, "b2")
	change := nextEvent(t, h.sub, EventFileChanged, Canonical(second))
	assert.Equal(t, uint64(2), change.Generation)
}

func TestEngine_WatchFailureDisablesFilesInDirectory(t *testing.T) {
	good := filepath.Join(t.TempDir(), "good.cfg")
	writeFile(t, good, "ok")
	badDir := filepath.Join(t.TempDir(), "locked")
	bad1 := filepath.Join(badDir, "one.dll")
	bad2 := filepath.Join(badDir, "two.dll")

	dir := t.TempDir()
	storePath := filepath.Join(dir, "kv.db")
	writeFile(t, storePath, "")

	fs := &fakeStore{}
	fs.set(
		store.WatchedFile{ID: "g", Path: good, Enabled: true},
		store.WatchedFile{ID: "b1", Path: bad1, Enabled: true},
		store.WatchedFile{ID: "b2", Path: bad2, Enabled: true},
	)

	e := New(partybus.NewBus(), fs, storePath)
	e.addWatch = func(w *fsnotify.Watcher, d string) error {
		if Canonical(d) == Canonical(badDir) {
			return errors.New("permission denied")
		}
		return w.Add(d)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))
	defer e.Close()

	require.Len(t, fs.disabled, 1)
	assert.ElementsMatch(t, []string{bad1, bad2}, fs.disabled[0].paths)
	assert.Contains(t, fs.disabled[0].reason, ErrWatchFailed.Error())
	assert.Contains(t, fs.disabled[0].reason, "permission denied")

	files, _ := fs.Files(ctx)
	assert.True(t, files["g"].Enabled)
	assert.False(t, files["b1"].Enabled)
	assert.NotContains(t, e.Dirs(), Canonical(badDir))
}

func TestEngine_FailedDirectoryIsRetried(t *testing.T) {
	dir := t.TempDir()
	app := filepath.Join(dir, "bin", "app.cfg")
	writeFile(t, app, "v1")
	storePath := filepath.Join(dir, "kv.db")
	writeFile(t, storePath, "")

	fs := &fakeStore{}
	fs.set(store.WatchedFile{ID: "1", Path: app, Enabled: true})

	var fail atomic.Bool
	fail.Store(true)
	e := New(partybus.NewBus(), fs, storePath)
	e.addWatch = func(w *fsnotify.Watcher, d string) error {
		if fail.Load() && Canonical(d) == Dir(Canonical(app)) {
			return errors.New("too many open files")
		}
		return w.Add(d)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.Start(ctx))
	defer e.Close()
	require.NotContains(t, e.Dirs(), Dir(Canonical(app)))

	// Same plan once the file is enabled again: the failed directory is retried.
	fail.Store(false)
	fs.set(store.WatchedFile{ID: "1", Path: app, Enabled: true})
	require.NoError(t, e.Refresh(ctx))

	assert.Equal(t, uint64(2), e.Generation())
	assert.Contains(t, e.Dirs(), Dir(Canonical(app)))
}

func TestEngine_RemovedDirectoryIsRewatched(t *testing.T) {
	binDir := filepath.Join(t.TempDir(), "bin")
	app := filepath.Join(binDir, "app.cfg")
	writeFile(t, app, "v1")

	h := newHarness(t, store.WatchedFile{ID: "1", Path: app, Enabled: true})
	require.Equal(t, uint64(1), h.engine.Generation())

	require.NoError(t, os.RemoveAll(binDir))

	// The rebuild cannot watch the missing directory and records that on
	// its files.
	require.Eventually(t, func() bool {
		h.store.mu.Lock()
		defer h.store.mu.Unlock()
		return len(h.store.disabled) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, h.engine.Generation(), uint64(2))
	assert.NotContains(t, h.engine.Dirs(), Canonical(binDir))

	h.store.mu.Lock()
	reason := h.store.disabled[0].reason
	h.store.mu.Unlock()
	assert.Contains(t, reason, ErrWatchFailed.Error())

	// The directory comes back and the file is re-enabled.
	writeFile(t, app, "v2")
	h.store.set(store.WatchedFile{ID: "1", Path: app, Enabled: true})
	require.NoError(t, h.engine.Refresh(context.Background()))
	gen := h.engine.Generation()
	assert.Contains(t, h.engine.Dirs(), Canonical(binDir))

	writeFile(t, app, "v3")
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-h.sub.Events():
			if change, ok := ev.Value.(ChangeEvent); ok && change.Path == Canonical(app) && change.Generation == gen {
				return
			}
		case <-deadline:
			t.Fatalf("no event for %s in generation %d", app, gen)
		}
	}
}

func TestEngine_RefreshBeforeStart(t *testing.T) {
	e := New(partybus.NewBus(), &fakeStore{files: store.Files{}}, "/tmp/kv.db")
	assert.ErrorIs(t, e.Refresh(context.Background()), ErrNotStarted)
}

func TestEngine_CloseStopsRefresh(t *testing.T) {
	h := newHarness(t)
	h.engine.Close()
	assert.ErrorIs(t, h.engine.Refresh(context.Background()), ErrNotStarted)
}
