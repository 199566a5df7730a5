package pipeline

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/wagoodman/go-partybus"

	"github.com/nerrad567/versionwatch/internal/audit"
	"github.com/nerrad567/versionwatch/internal/debounce"
	"github.com/nerrad567/versionwatch/internal/metrics"
	"github.com/nerrad567/versionwatch/internal/store"
	"github.com/nerrad567/versionwatch/internal/version"
	"github.com/nerrad567/versionwatch/internal/watch"
)

// Logger defines the logging interface used by the Pipeline.
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

// Store is the part of the store the Pipeline needs.
type Store interface {
	Files(ctx context.Context) (store.Files, error)
	Update(ctx context.Context, fn func(tx *store.Tx) error) error
}

// Watcher rebuilds the directory watch set.
type Watcher interface {
	Refresh(ctx context.Context) error
}

// Connection is the broker side: reloadable settings and fire-and-forget
// publishing.
type Connection interface {
	Refresh(ctx context.Context) error
	Publish(topic string, payload []byte)
}

// Resolver reads a file's current version.
type Resolver interface {
	Resolve(ctx context.Context, path string) (string, error)
}

// History records resolved versions.
type History interface {
	WriteFileVersion(fileID, name, version string, at time.Time)
}

// Pipeline routes debounced change events to configuration reloads or
// version updates.
type Pipeline struct {
	bus       watch.Bus
	store     Store
	watcher   Watcher
	conn      Connection
	resolver  Resolver
	debouncer *debounce.Debouncer
	history   History
	audit     audit.Recorder
	logger    Logger
	now       func() time.Time
}

// New creates a Pipeline.
//
// Parameters:
//   - bus: Source of watch events
//   - st: WatchedFile and broker snapshots
//   - w: Watch engine, refreshed when the store changes
//   - conn: Broker connection, refreshed when the store changes
//   - r: Version resolver
//   - window: Debounce quiet window per path
func New(bus watch.Bus, st Store, w Watcher, conn Connection, r Resolver, window time.Duration) *Pipeline {
	return &Pipeline{
		bus:       bus,
		store:     st,
		watcher:   w,
		conn:      conn,
		resolver:  r,
		debouncer: debounce.New(window),
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger. Call before Run.
func (p *Pipeline) SetLogger(logger Logger) {
	p.logger = logger
}

// SetHistory enables version history. Call before Run.
func (p *Pipeline) SetHistory(h History) {
	p.history = h
}

// SetAudit enables the activity trail. Call before Run.
func (p *Pipeline) SetAudit(r audit.Recorder) {
	p.audit = r
}

// Prime resolves and records the version of every enabled file, once per
// distinct path, regardless of filesystem activity.
//
// Returns:
//   - error: Only if the files snapshot cannot be read
func (p *Pipeline) Prime(ctx context.Context) error {
	files, err := p.store.Files(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{})
	var paths []string
	for _, f := range files.Enabled() {
		c := watch.Canonical(f.Path)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		paths = append(paths, c)
	}
	sort.Strings(paths)

	p.logger.Info("priming file versions", "paths", len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.process(ctx, path)
	}
	return nil
}

// Run consumes watch events until ctx is cancelled. Pending debounced
// actions are dropped on return.
func (p *Pipeline) Run(ctx context.Context) error {
	sub := p.bus.Subscribe(watch.EventFileChanged, watch.EventStoreChanged)
	defer func() {
		p.debouncer.Stop()
		if err := p.bus.Unsubscribe(sub); err != nil {
			p.logger.Debug("unsubscribing from bus", "error", err)
		}
	}()

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.dispatch(ctx, ev)
		}
	}
}

func (p *Pipeline) dispatch(ctx context.Context, ev partybus.Event) {
	change, ok := ev.Value.(watch.ChangeEvent)
	if !ok {
		p.logger.Warn("unexpected event value", "type", ev.Type)
		return
	}

	var action func()
	switch ev.Type {
	case watch.EventStoreChanged:
		action = func() { p.reload(ctx) }
	case watch.EventFileChanged:
		action = func() { p.process(ctx, change.Path) }
	default:
		return
	}

	before := p.debouncer.Superseded()
	p.debouncer.Debounce(change.Path, action)
	if p.debouncer.Superseded() > before {
		metrics.DebounceSupersededTotal.Inc()
	}
}

// reload picks up edited configuration: the watch set first, then the
// broker connection.
func (p *Pipeline) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	p.logger.Debug("store changed, reloading")
	if err := p.watcher.Refresh(ctx); err != nil {
		p.logger.Error("refreshing watch set", "error", err)
	}
	if err := p.conn.Refresh(ctx); err != nil {
		p.logger.Error("refreshing broker connection", "error", err)
	}
}

// process resolves path and records the outcome.
func (p *Pipeline) process(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}

	v, err := p.resolver.Resolve(ctx, path)
	result := "ok"
	if err != nil {
		result = "error"
		p.logger.Warn("resolving version", "path", path, "error", err)
	}
	metrics.ResolveTotal.WithLabelValues(version.StrategyFor(path).String(), result).Inc()

	if _, err := p.UpdateAndPublish(ctx, path, v, err); err != nil {
		p.logger.Error("recording version", "path", path, "error", err)
	}
}

// outgoing is a payload assembled under the store lock.
type outgoing struct {
	topic   string
	payload []byte
}

// UpdateAndPublish records a resolution result on every file whose canonical
// path equals path, enabled or not, then publishes one measurement per entry
// if the broker is connected.
//
// Parameters:
//   - ctx: Context for the store transaction
//   - path: Canonical path that was resolved
//   - v: Resolved version; ignored when resolveErr is set
//   - resolveErr: Resolution failure, stored as the entries' update state
//
// Returns:
//   - int: Number of entries updated
//   - error: Store failure; payloads already assembled are still published
func (p *Pipeline) UpdateAndPublish(ctx context.Context, path, v string, resolveErr error) (int, error) {
	now := p.now()
	stamp := store.Timestamp(now)

	var (
		out     []outgoing
		updated []store.WatchedFile
	)
	err := p.store.Update(ctx, func(tx *store.Tx) error {
		out, updated = nil, nil

		files, err := tx.Files()
		if err != nil {
			return err
		}
		broker, err := tx.Broker()
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		for id, f := range files {
			if watch.Canonical(f.Path) != path {
				continue
			}

			f.LastUpdateUTC = stamp
			switch {
			case resolveErr != nil:
				f.UpdateState = resolveErr.Error()
			case broker.Connected:
				f.LastVersion = v
				payload, err := NewMeasurement(broker, f, now).Marshal()
				if err != nil {
					f.UpdateState = err.Error()
					break
				}
				f.UpdateState = store.StateSuccess
				out = append(out, outgoing{topic: f.MQTTTopic, payload: payload})
			default:
				f.LastVersion = v
				f.UpdateState = store.StateBrokerUnavailable
			}
			files[id] = f
			updated = append(updated, f)
		}

		if len(updated) == 0 {
			return nil
		}
		return tx.Put(store.KeyFiles, files)
	})

	for _, o := range out {
		p.conn.Publish(o.topic, o.payload)
	}

	if resolveErr == nil && p.history != nil {
		for _, f := range updated {
			p.history.WriteFileVersion(f.ID, f.Name, v, now)
		}
	}
	p.recordActivity(ctx, updated, v, resolveErr, now)

	if len(updated) > 0 {
		p.logger.Info("file version recorded",
			"path", path,
			"entries", len(updated),
			"published", len(out),
			"version", v,
		)
	}
	return len(updated), err
}

// recordActivity appends one trail entry per updated file.
func (p *Pipeline) recordActivity(ctx context.Context, updated []store.WatchedFile, v string, resolveErr error, at time.Time) {
	if p.audit == nil {
		return
	}
	for _, f := range updated {
		e := &audit.Entry{
			Action:     audit.ActionVersion,
			EntityType: audit.EntityFile,
			EntityID:   f.ID,
			Source:     audit.SourcePipeline,
			Message:    f.Name + " " + v,
			Details: map[string]any{
				"path":         f.Path,
				"version":      v,
				"update_state": f.UpdateState,
			},
			CreatedAt: at,
		}
		if resolveErr != nil {
			e.Action = audit.ActionResolveError
			e.Message = f.Name + ": " + resolveErr.Error()
			e.Details = map[string]any{"path": f.Path, "error": resolveErr.Error()}
		}
		if err := p.audit.Record(ctx, e); err != nil {
			p.logger.Warn("recording activity", "file", f.ID, "error", err)
		}
	}
}
