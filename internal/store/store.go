package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/nerrad567/versionwatch/internal/infrastructure/database"
)

// querier is satisfied by both *database.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite-backed key-value snapshot store.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//   - Writers are serialised by a process-wide RWMutex.
type Store struct {
	db *database.DB
	mu sync.RWMutex

	// pathExists backs the enablement rule; replaced in tests.
	pathExists func(string) bool
	now        func() time.Time
}

// New creates a Store over an open, migrated database.
func New(db *database.DB) *Store {
	return &Store{
		db:         db,
		pathExists: fileExists,
		now:        time.Now,
	}
}

// BackingPath returns the on-disk file that changes when a snapshot is written.
func (s *Store) BackingPath() string {
	return s.db.BackingPath()
}

// Get decodes the snapshot stored under key into out.
// Returns ErrNotFound if the key is absent and ErrCorrupt if it cannot be decoded.
func (s *Store) Get(ctx context.Context, key string, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(ctx, s.db, key, out)
}

// Put encodes value as JSON and stores it under key, replacing any previous
// snapshot. Returns ErrWrite on failure.
func (s *Store) Put(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return put(ctx, s.db, key, value, s.now())
}

// Tx is the view of the store handed to Update callbacks. It is only valid
// for the duration of the callback.
type Tx struct {
	ctx context.Context
	q   querier
	now time.Time
}

// Get decodes the snapshot under key. See Store.Get.
func (tx *Tx) Get(key string, out any) error {
	return get(tx.ctx, tx.q, key, out)
}

// Put stores value under key. See Store.Put.
func (tx *Tx) Put(key string, value any) error {
	return put(tx.ctx, tx.q, key, value, tx.now)
}

// Files returns the files snapshot; a missing key yields an empty map.
func (tx *Tx) Files() (Files, error) {
	files := Files{}
	if err := tx.Get(KeyFiles, &files); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return files, nil
}

// Broker returns the broker snapshot or ErrNotFound.
func (tx *Tx) Broker() (BrokerConfig, error) {
	var b BrokerConfig
	err := tx.Get(KeyBroker, &b)
	return b, err
}

// Update runs fn while holding the store write lock, inside a single SQLite
// transaction. If fn returns an error nothing it wrote is committed.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - fn: Read-modify-write callback
//
// Returns:
//   - error: fn's error, or ErrWrite if the commit fails
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	defer sqlTx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(&Tx{ctx: ctx, q: sqlTx, now: s.now()}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %v", ErrWrite, err)
	}
	return nil
}

// View runs fn while holding the store read lock. fn must not call Put.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{ctx: ctx, q: s.db, now: s.now()})
}

// Files returns the files snapshot; a missing key yields an empty map.
func (s *Store) Files(ctx context.Context) (Files, error) {
	var files Files
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		files, err = tx.Files()
		return err
	})
	return files, err
}

// Broker returns the broker snapshot or ErrNotFound.
func (s *Store) Broker(ctx context.Context) (BrokerConfig, error) {
	var b BrokerConfig
	err := s.View(ctx, func(tx *Tx) error {
		var err error
		b, err = tx.Broker()
		return err
	})
	return b, err
}

func get(ctx context.Context, q querier, key string, out any) error {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: key %q", ErrNotFound, key)
		}
		return fmt.Errorf("reading key %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: key %q: %v", ErrCorrupt, key, err)
	}
	return nil
}

func put(ctx context.Context, q querier, key string, value any, now time.Time) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding key %q: %v", ErrWrite, key, err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), now.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: key %q: %v", ErrWrite, key, err)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
