package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileInput holds the fields accepted when creating a WatchedFile.
type FileInput struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	Enabled   bool   `json:"enabled"`
	MQTTTopic string `json:"mqtt_topic"`
}

// FilePatch holds optional field updates for a WatchedFile. Nil fields are
// left untouched.
type FilePatch struct {
	Name          *string `json:"name,omitempty"`
	Path          *string `json:"path,omitempty"`
	Enabled       *bool   `json:"enabled,omitempty"`
	MQTTTopic     *string `json:"mqtt_topic,omitempty"`
	LastVersion   *string `json:"last_version,omitempty"`
	LastUpdateUTC *string `json:"last_update_utc,omitempty"`
	UpdateState   *string `json:"update_state,omitempty"`
}

// CreateFile adds a new WatchedFile with a fresh UUID. Enabled is forced to
// false when the path does not exist.
//
// Returns:
//   - WatchedFile: The stored entry
//   - error: ErrInvalid for an empty path, ErrWrite on persistence failure
func (s *Store) CreateFile(ctx context.Context, in FileInput) (WatchedFile, error) {
	if strings.TrimSpace(in.Path) == "" {
		return WatchedFile{}, fmt.Errorf("%w: path is required", ErrInvalid)
	}

	file := WatchedFile{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Path:      in.Path,
		Enabled:   in.Enabled && s.pathExists(in.Path),
		MQTTTopic: in.MQTTTopic,
	}

	err := s.Update(ctx, func(tx *Tx) error {
		files, err := tx.Files()
		if err != nil {
			return err
		}
		files[file.ID] = file
		return tx.Put(KeyFiles, files)
	})
	if err != nil {
		return WatchedFile{}, err
	}
	return file, nil
}

// PatchFile applies p to the entry with the given id. Enablement is
// re-checked whenever Enabled or Path is part of the patch.
//
// Returns:
//   - WatchedFile: The updated entry
//   - error: ErrNotFound if id is unknown, ErrWrite on persistence failure
func (s *Store) PatchFile(ctx context.Context, id string, p FilePatch) (WatchedFile, error) {
	var out WatchedFile
	err := s.Update(ctx, func(tx *Tx) error {
		files, err := tx.Files()
		if err != nil {
			return err
		}
		file, ok := files[id]
		if !ok {
			return fmt.Errorf("%w: file %s", ErrNotFound, id)
		}

		applyFilePatch(&file, p)
		if (p.Enabled != nil || p.Path != nil) && file.Enabled && !s.pathExists(file.Path) {
			file.Enabled = false
		}

		files[id] = file
		out = file
		return tx.Put(KeyFiles, files)
	})
	return out, err
}

func applyFilePatch(f *WatchedFile, p FilePatch) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Path != nil {
		f.Path = *p.Path
	}
	if p.Enabled != nil {
		f.Enabled = *p.Enabled
	}
	if p.MQTTTopic != nil {
		f.MQTTTopic = *p.MQTTTopic
	}
	if p.LastVersion != nil {
		f.LastVersion = *p.LastVersion
	}
	if p.LastUpdateUTC != nil {
		f.LastUpdateUTC = *p.LastUpdateUTC
	}
	if p.UpdateState != nil {
		f.UpdateState = *p.UpdateState
	}
}

// DeleteFile removes the entry with the given id.
// Returns ErrNotFound if it does not exist.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	return s.Update(ctx, func(tx *Tx) error {
		files, err := tx.Files()
		if err != nil {
			return err
		}
		if _, ok := files[id]; !ok {
			return fmt.Errorf("%w: file %s", ErrNotFound, id)
		}
		delete(files, id)
		return tx.Put(KeyFiles, files)
	})
}

// DisableFiles sets enabled=false and records reason on every entry for
// which match returns true. Returns the number of entries changed.
func (s *Store) DisableFiles(ctx context.Context, match func(WatchedFile) bool, reason string) (int, error) {
	changed := 0
	err := s.Update(ctx, func(tx *Tx) error {
		files, err := tx.Files()
		if err != nil {
			return err
		}
		stamp := Timestamp(s.now())
		for id, f := range files {
			if !match(f) {
				continue
			}
			f.Enabled = false
			f.UpdateState = reason
			f.LastUpdateUTC = stamp
			files[id] = f
			changed++
		}
		if changed == 0 {
			return nil
		}
		return tx.Put(KeyFiles, files)
	})
	return changed, err
}

// Timestamp formats t the way last_update_utc is stored.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
