package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/versionwatch/internal/audit"
	"github.com/nerrad567/versionwatch/internal/store"
)

// sortedFiles returns files ordered by name, then id.
func sortedFiles(files store.Files) []store.WatchedFile {
	out := make([]store.WatchedFile, 0, len(files))
	for _, f := range files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// handleListFiles returns every WatchedFile.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.Files(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sortedFiles(files))
}

// handleGetFile returns one WatchedFile by id.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	files, err := s.store.Files(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	f, ok := files[id]
	if !ok {
		writeNotFound(w, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// handleCreateFile adds a WatchedFile. Enabled is forced off when the path
// does not exist.
func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var in store.FileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeValidationError(w, "name is required")
		return
	}

	f, err := s.store.CreateFile(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.Info("watched file added", "id", f.ID, "name", f.Name, "path", f.Path, "enabled", f.Enabled)
	s.record(r.Context(), audit.ActionCreate, audit.EntityFile, f.ID, "watched file "+f.Name+" added",
		map[string]any{"path": f.Path, "enabled": f.Enabled, "mqtt_topic": f.MQTTTopic})
	writeJSON(w, http.StatusCreated, f)
}

// handleUpdateFile applies a partial update to a WatchedFile.
func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var p store.FilePatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	f, err := s.store.PatchFile(r.Context(), id, p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.Info("watched file updated", "id", f.ID, "enabled", f.Enabled)
	s.record(r.Context(), audit.ActionUpdate, audit.EntityFile, f.ID, "watched file "+f.Name+" updated",
		map[string]any{"path": f.Path, "enabled": f.Enabled, "mqtt_topic": f.MQTTTopic})
	writeJSON(w, http.StatusOK, f)
}

// handleDeleteFile removes a WatchedFile.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.store.DeleteFile(r.Context(), id); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.Info("watched file deleted", "id", id)
	s.record(r.Context(), audit.ActionDelete, audit.EntityFile, id, "watched file deleted", nil)
	w.WriteHeader(http.StatusNoContent)
}
