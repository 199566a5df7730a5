package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/versionwatch/internal/audit"
	"github.com/nerrad567/versionwatch/internal/store"
)

// handleGetBroker returns the broker record, status fields included.
func (s *Server) handleGetBroker(w http.ResponseWriter, r *http.Request) {
	b, err := s.store.Broker(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleUpdateBroker applies a partial update to the broker settings. The
// connection picks the change up from the store.
func (s *Server) handleUpdateBroker(w http.ResponseWriter, r *http.Request) {
	var p store.BrokerPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	b, err := s.store.PatchBroker(r.Context(), p)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.Info("broker settings updated", "host", b.Host, "port", b.Port, "protocol", b.Protocol)
	s.record(r.Context(), audit.ActionUpdate, audit.EntityBroker, "", "broker settings updated",
		map[string]any{"host": b.Host, "port": b.Port, "protocol": b.Protocol, "client_id": b.ClientID})
	writeJSON(w, http.StatusOK, b)
}

// handleReconnectBroker rebuilds the broker connection from the stored
// settings, including after a fatal error stopped it.
func (s *Server) handleReconnectBroker(w http.ResponseWriter, r *http.Request) {
	if s.conn == nil {
		writeUnavailable(w, "broker connection not configured")
		return
	}

	if err := s.conn.Restart(r.Context()); err != nil {
		s.logger.Warn("broker reconnect failed", "error", err)
		writeUnavailable(w, err.Error())
		return
	}

	s.record(r.Context(), audit.ActionReconnect, audit.EntityBroker, "", "broker reconnect requested", nil)

	connected, state := s.conn.State()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"connected": connected,
		"state":     state,
	})
}
