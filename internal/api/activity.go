package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/versionwatch/internal/audit"
)

// handleListActivity returns the activity trail, newest first.
//
// Query parameters: action, entity_type, entity_id, message (substring),
// since and until (RFC 3339), limit, offset.
func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "activity trail not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		Message:    q.Get("message"),
	}

	var err error
	if filter.Since, err = parseTimeParam(q.Get("since")); err != nil {
		writeBadRequest(w, "since must be an RFC 3339 timestamp")
		return
	}
	if filter.Until, err = parseTimeParam(q.Get("until")); err != nil {
		writeBadRequest(w, "until must be an RFC 3339 timestamp")
		return
	}
	if filter.Limit, err = parseIntParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if filter.Offset, err = parseIntParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing activity", "error", err)
		writeInternalError(w, "failed to list activity")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

func parseIntParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// record appends an admin edit to the activity trail. Failures are logged.
func (s *Server) record(ctx context.Context, action, entityType, entityID, message string, details map[string]any) {
	if s.audit == nil {
		return
	}
	e := &audit.Entry{
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     audit.SourceAPI,
		Message:    message,
		Details:    details,
	}
	if err := s.audit.Record(ctx, e); err != nil {
		s.logger.Warn("recording activity", "action", action, "error", err)
	}
}
