package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/nerrad567/versionwatch/internal/infrastructure/logging"
)

// healthCheckTimeout bounds each component health check.
const healthCheckTimeout = 3 * time.Second

// ServiceInfo is the /info response.
type ServiceInfo struct {
	Service       string         `json:"service"`
	Version       string         `json:"version"`
	Timestamp     string         `json:"timestamp"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StorePath     string         `json:"store_path"`
	Runtime       RuntimeInfo    `json:"runtime"`
	WebSocket     WebSocketInfo  `json:"websocket"`
	Broker        BrokerInfo     `json:"broker"`
	Files         FileCountsInfo `json:"files"`
	Watch         *WatchSetInfo  `json:"watch,omitempty"`
}

// RuntimeInfo contains Go runtime statistics.
type RuntimeInfo struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WebSocketInfo contains WebSocket hub statistics.
type WebSocketInfo struct {
	ConnectedClients int `json:"connected_clients"`
}

// BrokerInfo is the live connection status.
type BrokerInfo struct {
	Configured bool   `json:"configured"`
	Connected  bool   `json:"connected"`
	State      string `json:"state"`
}

// FileCountsInfo summarises the files snapshot.
type FileCountsInfo struct {
	Total   int `json:"total"`
	Enabled int `json:"enabled"`
}

// WatchSetInfo describes the active directory watches.
type WatchSetInfo struct {
	Generation  uint64   `json:"generation"`
	Directories []string `json:"directories"`
}

const bytesPerMB = 1024 * 1024

// handleInfo returns service, runtime, broker and watch information.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	info := ServiceInfo{
		Service:       logging.ServiceName,
		Version:       s.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		StorePath:     s.storePath,
		Runtime: RuntimeInfo{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / bytesPerMB,
			NumGC:         mem.NumGC,
		},
		WebSocket: WebSocketInfo{ConnectedClients: s.hub.ClientCount()},
	}

	if s.conn != nil {
		info.Broker.Configured = true
		info.Broker.Connected, info.Broker.State = s.conn.State()
	}

	if files, err := s.store.Files(r.Context()); err == nil {
		info.Files.Total = len(files)
		info.Files.Enabled = len(files.Enabled())
	} else {
		s.logger.Warn("reading files for info", "error", err)
	}

	if s.watch != nil {
		info.Watch = &WatchSetInfo{
			Generation:  s.watch.Generation(),
			Directories: s.watch.Dirs(),
		}
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth checks every registered component. Any failure yields 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.health))
	for name := range s.health {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.health[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			healthy = false
			checks[name] = err.Error()
			continue
		}
		checks[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}

// snapshot loads the state pushed to WebSocket clients.
func (s *Server) snapshot(ctx context.Context) (snapshot, error) {
	files, err := s.store.Files(ctx)
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{Files: sortedFiles(files)}
	if b, err := s.store.Broker(ctx); err == nil {
		snap.Broker = &b
	}
	return snap, nil
}
