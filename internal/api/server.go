package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nerrad567/versionwatch/internal/audit"
	"github.com/nerrad567/versionwatch/internal/debounce"
	"github.com/nerrad567/versionwatch/internal/infrastructure/config"
	"github.com/nerrad567/versionwatch/internal/infrastructure/logging"
	"github.com/nerrad567/versionwatch/internal/store"
	"github.com/nerrad567/versionwatch/internal/watch"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// storeChangeWindow coalesces the burst of filesystem events one store write
// produces into a single WebSocket push.
const storeChangeWindow = 100 * time.Millisecond

// Store is the part of the store the API needs.
type Store interface {
	Files(ctx context.Context) (store.Files, error)
	CreateFile(ctx context.Context, in store.FileInput) (store.WatchedFile, error)
	PatchFile(ctx context.Context, id string, p store.FilePatch) (store.WatchedFile, error)
	DeleteFile(ctx context.Context, id string) error
	Broker(ctx context.Context) (store.BrokerConfig, error)
	PatchBroker(ctx context.Context, p store.BrokerPatch) (store.BrokerConfig, error)
}

// Connection is the broker connection as seen by the API.
type Connection interface {
	State() (connected bool, state string)
	Restart(ctx context.Context) error
}

// WatchInfo reports the current watch set.
type WatchInfo interface {
	Dirs() []string
	Generation() uint64
}

// HealthChecker is implemented by components that can report their own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	Logger     *logging.Logger
	Store      Store
	Connection Connection // optional
	Watch      WatchInfo  // optional
	Bus        watch.Bus  // optional; enables WebSocket pushes
	Health     map[string]HealthChecker
	Audit      audit.Repository // optional; enables /activity and edit recording
	StorePath  string
	Version    string
}

// Server is the HTTP API server for versionwatch.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	logger    *logging.Logger
	store     Store
	conn      Connection
	watch     WatchInfo
	bus       watch.Bus
	health    map[string]HealthChecker
	audit     audit.Repository
	storePath string
	version   string
	started   time.Time

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc // cancels background goroutines on Close()
	done     chan struct{}
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, store)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}

	s := &Server{
		cfg:       deps.Config,
		logger:    deps.Logger,
		store:     deps.Store,
		conn:      deps.Connection,
		watch:     deps.Watch,
		bus:       deps.Bus,
		health:    deps.Health,
		audit:     deps.Audit,
		storePath: deps.StorePath,
		version:   deps.Version,
		started:   time.Now(),
	}
	s.hub = NewHub(s.logger, s.snapshot)
	return s, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays store changes from the bus to
// WebSocket clients, binds the listener and serves in a background
// goroutine. The server can be stopped with Close().
//
// Parameters:
//   - ctx: Parent context for background goroutines
//
// Returns:
//   - error: If the listener cannot be bound (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	if s.bus != nil {
		go s.relayStoreChanges(srvCtx)
	}

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port)),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("binding API listener: %w", err)
	}
	s.listener = ln
	s.done = make(chan struct{})

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	<-s.done
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}

// relayStoreChanges pushes fresh snapshots to WebSocket clients whenever
// the watch engine reports a store change.
func (s *Server) relayStoreChanges(ctx context.Context) {
	sub := s.bus.Subscribe(watch.EventStoreChanged)
	d := debounce.New(storeChangeWindow)
	defer func() {
		d.Stop()
		if err := s.bus.Unsubscribe(sub); err != nil {
			s.logger.Debug("unsubscribing from bus", "error", err)
		}
	}()

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			d.Debounce("store", func() { s.hub.BroadcastSnapshot(ctx) })
		}
	}
}
