package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/versionwatch/internal/metrics"
	"github.com/nerrad567/versionwatch/internal/store"
)

// Persisted broker state texts.
const (
	StateConnecting   = "Connecting"
	StateConnected    = "Connected"
	StateDisconnected = "Disconnected"
)

// Default backoff bounds.
const (
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 60 * time.Second
)

// Logger defines the logging interface used by the Manager.
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

// BrokerStore is the part of the store the Manager needs.
type BrokerStore interface {
	Broker(ctx context.Context) (store.BrokerConfig, error)
	EnsureBroker(ctx context.Context, defaults store.BrokerConfig) (store.BrokerConfig, error)
	SetBrokerStatus(ctx context.Context, connected bool, state string) error
}

// Settings tune the Manager's connection behaviour.
type Settings struct {
	KeepAlive    time.Duration
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// session is one client plus the goroutine driving its event loop.
type session struct {
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	client   Client
	loop     EventLoop
	conn     store.ConnectionSettings
	clientID string
	tls      bool
	done     chan struct{}

	// Guarded by Manager.mu.
	connected bool
	state     string
	stopped   bool
}

// Manager owns the broker connection. It rebuilds the connection when the
// stored broker settings change and persists connection status back to the
// store.
//
// Lock order: statusMu before mu. Status writes hold statusMu across the
// store write so a superseded session can never persist after its
// replacement is installed.
type Manager struct {
	transport Transport
	store     BrokerStore
	settings  Settings
	logger    Logger

	statusMu sync.Mutex

	mu        sync.Mutex
	parent    context.Context
	current   *session
	gen       uint64
	closed    bool
	onConnect func()
	wg        sync.WaitGroup
}

// NewManager creates a Manager and makes sure a broker record exists.
//
// Parameters:
//   - ctx: Context for the initial store access
//   - transport: Creates clients; PahoTransport in production
//   - st: Broker record persistence
//   - defaults: Broker record written when the store has none
//   - settings: Keepalive and backoff bounds; zero values use defaults
//
// Returns:
//   - *Manager: Ready to Start
//   - error: If the broker record cannot be read or written
func NewManager(ctx context.Context, transport Transport, st BrokerStore, defaults store.BrokerConfig, settings Settings) (*Manager, error) {
	if _, err := st.EnsureBroker(ctx, defaults); err != nil {
		return nil, fmt.Errorf("initialising broker record: %w", err)
	}
	if settings.InitialDelay <= 0 {
		settings.InitialDelay = DefaultInitialDelay
	}
	if settings.MaxDelay < settings.InitialDelay {
		settings.MaxDelay = max(DefaultMaxDelay, settings.InitialDelay)
	}
	return &Manager{
		transport: transport,
		store:     st,
		settings:  settings,
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger. Call before Start.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetOnConnect registers fn to run, in its own goroutine, each time a
// connection is established.
func (m *Manager) SetOnConnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnect = fn
}

// Start connects using the stored broker settings. The connection lives
// until ctx is cancelled or Close is called.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	m.parent = ctx
	m.mu.Unlock()
	return m.reload(ctx, true)
}

// Refresh rebuilds the connection if the stored connection settings differ
// from the running ones. Status-only changes are ignored.
func (m *Manager) Refresh(ctx context.Context) error {
	return m.reload(ctx, false)
}

// Restart rebuilds the connection unconditionally, including after a fatal
// error stopped the event loop.
func (m *Manager) Restart(ctx context.Context) error {
	return m.reload(ctx, true)
}

func (m *Manager) reload(ctx context.Context, force bool) error {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	b, err := m.store.Broker(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoBroker
		}
		return fmt.Errorf("reading broker settings: %w", err)
	}

	m.mu.Lock()
	if m.parent == nil || m.closed {
		m.mu.Unlock()
		return ErrNotConnected
	}
	old := m.current
	if !force && old != nil && old.conn == b.Connection() {
		m.mu.Unlock()
		return nil
	}

	opts, optsErr := BuildOptions(b, m.settings.KeepAlive)
	if old != nil {
		// No wait: the old loop exits on its own once it sees cancellation.
		old.cancel()
		go old.client.Disconnect()
	}
	m.current = nil
	if optsErr != nil {
		m.mu.Unlock()
		m.logger.Error("invalid broker settings", "error", optsErr)
		if err := m.store.SetBrokerStatus(ctx, false, optsErr.Error()); err != nil {
			m.logger.Error("persisting broker status", "error", err)
		}
		metrics.BrokerConnected.Set(0)
		return optsErr
	}

	m.gen++
	sctx, cancel := context.WithCancel(m.parent)
	client, loop := m.transport.Dial(opts)
	s := &session{
		gen:      m.gen,
		ctx:      sctx,
		cancel:   cancel,
		client:   client,
		loop:     loop,
		conn:     b.Connection(),
		clientID: b.ClientID,
		tls:      opts.TLS != nil,
		done:     make(chan struct{}),
		state:    StateConnecting,
	}
	m.current = s
	m.wg.Add(1)
	m.mu.Unlock()

	metrics.BrokerReconnectsTotal.Inc()
	metrics.BrokerConnected.Set(0)
	m.logger.Info("broker connection configured",
		"broker", opts.BrokerURL,
		"client_id", b.ClientID,
		"generation", s.gen,
	)

	if err := m.store.SetBrokerStatus(ctx, false, StateConnecting); err != nil {
		m.logger.Error("persisting broker status", "error", err)
	}

	go m.run(s)
	return nil
}

// run drives one session's event loop until it is cancelled or hits a
// fatal error.
func (m *Manager) run(s *session) {
	defer m.wg.Done()
	defer close(s.done)

	delay := m.settings.InitialDelay
	for {
		ev := s.loop.Poll(s.ctx)
		if s.ctx.Err() != nil {
			return
		}

		switch ev.Kind {
		case EventConnected:
			delay = m.settings.InitialDelay
			if err := s.client.Publish(StatusTopic(s.clientID), buildOnlinePayload(s.clientID), 1, true); err != nil {
				m.logger.Warn("publishing online status", "error", err)
			}
			if !m.setStatus(s, true, StateConnected) {
				return
			}
			metrics.BrokerConnected.Set(1)
			m.logger.Info("broker connected", "client_id", s.clientID, "generation", s.gen)

			m.mu.Lock()
			fn := m.onConnect
			m.mu.Unlock()
			if fn != nil {
				go fn()
			}

		case EventDisconnected:
			metrics.BrokerConnected.Set(0)
			c := Classify(ev.Err, s.tls)
			metrics.BrokerErrorsTotal.WithLabelValues(c.Class.String()).Inc()

			if c.Class == Fatal {
				m.logger.Error("broker connection failed, not retrying",
					"reason", c.Reason,
					"error", ev.Err,
					"generation", s.gen,
				)
				m.mu.Lock()
				s.stopped = true
				m.mu.Unlock()
				m.setStatus(s, false, c.Reason)
				return
			}

			m.logger.Warn("broker connection error",
				"reason", c.Reason,
				"error", ev.Err,
				"retry_in", delay,
			)
			if !m.setStatus(s, false, c.Reason) {
				return
			}

			timer := time.NewTimer(delay)
			select {
			case <-s.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			delay = min(delay*2, m.settings.MaxDelay)
		}
	}
}

// setStatus records status in memory and in the store. It reports false
// when s has been superseded, in which case nothing is written.
func (m *Manager) setStatus(s *session, connected bool, state string) bool {
	m.statusMu.Lock()
	defer m.statusMu.Unlock()

	m.mu.Lock()
	if m.current != s {
		m.mu.Unlock()
		return false
	}
	s.connected = connected
	s.state = state
	m.mu.Unlock()

	// Status must land even while shutting down.
	ctx := context.WithoutCancel(s.ctx)
	if err := m.store.SetBrokerStatus(ctx, connected, state); err != nil {
		m.logger.Error("persisting broker status", "error", err)
	}
	return true
}

// Publish sends payload at QoS 0 without waiting. Failures are logged and
// counted, never retried. Nothing is sent while disconnected.
func (m *Manager) Publish(topic string, payload []byte) {
	m.mu.Lock()
	s := m.current
	if s == nil || !s.connected {
		m.mu.Unlock()
		metrics.PublishTotal.WithLabelValues("skipped").Inc()
		m.logger.Debug("publish skipped, broker not connected", "topic", topic)
		return
	}
	client := s.client
	m.mu.Unlock()

	go func() {
		if err := client.Publish(topic, payload, 0, false); err != nil {
			metrics.PublishTotal.WithLabelValues("failed").Inc()
			m.logger.Warn("publish failed", "topic", topic, "error", err)
			return
		}
		metrics.PublishTotal.WithLabelValues("sent").Inc()
		m.logger.Debug("published", "topic", topic, "bytes", len(payload))
	}()
}

// State returns the in-memory connection status.
func (m *Manager) State() (connected bool, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return false, StateDisconnected
	}
	return m.current.connected, m.current.state
}

// IsConnected reports whether the current session is connected.
func (m *Manager) IsConnected() bool {
	connected, _ := m.State()
	return connected
}

// Stopped reports whether the current session gave up after a fatal error.
func (m *Manager) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil && m.current.stopped
}

// Close announces offline status, disconnects, persists the disconnected
// state and waits for the event loop to exit.
func (m *Manager) Close() {
	m.statusMu.Lock()
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.statusMu.Unlock()
		return
	}
	m.closed = true
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s != nil {
		s.cancel()
		if s.connected {
			if err := s.client.Publish(StatusTopic(s.clientID), buildOfflinePayload(s.clientID), 1, true); err != nil {
				m.logger.Warn("publishing offline status", "error", err)
			}
		}
		s.client.Disconnect()
	}
	if err := m.store.SetBrokerStatus(context.Background(), false, StateDisconnected); err != nil {
		m.logger.Error("persisting broker status", "error", err)
	}
	m.statusMu.Unlock()

	metrics.BrokerConnected.Set(0)
	m.wg.Wait()
	m.logger.Info("broker connection closed")
}
