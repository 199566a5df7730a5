package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/versionwatch/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	fallbackBatchSize     = 100
	fallbackFlushInterval = 10 * time.Second
)

// Client appends file_version points to one bucket. Points are queued by the
// library's batching writer; nothing is queued once Close has run.
type Client struct {
	influx influxdb2.Client
	points api.WriteAPI

	closed    atomic.Bool
	closeOnce sync.Once

	// onError receives batch failures reported by the writer.
	onError atomic.Pointer[func(error)]

	// failures counts batch failures, reported or not.
	failures atomic.Uint64
}

// Connect pings the server at cfg.URL and, once it answers healthy, opens a
// batching writer for cfg.Org and cfg.Bucket. It returns ErrDisabled when
// cfg.Enabled is false and ErrConnectionFailed when the ping fails.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, influx); err != nil {
		influx.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		influx: influx,
		points: influx.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.drainErrors(c.points.Errors())
	return c, nil
}

// writeOptions maps batch_size and flush_interval (seconds) onto the writer,
// falling back when either is unset or negative.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(fallbackBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := fallbackFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	// #nosec G115 -- flush is positive and far below the uint range
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds()))
}

func ping(ctx context.Context, influx influxdb2.Client) error {
	ok, err := influx.Ping(ctx)
	switch {
	case err != nil:
		return fmt.Errorf("ping: %w", err)
	case !ok:
		return fmt.Errorf("ping: server not healthy")
	}
	return nil
}

// drainErrors runs until the writer's error channel closes.
func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.failures.Add(1)
		if fn := c.onError.Load(); fn != nil {
			(*fn)(err)
		}
	}
}

// SetOnError installs fn as the batch failure callback. A nil fn removes it.
func (c *Client) SetOnError(fn func(err error)) {
	if fn == nil {
		c.onError.Store(nil)
		return
	}
	c.onError.Store(&fn)
}

// Failures returns the number of batch writes the server rejected or that
// never reached it.
func (c *Client) Failures() uint64 {
	return c.failures.Load()
}

// IsConnected is true from Connect until Close.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// HealthCheck pings the server, bounded by pingTimeout.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.influx); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush sends queued points and waits for the write. It does nothing after
// Close.
func (c *Client) Flush() {
	if c.points == nil || c.closed.Load() {
		return
	}
	c.points.Flush()
}

// Close sends what is queued and releases the client. It may be called on a
// nil Client and more than once.
func (c *Client) Close() error {
	if c == nil || c.influx == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.points.Flush()
		c.influx.Close()
	})
	return nil
}
