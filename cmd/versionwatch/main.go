// versionwatch watches a configured set of files, resolves their versions
// when they change on disk and publishes each version to an MQTT broker.
//
// Watched files and broker settings live in a SQLite-backed store; edits to
// the store (through the admin API or any other writer) are picked up live.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wagoodman/go-partybus"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/versionwatch/internal/api"
	"github.com/nerrad567/versionwatch/internal/audit"
	"github.com/nerrad567/versionwatch/internal/infrastructure/config"
	"github.com/nerrad567/versionwatch/internal/infrastructure/database"
	"github.com/nerrad567/versionwatch/internal/infrastructure/influxdb"
	"github.com/nerrad567/versionwatch/internal/infrastructure/logging"
	"github.com/nerrad567/versionwatch/internal/infrastructure/mqtt"
	"github.com/nerrad567/versionwatch/internal/pipeline"
	"github.com/nerrad567/versionwatch/internal/store"
	fileversion "github.com/nerrad567/versionwatch/internal/version"
	"github.com/nerrad567/versionwatch/internal/watch"
	"github.com/nerrad567/versionwatch/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when neither --config nor VERSIONWATCH_CONFIG is set.
	defaultConfigPath = "configs/config.yaml"

	configEnv = "VERSIONWATCH_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "versionwatch",
		Short:         "Publish file versions to MQTT whenever watched files change",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, path)
		},
	}
	root.Flags().StringVar(&configPath, "config", "",
		"path to the configuration file (default $"+configEnv+" or "+defaultConfigPath+")")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "versionwatch %s (commit %s, built %s)\n", version, commit, date)
		},
	})

	return root
}

// loadConfig resolves the configuration path and loads it. A missing file
// at the default path means built-in defaults.
//
// Returns:
//   - *config.Config: Validated configuration
//   - string: The path that was used, empty when defaults were applied
//   - error: If the file cannot be read or parsed, or validation fails
func loadConfig(flagPath string) (*config.Config, string, error) {
	path := flagPath
	if path == "" {
		path = os.Getenv(configEnv)
	}
	if path == "" {
		path = defaultConfigPath
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", fmt.Errorf("loading default config: %w", err)
			}
			return cfg, "", nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// run wires every component and blocks until ctx is cancelled.
//
// Shutdown order is the API server, then the pipeline, the watch engine,
// the broker connection, InfluxDB and finally the database.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - cfg: Loaded configuration
//   - configPath: Where cfg came from, for logging only
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, cfg *config.Config, configPath string) error {
	log := logging.New(cfg.Logging, version)
	log.Info("starting versionwatch",
		"version", version,
		"commit", commit,
		"build_date", date,
	)
	if configPath == "" {
		log.Info("no configuration file, using defaults")
	} else {
		log.Info("configuration loaded", "path", configPath)
	}

	// Store
	db, err := database.Open(database.Config{
		Path:        cfg.Store.Path,
		WALMode:     cfg.Store.WALMode,
		BusyTimeout: cfg.Store.BusyTimeout,
		Migrations:  migrations.FS,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		log.Info("closing store")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing store", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("store health check: %w", err)
	}
	log.Info("store ready", "path", cfg.Store.Path, "backing_path", db.BackingPath())

	st := store.New(db)
	activity := audit.NewSQLiteRepository(db.DB)
	bus := partybus.NewBus()

	// InfluxDB (optional)
	var influx *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influx, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influx.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err, "failures", influx.Failures())
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Broker connection
	conn, err := mqtt.NewManager(ctx, mqtt.PahoTransport{}, st, brokerDefaults(cfg), mqtt.Settings{
		KeepAlive:    time.Duration(cfg.MQTT.KeepAlive) * time.Second,
		InitialDelay: time.Duration(cfg.MQTT.Reconnect.InitialDelay) * time.Second,
		MaxDelay:     time.Duration(cfg.MQTT.Reconnect.MaxDelay) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("creating broker connection: %w", err)
	}
	conn.SetLogger(log.Component("mqtt"))
	defer conn.Close()

	// Watch engine
	engine := watch.New(bus, st, db.BackingPath())
	engine.SetLogger(log.Component("watch"))
	defer func() {
		log.Info("stopping watch engine")
		engine.Close()
	}()

	// Pipeline
	pipe := pipeline.New(bus, st, engine, conn, fileversion.NewResolver(), cfg.DebounceWindow())
	pipe.SetLogger(log.Component("pipeline"))
	pipe.SetAudit(activity)
	if influx != nil {
		pipe.SetHistory(influx)
	}
	if cfg.Watch.RepublishOnConnect {
		conn.SetOnConnect(func() {
			if err := pipe.Prime(ctx); err != nil && ctx.Err() == nil {
				log.Warn("republishing on connect", "error", err)
			}
		})
	}

	// Every early return below cancels gctx, so goroutines already in the
	// group finish before run does.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	waited := false
	defer func() {
		if waited {
			return
		}
		stop()
		if err := g.Wait(); err != nil {
			log.Warn("background task stopped with error", "error", err)
		}
	}()

	if err := engine.Start(gctx); err != nil {
		return fmt.Errorf("starting watch engine: %w", err)
	}
	log.Info("watch engine started", "directories", len(engine.Dirs()))

	g.Go(func() error { return pipe.Run(gctx) })

	if err := conn.Start(gctx); err != nil {
		log.Warn("broker connection not started", "error", err)
	}

	if err := pipe.Prime(gctx); err != nil {
		log.Warn("initial priming failed", "error", err)
	}

	// Admin API (optional)
	if cfg.API.Enabled {
		health := map[string]api.HealthChecker{"store": db}
		if influx != nil {
			health["influxdb"] = influx
		}
		srv, err := api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log.Component("api"),
			Store:      st,
			Connection: conn,
			Watch:      engine,
			Bus:        bus,
			Health:     health,
			Audit:      activity,
			StorePath:  db.BackingPath(),
			Version:    version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(gctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		log.Info("API server listening", "addr", srv.Addr())
		g.Go(func() error {
			<-gctx.Done()
			log.Info("stopping API server")
			return srv.Close()
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	stop()
	waited = true
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("versionwatch stopped")
	return nil
}

// brokerDefaults converts mqtt.defaults into the record seeded on first run.
func brokerDefaults(cfg *config.Config) store.BrokerConfig {
	d := cfg.MQTT.Defaults
	return store.BrokerConfig{
		ClientID:    d.ClientID,
		Host:        d.Host,
		Port:        d.Port,
		Protocol:    d.Protocol,
		Username:    d.Username,
		Password:    d.Password,
		DeviceID:    d.DeviceID,
		DeviceGroup: d.DeviceGroup,
	}
}
