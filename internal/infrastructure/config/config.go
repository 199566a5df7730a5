package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for versionwatch.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Watch    WatchConfig    `yaml:"watch"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// StoreConfig contains settings for the SQLite-backed key-value store.
type StoreConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// WatchConfig contains file watching and change pipeline settings.
type WatchConfig struct {
	// DebounceMS is the quiet window in milliseconds before a change is processed.
	DebounceMS int `yaml:"debounce_ms"`

	// RepublishOnConnect re-runs the priming pass whenever the broker
	// connection is (re)established.
	RepublishOnConnect bool `yaml:"republish_on_connect"`
}

// MQTTConfig contains MQTT connection behaviour. Broker endpoint settings
// live in the store; Defaults seeds them when the store has none.
type MQTTConfig struct {
	Defaults  MQTTDefaultsConfig  `yaml:"defaults"`
	KeepAlive int                 `yaml:"keep_alive"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTDefaultsConfig contains the broker settings used on first run.
type MQTTDefaultsConfig struct {
	ClientID    string `yaml:"client_id"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Protocol    string `yaml:"protocol"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DeviceID    string `yaml:"device_id"`
	DeviceGroup string `yaml:"device_group"`
}

// MQTTReconnectConfig contains MQTT reconnection backoff settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains admin HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Panel    PanelConfig      `yaml:"panel"`
}

// PanelConfig controls the admin web panel served at "/".
type PanelConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir serves the panel from disk instead of the embedded build.
	Dir string `yaml:"dir"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// InfluxDBConfig contains InfluxDB connection settings for version history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VERSIONWATCH_SECTION_KEY
// For example: VERSIONWATCH_STORE_PATH, VERSIONWATCH_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides
// applied. Used when no configuration file is present.
func Default() (*Config, error) {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path:        "./data/versionwatch.db",
			WALMode:     false,
			BusyTimeout: 5,
		},
		Watch: WatchConfig{
			DebounceMS:         500,
			RepublishOnConnect: true,
		},
		MQTT: MQTTConfig{
			Defaults: MQTTDefaultsConfig{
				ClientID:    "versionwatch-01",
				Host:        "localhost",
				Port:        1883,
				Protocol:    "mqtt://",
				DeviceID:    "FC_0103",
				DeviceGroup: "autogroup_Monitor",
			},
			KeepAlive: 30,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Panel: PanelConfig{Enabled: true},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VERSIONWATCH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Store
	if v := os.Getenv("VERSIONWATCH_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	// MQTT defaults
	if v := os.Getenv("VERSIONWATCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Defaults.Host = v
	}
	if v := os.Getenv("VERSIONWATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Defaults.Username = v
	}
	if v := os.Getenv("VERSIONWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Defaults.Password = v
	}

	// API
	if v := os.Getenv("VERSIONWATCH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VERSIONWATCH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("VERSIONWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("VERSIONWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// validProtocols lists the broker URL schemes accepted in mqtt.defaults.protocol.
var validProtocols = map[string]bool{
	"mqtt://":  true,
	"mqtts://": true,
	"ws://":    true,
	"wss://":   true,
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Store.Path == "" {
		errs = append(errs, "store.path is required")
	}
	if c.Store.BusyTimeout < 0 {
		errs = append(errs, "store.busy_timeout must not be negative")
	}

	if c.Watch.DebounceMS <= 0 {
		errs = append(errs, "watch.debounce_ms must be positive")
	}

	if c.MQTT.Defaults.ClientID == "" {
		errs = append(errs, "mqtt.defaults.client_id is required")
	}
	if c.MQTT.Defaults.Port < 1 || c.MQTT.Defaults.Port > 65535 {
		errs = append(errs, "mqtt.defaults.port must be between 1 and 65535")
	}
	if !validProtocols[c.MQTT.Defaults.Protocol] {
		errs = append(errs, "mqtt.defaults.protocol must be one of mqtt://, mqtts://, ws://, wss://")
	}
	if c.MQTT.Reconnect.InitialDelay <= 0 {
		errs = append(errs, "mqtt.reconnect.initial_delay must be positive")
	}
	if c.MQTT.Reconnect.MaxDelay < c.MQTT.Reconnect.InitialDelay {
		errs = append(errs, "mqtt.reconnect.max_delay must be >= initial_delay")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DebounceWindow returns the debounce quiet window as a Duration.
func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
