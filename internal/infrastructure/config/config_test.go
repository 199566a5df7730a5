package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
store:
  path: "/tmp/versionwatch-test.db"
  wal_mode: true
watch:
  debounce_ms: 250
mqtt:
  defaults:
    client_id: "plant-7"
    host: "broker.local"
    port: 8883
    protocol: "mqtts://"
    device_group: "line_2"
  reconnect:
    initial_delay: 2
    max_delay: 30
api:
  port: 9000
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Store.Path != "/tmp/versionwatch-test.db" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "/tmp/versionwatch-test.db")
	}
	if !cfg.Store.WALMode {
		t.Error("Store.WALMode = false, want true")
	}
	if got := cfg.DebounceWindow(); got != 250*time.Millisecond {
		t.Errorf("DebounceWindow() = %v, want 250ms", got)
	}
	if cfg.MQTT.Defaults.Host != "broker.local" {
		t.Errorf("MQTT.Defaults.Host = %q, want %q", cfg.MQTT.Defaults.Host, "broker.local")
	}
	if cfg.MQTT.Defaults.Protocol != "mqtts://" {
		t.Errorf("MQTT.Defaults.Protocol = %q, want %q", cfg.MQTT.Defaults.Protocol, "mqtts://")
	}
	// Unset fields keep their defaults.
	if cfg.MQTT.Defaults.DeviceID != "FC_0103" {
		t.Errorf("MQTT.Defaults.DeviceID = %q, want %q", cfg.MQTT.Defaults.DeviceID, "FC_0103")
	}
	if cfg.MQTT.KeepAlive != 30 {
		t.Errorf("MQTT.KeepAlive = %d, want 30", cfg.MQTT.KeepAlive)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "store: [unclosed"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
mqtt:
  defaults:
    protocol: "http://"
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Error("Load() expected validation error, got nil")
	}
}

func TestDefault(t *testing.T) {
	t.Setenv("VERSIONWATCH_STORE_PATH", "/var/lib/versionwatch/kv.db")

	cfg, err := Default()
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if cfg.Store.Path != "/var/lib/versionwatch/kv.db" {
		t.Errorf("Store.Path = %q, want env override", cfg.Store.Path)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}, wantErr: false},
		{name: "missing store path", mutate: func(c *Config) { c.Store.Path = "" }, wantErr: true},
		{name: "zero debounce", mutate: func(c *Config) { c.Watch.DebounceMS = 0 }, wantErr: true},
		{name: "missing client id", mutate: func(c *Config) { c.MQTT.Defaults.ClientID = "" }, wantErr: true},
		{name: "broker port high", mutate: func(c *Config) { c.MQTT.Defaults.Port = 70000 }, wantErr: true},
		{name: "unknown protocol", mutate: func(c *Config) { c.MQTT.Defaults.Protocol = "tcp://" }, wantErr: true},
		{name: "websocket protocol", mutate: func(c *Config) { c.MQTT.Defaults.Protocol = "wss://" }, wantErr: false},
		{name: "max below initial delay", mutate: func(c *Config) { c.MQTT.Reconnect.MaxDelay = 0 }, wantErr: true},
		{name: "api port zero", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "api port zero when disabled", mutate: func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, wantErr: false},
		{name: "influx enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("VERSIONWATCH_STORE_PATH", "/custom/path.db")
	t.Setenv("VERSIONWATCH_MQTT_HOST", "mqtt.example.com")
	t.Setenv("VERSIONWATCH_MQTT_USERNAME", "testuser")
	t.Setenv("VERSIONWATCH_MQTT_PASSWORD", "testpass")
	t.Setenv("VERSIONWATCH_API_HOST", "192.168.1.1")
	t.Setenv("VERSIONWATCH_API_PORT", "9100")
	t.Setenv("VERSIONWATCH_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("VERSIONWATCH_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Store.Path != "/custom/path.db" {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, "/custom/path.db")
	}
	if cfg.MQTT.Defaults.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Defaults.Host = %q, want %q", cfg.MQTT.Defaults.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Defaults.Username != "testuser" {
		t.Errorf("MQTT.Defaults.Username = %q, want %q", cfg.MQTT.Defaults.Username, "testuser")
	}
	if cfg.MQTT.Defaults.Password != "testpass" {
		t.Errorf("MQTT.Defaults.Password = %q, want %q", cfg.MQTT.Defaults.Password, "testpass")
	}
	if cfg.API.Host != "192.168.1.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "192.168.1.1")
	}
	if cfg.API.Port != 9100 {
		t.Errorf("API.Port = %d, want 9100", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Store.Path == "" {
		t.Error("defaultConfig should have non-empty Store.Path")
	}
	if cfg.MQTT.Defaults.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Defaults.Port = %d, want 1883", cfg.MQTT.Defaults.Port)
	}
	if cfg.MQTT.Defaults.DeviceGroup != "autogroup_Monitor" {
		t.Errorf("defaultConfig MQTT.Defaults.DeviceGroup = %q, want autogroup_Monitor", cfg.MQTT.Defaults.DeviceGroup)
	}
	if cfg.Watch.DebounceMS != 500 {
		t.Errorf("defaultConfig Watch.DebounceMS = %d, want 500", cfg.Watch.DebounceMS)
	}
	if !cfg.API.Panel.Enabled || cfg.API.Panel.Dir != "" {
		t.Errorf("defaultConfig API.Panel = %+v, want embedded panel enabled", cfg.API.Panel)
	}
}
