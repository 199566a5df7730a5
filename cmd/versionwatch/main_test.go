package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testConfig = `
store:
  path: %s
  busy_timeout: 5
watch:
  debounce_ms: 20
  republish_on_connect: false
mqtt:
  defaults:
    client_id: versionwatch-test
    host: 127.0.0.1
    port: 1
    protocol: "mqtt://"
  reconnect:
    initial_delay: 1
    max_delay: 2
api:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
`

func writeConfig(t *testing.T) (configPath, storePath string) {
	t.Helper()
	dir := t.TempDir()
	storePath = filepath.Join(dir, "data", "versionwatch.db")
	configPath = filepath.Join(dir, "config.yaml")
	content := strings.Replace(testConfig, "%s", storePath, 1)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath, storePath
}

func TestLoadConfig_Flag(t *testing.T) {
	path, storePath := writeConfig(t)
	t.Setenv(configEnv, "/nonexistent/config.yaml")

	cfg, used, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if used != path {
		t.Errorf("path = %q, want %q", used, path)
	}
	if cfg.Store.Path != storePath {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, storePath)
	}
	if cfg.API.Enabled {
		t.Error("API.Enabled = true, want false")
	}
}

func TestLoadConfig_Env(t *testing.T) {
	path, _ := writeConfig(t)
	t.Setenv(configEnv, path)

	_, used, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if used != path {
		t.Errorf("path = %q, want %q", used, path)
	}
}

func TestLoadConfig_MissingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("loadConfig() should fail with a missing explicit path")
	}
}

func TestLoadConfig_DefaultsWhenNoFile(t *testing.T) {
	t.Setenv(configEnv, "")
	t.Chdir(t.TempDir())

	cfg, used, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if used != "" {
		t.Errorf("path = %q, want empty", used)
	}
	if cfg.MQTT.Defaults.ClientID != "versionwatch-01" {
		t.Errorf("ClientID = %q, want built-in default", cfg.MQTT.Defaults.ClientID)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.HasPrefix(out.String(), "versionwatch "+version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestRootCommand_InvalidConfig(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--config", "/nonexistent/path/config.yaml"})

	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatal("Execute() should fail with invalid config path")
	}
}

// TestRun_StartsAndStops runs the service against a temp store with no
// reachable broker and checks it shuts down cleanly on cancellation.
func TestRun_StartsAndStops(t *testing.T) {
	path, storePath := writeConfig(t)
	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, path) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}

	if _, err := os.Stat(storePath); err != nil {
		t.Errorf("store file not created: %v", err)
	}
}

// TestRun_StartupFailureStopsBackgroundTasks fails startup after the pipeline
// is running and checks run still returns with the startup error.
func TestRun_StartupFailureStopsBackgroundTasks(t *testing.T) {
	path, _ := writeConfig(t)
	cfg, _, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer taken.Close()
	cfg.API.Enabled = true
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = taken.Addr().(*net.TCPAddr).Port

	done := make(chan error, 1)
	go func() { done <- run(context.Background(), cfg, path) }()

	select {
	case err := <-done:
		if err == nil || !strings.Contains(err.Error(), "starting API server") {
			t.Errorf("run() error = %v, want API start failure", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after a startup failure")
	}
}
