// Package logging provides structured logging for versionwatch.
//
// This package wraps Go's standard log/slog package so that every component
// (watch engine, pipeline, MQTT connection manager, admin API) logs with the
// same shape.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Per-component child loggers via Component()
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	engine.SetLogger(logger.Component("watch"))
//
// Never log broker passwords or InfluxDB tokens.
package logging
