// Package api implements the admin HTTP API and WebSocket feed for versionwatch.
//
// This package provides:
//   - REST endpoints for WatchedFile CRUD and broker settings
//   - A reconnect endpoint that restarts a broker connection stopped by a
//     fatal error
//   - Service info and health endpoints
//   - Prometheus metrics at /metrics
//   - A WebSocket hub that pushes the files list and broker record whenever
//     the store changes
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// The API only writes to the store. The watch engine sees those writes as
// store changes and the pipeline reloads the watch set and broker connection
// from them, so every edit takes the same path as an edit made by another
// process sharing the store.
//
// # Graceful Degradation
//
// The broker connection and InfluxDB are optional; endpoints that need them
// report their absence instead of failing the server.
package api
