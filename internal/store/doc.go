// Package store persists the versionwatch configuration snapshots.
//
// Two keys are kept in the SQLite kv table, each holding one JSON document:
//
//	"files"   map[id]WatchedFile
//	"broker"  BrokerConfig
//
// Every snapshot is read and written whole, so readers never observe a
// partially updated record. Store serialises all writers behind a single
// RWMutex; Update holds the write lock across read, mutate and write back so
// concurrent writers (the change pipeline, the MQTT connection manager and
// the admin API) never lose each other's changes.
//
// The admin helpers (CreateFile, PatchFile, DeleteFile, PatchBroker) enforce
// the enablement rule: a file can only be enabled while its path exists.
package store
