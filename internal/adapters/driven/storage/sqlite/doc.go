// Package sqlite provides a SQLite-based implementation of the persistence
// ports.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements several store interfaces
// through a single database connection:
//
//   - CheckpointStore: the key/value checkpoint of the last successful sync
//   - NodeStore: sourced remote nodes keyed by type and remote id
//   - SyncRunStore: history of sync runs
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database is stored at <dataDir>/contentsync.db.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
