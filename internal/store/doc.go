// Package store persists transcription jobs and watch-folder configs in a
// single SQLite database.
//
// The database is transient state for a running daemon, not an archive.
// The schema is embedded and versioned; a version mismatch is reported as
// ErrSchemaMismatch rather than migrated. Writes retry briefly on
// SQLITE_BUSY so a CLI reader never fails the daemon's journal.
//
// Store satisfies queue.Persister and watch.ConfigStore.
package store
