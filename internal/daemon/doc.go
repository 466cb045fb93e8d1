// Package daemon coordinates the long-running filescribe process.
//
// It wires configuration, SQLite persistence, the job queue manager, the
// watch-folder service, the event bus and the ntfy relay into a single
// lifecycle guarded by a flock-based single-instance lock. The IPC layer
// calls into the Daemon for status, export and notification tests, and
// reaches the queue and watch service through its accessors.
package daemon
