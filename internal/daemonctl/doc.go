// Package daemonctl starts, stops and inspects the filescribe daemon process
// on behalf of the CLI.
//
// Start launches `filescribe daemon` detached and waits for its socket. Stop
// sends SIGTERM to the pid reported over IPC and escalates to SIGKILL after a
// grace period. The status snapshot combines the daemon's live view with
// preflight checks, and falls back to the job database when the daemon is
// offline.
package daemonctl
