// Package daemonrun hosts the foreground daemon process: logging setup,
// dependency snapshot, store and recognizer construction, the IPC socket and
// the signal-aware wait loop.
package daemonrun
