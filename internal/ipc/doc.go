// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// The server registers a single "Filescribe" receiver whose methods map onto
// the queue manager, watch service, exporter and event bus. Events is a long
// poll: callers pass the last cursor they saw and get back newer events plus
// a Covered flag that turns false once the bus has evicted events the caller
// never received. Client methods take a context so CLI commands fail fast
// when the daemon is offline or slow.
package ipc
