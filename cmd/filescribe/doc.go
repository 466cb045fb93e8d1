// Package main hosts the filescribe CLI entrypoint and command graph.
//
// The Cobra command tree runs the daemon (`filescribe daemon`), manages its
// process (start, stop, restart, status) and translates queue, watch-folder,
// export and event commands into JSON-RPC calls over the daemon socket.
// Configuration resolution and socket discovery live in commandContext so
// subcommands only deal with presentation.
package main
