// Package preflight provides readiness checks for the directories, model file
// and external binaries filescribe depends on.
//
// The daemon logs a dependency snapshot from CheckSystemDeps at startup and
// the CLI status command renders RunAll alongside it. Checks only inspect
// local state; none of them reach the network.
package preflight
