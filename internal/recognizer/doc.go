// Package recognizer defines the speech recognition boundary used by the job
// queue and provides a command-backed implementation that drives a
// whisper.cpp style CLI.
//
// The queue never talks to an engine directly: it asks an EngineProvider for
// the active Recognizer at the start of every job, so engine switching and
// model management stay outside this module.
package recognizer
