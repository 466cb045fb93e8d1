// Package notifications posts transcription milestones to ntfy.
//
// NewService returns a noop implementation when no topic is configured. The
// Relay subscribes to the daemon event bus and forwards completed and failed
// jobs, and the queue manager's drained callback reports an emptied queue.
package notifications
