// Package queue owns the in-memory collection of file transcription jobs and
// the single background worker that drives them through the recognizer.
//
// The Manager is the only writer of the collection. Enqueue, Cancel,
// RemoveJob, and ClearCompleted return immediately; status and progress are
// written only by the worker goroutine started from ProcessAll. Every state
// or progress change is published on the event bus as a
// file-transcription-update event, and status changes are journaled to a
// Persister so a restarted daemon can Restore the collection.
//
// At most one job is processing at any time. IsProcessing is derived from
// the collection rather than stored, so it cannot drift from job state.
//
// Mirror is the consumer side: it rebuilds a job view from update events and
// re-lists the full collection whenever it sees an unknown job or a sequence
// gap.
package queue
