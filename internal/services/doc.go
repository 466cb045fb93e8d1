// Package services defines shared error markers and context helpers consumed by
// the queue, watch and export components.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, watch folder IDs, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (validation, recognition, cancellation, watch, export) with
//     errors.Is regardless of how deeply they were wrapped.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon.
package services
