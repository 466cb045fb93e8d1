// Package watch monitors watch folders and turns newly created media files
// into transcription jobs.
//
// Each enabled folder owns one fsnotify subscription running on its own
// goroutine. A file is reported once its size has stopped changing for the
// settle window; writes to a pending file restart the window. Recursive
// folders also watch nested directories, including ones created later, and
// scan a new directory once when it appears.
//
// Reconfiguring a folder cancels its subscription and waits for the watcher
// to close before a replacement starts, so two subscriptions never deliver
// events for the same folder. Detections from a superseded subscription are
// discarded by generation.
//
// Deduplication lasts for the life of the process: a path is reported at most
// once per session, and never when the queue already holds a job for it.
package watch
