package ipc

import (
	"time"

	"filescribe/internal/events"
	"filescribe/internal/queue"
	"filescribe/internal/watch"
)

// Job is the wire form of a queue job.
type Job = queue.Job

// FolderConfig is the wire form of a watch folder definition.
type FolderConfig = watch.FolderConfig

// FolderStatus is the wire form of a watch folder's live state.
type FolderStatus = watch.FolderStatus

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// QueueStats summarizes the queue for status output.
type QueueStats struct {
	Total           int            `json:"total"`
	Counts          map[string]int `json:"counts"`
	ProcessingJobID string         `json:"processing_job_id,omitempty"`
	Running         bool           `json:"running"`
}

// StatusResponse represents combined daemon, queue and watch status.
type StatusResponse struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	StartedAt    time.Time      `json:"started_at"`
	Queue        QueueStats     `json:"queue"`
	Folders      []FolderStatus `json:"folders"`
	LastSequence uint64         `json:"last_sequence"`
	DatabasePath string         `json:"database_path"`
	LockPath     string         `json:"lock_path"`
	SocketPath   string         `json:"socket_path"`
}

// QueueAddRequest enqueues media files.
type QueueAddRequest struct {
	Paths   []string `json:"paths"`
	Process bool     `json:"process"`
}

// QueueAddResponse lists the jobs created.
type QueueAddResponse struct {
	Jobs    []Job `json:"jobs"`
	Started bool  `json:"started"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse returns jobs in creation order.
type QueueListResponse struct {
	Jobs []Job `json:"jobs"`
}

// QueueShowRequest fetches one job.
type QueueShowRequest struct {
	ID string `json:"id"`
}

// QueueShowResponse returns the job.
type QueueShowResponse struct {
	Job Job `json:"job"`
}

// QueueProcessRequest starts the worker.
type QueueProcessRequest struct{}

// QueueProcessResponse reports whether a worker run is active after the call.
type QueueProcessResponse struct {
	Running bool `json:"running"`
	Queued  int  `json:"queued"`
}

// QueueCancelRequest aborts the in-flight job.
type QueueCancelRequest struct{}

// QueueCancelResponse reports the cancellation outcome.
type QueueCancelResponse struct {
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// QueueRemoveRequest removes one job.
type QueueRemoveRequest struct {
	ID string `json:"id"`
}

// QueueRemoveResponse confirms removal.
type QueueRemoveResponse struct {
	Removed bool `json:"removed"`
}

// QueueClearRequest removes completed jobs.
type QueueClearRequest struct{}

// QueueClearResponse returns the removed count.
type QueueClearResponse struct {
	Removed int `json:"removed"`
}

// WatchAddRequest registers a watch folder. A nil AutoProcess keeps the
// configured default.
type WatchAddRequest struct {
	Path        string `json:"path"`
	Recursive   bool   `json:"recursive"`
	AutoProcess *bool  `json:"auto_process,omitempty"`
}

// WatchAddResponse returns the stored folder and its live state.
type WatchAddResponse struct {
	Folder FolderConfig `json:"folder"`
	Status FolderStatus `json:"status"`
}

// WatchRemoveRequest deletes a watch folder.
type WatchRemoveRequest struct {
	ID string `json:"id"`
}

// WatchRemoveResponse confirms removal.
type WatchRemoveResponse struct {
	Removed bool `json:"removed"`
}

// WatchUpdateRequest changes the fields that are set.
type WatchUpdateRequest struct {
	ID          string  `json:"id"`
	Path        *string `json:"path,omitempty"`
	Enabled     *bool   `json:"enabled,omitempty"`
	Recursive   *bool   `json:"recursive,omitempty"`
	AutoProcess *bool   `json:"auto_process,omitempty"`
}

// WatchUpdateResponse returns the folder after the update.
type WatchUpdateResponse struct {
	Folder FolderConfig `json:"folder"`
}

// WatchListRequest lists folder configs.
type WatchListRequest struct{}

// WatchListResponse returns folder configs in creation order.
type WatchListResponse struct {
	Folders []FolderConfig `json:"folders"`
}

// WatchStatusRequest lists folder states.
type WatchStatusRequest struct{}

// WatchStatusResponse returns per-folder state.
type WatchStatusResponse struct {
	Statuses []FolderStatus `json:"statuses"`
}

// ExportRequest serializes a completed job.
type ExportRequest struct {
	JobID    string `json:"job_id"`
	Format   string `json:"format"`
	Dir      string `json:"dir"`
	FileName string `json:"file_name"`
	Inline   bool   `json:"inline"`
}

// ExportResponse reports the written path, or the content for inline exports.
type ExportResponse struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	Content string `json:"content,omitempty"`
}

// EventsRequest pulls bus events after Since. WaitMillis > 0 blocks until an
// event arrives or the wait elapses.
type EventsRequest struct {
	Since      uint64 `json:"since"`
	Limit      int    `json:"limit"`
	WaitMillis int    `json:"wait_millis"`
}

// EventsResponse returns events and the cursor for the next call. Covered is
// false when events after Since have already been evicted and the caller must
// resynchronize.
type EventsResponse struct {
	Events       []events.Event `json:"events"`
	Next         uint64         `json:"next"`
	Covered      bool           `json:"covered"`
	LastSequence uint64         `json:"last_sequence"`
}

// ExtensionsRequest lists supported media extensions.
type ExtensionsRequest struct{}

// ExtensionsResponse returns the allowlist.
type ExtensionsResponse struct {
	Extensions []string `json:"extensions"`
}

// TestNotificationRequest triggers a test notification.
type TestNotificationRequest struct{}

// TestNotificationResponse reports whether the notification was sent.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
