package events

import (
	"path/filepath"
	"time"
)

// Topic names the channel an event is published on.
type Topic string

const (
	// TopicJobUpdate carries job status and progress changes.
	TopicJobUpdate Topic = "file-transcription-update"
	// TopicFileDetected carries watch-folder file detections.
	TopicFileDetected Topic = "watch-folder-file-detected"
	// TopicFolderStatus carries watch-folder subscription state changes.
	TopicFolderStatus Topic = "watch-folder-status"
)

// JobUpdate is the payload of a file-transcription-update event.
type JobUpdate struct {
	JobID         string  `json:"job_id"`
	Status        string  `json:"status"`
	Progress      float64 `json:"progress"`
	Transcription *string `json:"transcription"`
	Error         *string `json:"error"`
}

// FileDetected is the payload of a watch-folder-file-detected event.
type FileDetected struct {
	FolderID string `json:"folder_id"`
	FilePath string `json:"file_path"`
	FileName string `json:"file_name"`
}

// FolderStatus is the payload of a watch-folder-status event.
type FolderStatus struct {
	FolderID   string  `json:"folder_id"`
	IsWatching bool    `json:"is_watching"`
	LastError  *string `json:"last_error"`
}

// Event is a sequenced bus message. Exactly one payload pointer is set,
// matching Topic.
type Event struct {
	Seq       uint64        `json:"seq"`
	Timestamp time.Time     `json:"ts"`
	Topic     Topic         `json:"topic"`
	Job       *JobUpdate    `json:"job,omitempty"`
	File      *FileDetected `json:"file,omitempty"`
	Folder    *FolderStatus `json:"folder,omitempty"`
}

// Publisher accepts events for fan-out.
type Publisher interface {
	Publish(Event) Event
}

// NewJobUpdate builds a job update event.
func NewJobUpdate(update JobUpdate) Event {
	return Event{Topic: TopicJobUpdate, Job: &update}
}

// NewFileDetected builds a file detection event for path under folderID.
func NewFileDetected(folderID, path string) Event {
	return Event{Topic: TopicFileDetected, File: &FileDetected{
		FolderID: folderID,
		FilePath: path,
		FileName: filepath.Base(path),
	}}
}

// NewFolderStatus builds a folder status event.
func NewFolderStatus(status FolderStatus) Event {
	return Event{Topic: TopicFolderStatus, Folder: &status}
}

// StringPtr returns nil for empty strings so optional payload fields encode as null.
func StringPtr(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
