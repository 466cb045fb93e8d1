package watch

import (
	"context"
	"time"

	"filescribe/internal/queue"
)

// FolderConfig is the persisted definition of a watched directory.
type FolderConfig struct {
	ID          string    `json:"id"`
	Path        string    `json:"path"`
	Enabled     bool      `json:"enabled"`
	Recursive   bool      `json:"recursive"`
	AutoProcess bool      `json:"auto_process"`
	CreatedAt   time.Time `json:"created_at"`
}

// FolderStatus is the live state of a folder's subscription.
type FolderStatus struct {
	FolderID      string  `json:"folder_id"`
	Path          string  `json:"path"`
	IsWatching    bool    `json:"is_watching"`
	LastError     *string `json:"last_error"`
	FilesDetected int     `json:"files_detected"`
}

// ConfigStore persists folder configs.
type ConfigStore interface {
	SaveFolder(ctx context.Context, cfg FolderConfig) error
	DeleteFolder(ctx context.Context, id string) error
	LoadFolders(ctx context.Context) ([]FolderConfig, error)
}

// Queue is the part of the job queue the watcher feeds.
type Queue interface {
	Enqueue(paths []string) ([]queue.Job, error)
	HasPath(path string) bool
}
