package queue

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"filescribe/internal/transcript"
)

// Status represents the lifecycle of a transcription job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// DaemonRestartReason is logged when a job left in processing is requeued at startup.
const DaemonRestartReason = "requeued after daemon restart"

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
	StatusCancelled: {},
}

type statusTransition struct {
	from Status
	to   Status
}

var validTransitions = map[statusTransition]struct{}{
	{from: StatusQueued, to: StatusProcessing}:    {},
	{from: StatusProcessing, to: StatusCompleted}: {},
	{from: StatusProcessing, to: StatusFailed}:    {},
	{from: StatusProcessing, to: StatusCancelled}: {},
}

func isValidTransition(from, to Status) bool {
	_, ok := validTransitions[statusTransition{from: from, to: to}]
	return ok
}

// AllStatuses returns every lifecycle status in display order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[status]
	return status, ok
}

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsLive reports whether a job in this status blocks a duplicate enqueue.
func (s Status) IsLive() bool {
	return s == StatusQueued || s == StatusProcessing
}

// Job is a unit of file transcription work.
type Job struct {
	ID              string               `json:"id"`
	FilePath        string               `json:"file_path"`
	FileName        string               `json:"file_name"`
	FileSize        int64                `json:"file_size"`
	Status          Status               `json:"status"`
	Progress        float64              `json:"progress"`
	Transcription   string               `json:"transcription,omitempty"`
	Segments        []transcript.Segment `json:"segments,omitempty"`
	MediaDurationMS int64                `json:"media_duration_ms,omitempty"`
	Error           string               `json:"error,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	StartedAt       *time.Time           `json:"started_at,omitempty"`
	CompletedAt     *time.Time           `json:"completed_at,omitempty"`
	DurationSeconds float64              `json:"duration_seconds,omitempty"`
}

// IsProcessing reports whether the job currently holds the processing slot.
func (j Job) IsProcessing() bool {
	return j.Status == StatusProcessing
}

// clone returns a deep copy safe to hand outside the manager lock.
func (j *Job) clone() Job {
	out := *j
	out.Segments = transcript.Clone(j.Segments)
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// NewJobID returns an identifier of the form job_<unix-ms>_<8 hex>.
func NewJobID(now time.Time) string {
	return fmt.Sprintf("job_%d_%s", now.UnixMilli(), shortRandom())
}

func shortRandom() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return strings.ReplaceAll(id.String(), "-", "")[:8]
	}
	var buf [4]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

// Summary aggregates job counts per status.
type Summary struct {
	Total           int            `json:"total"`
	Counts          map[Status]int `json:"counts"`
	ProcessingJobID string         `json:"processing_job_id,omitempty"`
	Running         bool           `json:"running"`
}
