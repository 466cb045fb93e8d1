package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"filescribe/internal/events"
	"filescribe/internal/logging"
	"filescribe/internal/media"
	"filescribe/internal/recognizer"
)

// Options configures a Manager.
type Options struct {
	Allowlist             media.Allowlist
	Engines               recognizer.EngineProvider
	Publisher             events.Publisher
	Persister             Persister
	Logger                *slog.Logger
	MaxFileSizeBytes      int64
	LargeFileWarningBytes int64
	// OnDrained runs after a worker run empties the queue without being halted.
	OnDrained func(Summary)
}

// Manager owns the job collection and the processing worker.
type Manager struct {
	allow     media.Allowlist
	engines   recognizer.EngineProvider
	publisher events.Publisher
	journal   *journal
	persister Persister
	logger    *slog.Logger
	maxBytes  int64
	warnBytes int64
	onDrained func(Summary)
	now       func() time.Time

	progressLog *logging.ProgressSampler

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu        sync.Mutex
	jobs      []*Job
	index     map[string]*Job
	running   bool
	halt      bool
	closed    bool
	currentID string
	cancelJob context.CancelFunc
	cancelled map[string]bool
}

// NewManager constructs a manager. A nil Allowlist uses the default extension
// set; a nil Persister keeps jobs in memory only.
func NewManager(opts Options) *Manager {
	allow := opts.Allowlist
	if allow == nil {
		allow = media.DefaultAllowlist()
	}
	engines := opts.Engines
	if engines == nil {
		engines = recognizer.Static{}
	}
	logger := logging.NewComponentLogger(opts.Logger, "queue")
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		allow:      allow,
		engines:    engines,
		publisher:  opts.Publisher,
		persister:  opts.Persister,
		logger:     logger,
		maxBytes:   opts.MaxFileSizeBytes,
		warnBytes:  opts.LargeFileWarningBytes,
		onDrained:  opts.OnDrained,
		now:        func() time.Time { return time.Now().UTC() },
		baseCtx:    ctx,
		baseCancel: cancel,
		index:      make(map[string]*Job),
		cancelled:  make(map[string]bool),

		progressLog: logging.NewProgressSampler(0.1),
	}
	if opts.Persister != nil {
		m.journal = newJournal(opts.Persister, logger)
	}
	return m
}

type candidate struct {
	path string
	size int64
}

// Enqueue creates queued jobs for every supported path that is not already
// queued or processing. Unsupported paths and live duplicates are skipped
// silently. Missing, non-regular, and oversized files produce validation
// errors, which are returned only when no job was created.
func (m *Manager) Enqueue(paths []string) ([]Job, error) {
	var errs []error
	candidates := make([]candidate, 0, len(paths))
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if !m.allow.Allowed(path) {
			m.logger.Debug("skipping unsupported file", logging.String("path", path))
			continue
		}
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			errs = append(errs, validationError("enqueue", "file not found: "+path, nil))
			continue
		case err != nil:
			errs = append(errs, validationError("enqueue", "stat "+path, err))
			continue
		case !info.Mode().IsRegular():
			errs = append(errs, validationError("enqueue", "not a regular file: "+path, nil))
			continue
		case m.maxBytes > 0 && info.Size() > m.maxBytes:
			errs = append(errs, validationError("enqueue",
				fmt.Sprintf("file too large: %s (%d MB, limit %d MB)", path, info.Size()>>20, m.maxBytes>>20), nil))
			continue
		}
		if m.warnBytes > 0 && info.Size() > m.warnBytes {
			logging.WarnWithContext(m.logger, "large file queued", "large_file",
				logging.String("path", path),
				logging.Int64("size_mb", info.Size()>>20),
				logging.String(logging.FieldImpact, "transcription may take a long time"),
				logging.String(logging.FieldErrorHint, "split the recording for faster turnaround"))
		}
		candidates = append(candidates, candidate{path: path, size: info.Size()})
	}

	m.mu.Lock()
	created := make([]Job, 0, len(candidates))
	for _, c := range candidates {
		if m.liveForPathLocked(c.path) {
			m.logger.Debug("skipping duplicate file", logging.String("path", c.path))
			continue
		}
		job := &Job{
			ID:        NewJobID(m.now()),
			FilePath:  c.path,
			FileName:  filepath.Base(c.path),
			FileSize:  c.size,
			Status:    StatusQueued,
			CreatedAt: m.now(),
		}
		m.jobs = append(m.jobs, job)
		m.index[job.ID] = job
		snapshot := job.clone()
		m.journal.save(snapshot)
		m.publishLocked(snapshot)
		created = append(created, snapshot)
		m.logger.Info("job queued",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("file", job.FileName),
			logging.Int64("size_bytes", job.FileSize))
	}
	m.mu.Unlock()

	if len(created) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		m.logger.Info("file not queued", logging.Error(err))
	}
	return created, nil
}

// RemoveJob deletes a job that is not currently processing.
func (m *Manager) RemoveJob(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.index[id]
	if !ok {
		return notFoundError("remove", id)
	}
	if job.Status == StatusProcessing {
		return validationError("remove", "job "+id+" is processing; cancel it first", nil)
	}
	m.deleteLocked(func(j *Job) bool { return j.ID == id })
	m.journal.remove(id)
	m.logger.Info("job removed", logging.String(logging.FieldJobID, id))
	return nil
}

// ClearCompleted removes every completed, failed, and cancelled job and
// reports how many were removed.
func (m *Manager) ClearCompleted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := m.deleteLocked(func(j *Job) bool { return j.Status.IsTerminal() })
	m.journal.remove(removed...)
	if len(removed) > 0 {
		m.logger.Info("cleared finished jobs", logging.Int("count", len(removed)))
	}
	return len(removed)
}

func (m *Manager) deleteLocked(match func(*Job) bool) []string {
	var removed []string
	kept := m.jobs[:0]
	for _, job := range m.jobs {
		if match(job) {
			removed = append(removed, job.ID)
			delete(m.index, job.ID)
			continue
		}
		kept = append(kept, job)
	}
	for i := len(kept); i < len(m.jobs); i++ {
		m.jobs[i] = nil
	}
	m.jobs = kept
	return removed
}

// Jobs returns a snapshot of every job in creation order.
func (m *Manager) Jobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job.clone())
	}
	return out
}

// ListJobs is Jobs with a Lister-compatible signature.
func (m *Manager) ListJobs(context.Context) ([]Job, error) {
	return m.Jobs(), nil
}

// Job returns a snapshot of the job with the given id.
func (m *Manager) Job(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.index[id]
	if !ok {
		return Job{}, false
	}
	return job.clone(), true
}

// HasPath reports whether any job in the collection, live or finished, was
// created for path.
func (m *Manager) HasPath(path string) bool {
	path = filepath.Clean(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, job := range m.jobs {
		if job.FilePath == path {
			return true
		}
	}
	return false
}

func (m *Manager) liveForPathLocked(path string) bool {
	for _, job := range m.jobs {
		if job.FilePath == path && job.Status.IsLive() {
			return true
		}
	}
	return false
}

// IsProcessing reports whether any job is in the processing state.
func (m *Manager) IsProcessing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processingLocked() != nil
}

func (m *Manager) processingLocked() *Job {
	for _, job := range m.jobs {
		if job.Status == StatusProcessing {
			return job
		}
	}
	return nil
}

// Summary reports job counts per status.
func (m *Manager) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaryLocked()
}

func (m *Manager) summaryLocked() Summary {
	summary := Summary{Total: len(m.jobs), Counts: make(map[Status]int, len(allStatuses)), Running: m.running}
	for _, status := range allStatuses {
		summary.Counts[status] = 0
	}
	for _, job := range m.jobs {
		summary.Counts[job.Status]++
		if job.Status == StatusProcessing {
			summary.ProcessingJobID = job.ID
		}
	}
	return summary
}

// Restore loads persisted jobs into the collection. Jobs persisted while
// processing are returned to the queue with zero progress.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.persister == nil {
		return 0, nil
	}
	stored, err := m.persister.LoadJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("load jobs: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	restored := 0
	for i := range stored {
		job := stored[i]
		if _, exists := m.index[job.ID]; exists {
			continue
		}
		if _, ok := statusSet[job.Status]; !ok {
			logging.WarnWithContext(m.logger, "skipping persisted job with unknown status", "job_restore_skipped",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("status", string(job.Status)),
				logging.String(logging.FieldImpact, "job not restored"))
			continue
		}
		if job.Status == StatusProcessing {
			job.Status = StatusQueued
			job.Progress = 0
			job.StartedAt = nil
			m.journal.save(job)
			m.logger.Info("job requeued",
				logging.String(logging.FieldJobID, job.ID),
				logging.String("reason", DaemonRestartReason))
		}
		if job.Status == StatusQueued {
			job.Progress = 0
		}
		ptr := &job
		m.jobs = append(m.jobs, ptr)
		m.index[job.ID] = ptr
		restored++
	}
	return restored, nil
}

// Close cancels any run, waits for the worker, and flushes persistence.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.halt = true
	m.mu.Unlock()

	m.baseCancel()
	m.wg.Wait()
	m.journal.close()
}

func (m *Manager) publishLocked(job Job) {
	if m.publisher == nil {
		return
	}
	update := events.JobUpdate{
		JobID:    job.ID,
		Status:   string(job.Status),
		Progress: job.Progress,
	}
	if job.Status == StatusCompleted {
		text := job.Transcription
		update.Transcription = &text
	}
	if job.Status == StatusFailed {
		update.Error = events.StringPtr(job.Error)
	}
	m.publisher.Publish(events.NewJobUpdate(update))
}
