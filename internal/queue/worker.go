package queue

import (
	"context"
	"errors"
	"time"

	"filescribe/internal/logging"
	"filescribe/internal/recognizer"
	"filescribe/internal/services"
)

// ProcessAll starts the background worker if it is not already running. The
// worker takes queued jobs in creation order until none remain or Cancel halts
// it.
func (m *Manager) ProcessAll() {
	m.mu.Lock()
	if m.running || m.closed {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.halt = false
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run()
}

// Cancel aborts the in-flight job and halts the worker after it. Remaining
// jobs stay queued.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return ErrNothingProcessing
	}
	m.halt = true
	if m.cancelJob != nil {
		m.cancelled[m.currentID] = true
		m.cancelJob()
		m.logger.Info("cancellation requested", logging.String(logging.FieldJobID, m.currentID))
	}
	return nil
}

// Running reports whether a worker run is active.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Manager) run() {
	defer m.wg.Done()
	processed := 0
	for {
		job, ctx, ok := m.claimNext()
		if !ok {
			break
		}
		m.process(ctx, job)
		processed++
	}

	m.mu.Lock()
	m.running = false
	halted := m.halt
	summary := m.summaryLocked()
	m.mu.Unlock()

	m.logger.Info("worker stopped",
		logging.Int("processed", processed),
		logging.Bool("halted", halted),
		logging.Int("remaining", summary.Counts[StatusQueued]))
	if !halted && processed > 0 && m.onDrained != nil {
		m.onDrained(summary)
	}
}

// claimNext moves the oldest queued job to processing.
func (m *Manager) claimNext() (Job, context.Context, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.halt || m.closed {
		return Job{}, nil, false
	}
	var next *Job
	for _, job := range m.jobs {
		if job.Status == StatusQueued {
			next = job
			break
		}
	}
	if next == nil {
		return Job{}, nil, false
	}
	if !m.transitionLocked(next, StatusProcessing) {
		return Job{}, nil, false
	}
	started := m.now()
	next.StartedAt = &started
	next.Progress = 0
	next.Error = ""

	ctx, cancel := context.WithCancel(m.baseCtx)
	m.currentID = next.ID
	m.cancelJob = cancel

	snapshot := next.clone()
	m.journal.save(snapshot)
	m.publishLocked(snapshot)
	return snapshot, services.WithJobID(ctx, next.ID), true
}

func (m *Manager) process(ctx context.Context, job Job) {
	logger := logging.WithContext(ctx, m.logger)
	logger.Info("transcription started", logging.String("file", job.FileName))

	engine, err := m.engines.ActiveEngine(ctx)
	if err == nil && engine == nil {
		err = recognizer.ErrNoActiveEngine
	}
	if err != nil {
		m.finish(job.ID, recognizer.Result{}, err)
		return
	}

	result, err := engine.Transcribe(ctx, recognizer.Request{JobID: job.ID, Path: job.FilePath}, func(progress float64) {
		m.updateProgress(job.ID, progress)
	})
	m.finish(job.ID, result, err)
}

func (m *Manager) updateProgress(id string, progress float64) {
	progress = min(max(progress, 0), 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.index[id]
	if !ok || job.Status != StatusProcessing || m.cancelled[id] {
		return
	}
	if progress <= job.Progress {
		return
	}
	job.Progress = progress
	m.publishLocked(job.clone())
	if m.progressLog.ShouldLog(id, progress) {
		m.logger.Debug("job progress",
			logging.String(logging.FieldJobID, id),
			logging.Float64("progress", progress))
	}
}

func (m *Manager) finish(id string, result recognizer.Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cancelRequested := m.cancelled[id]
	delete(m.cancelled, id)
	m.progressLog.Forget(id)
	if m.cancelJob != nil {
		m.cancelJob()
		m.cancelJob = nil
	}
	m.currentID = ""

	job, ok := m.index[id]
	if !ok {
		return
	}

	completed := m.now()
	var target Status
	switch {
	case cancelRequested, err != nil && services.IsCancellation(err):
		target = StatusCancelled
	case err != nil:
		target = StatusFailed
	default:
		target = StatusCompleted
	}
	if !m.transitionLocked(job, target) {
		return
	}
	job.CompletedAt = &completed
	if job.StartedAt != nil {
		job.DurationSeconds = completed.Sub(*job.StartedAt).Seconds()
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldJobID, id),
		logging.Duration("elapsed", time.Duration(job.DurationSeconds*float64(time.Second))),
	}
	switch target {
	case StatusCompleted:
		job.Progress = 1
		job.Transcription = result.Text
		job.Segments = result.Segments
		job.MediaDurationMS = result.DurationMS
		m.logger.Info("transcription completed", logging.Args(append(attrs, logging.Int("segments", len(result.Segments)))...)...)
	case StatusFailed:
		job.Error = failureMessage(err)
		attrs = append(attrs, logging.Error(err),
			logging.String(logging.FieldImpact, "job marked failed; queue continues"))
		if errors.Is(err, recognizer.ErrNoActiveEngine) {
			attrs = append(attrs, logging.String(logging.FieldErrorHint, "configure recognizer.command and recognizer.model"))
		}
		logging.WarnWithContext(m.logger, "transcription failed", "job_failed", attrs...)
	case StatusCancelled:
		m.logger.Info("transcription cancelled", logging.Args(attrs...)...)
	}

	snapshot := job.clone()
	m.journal.save(snapshot)
	m.publishLocked(snapshot)
}

func (m *Manager) transitionLocked(job *Job, to Status) bool {
	if !isValidTransition(job.Status, to) {
		logging.WarnWithContext(m.logger, "refusing invalid status transition", "invalid_transition",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("from", string(job.Status)),
			logging.String("to", string(to)),
			logging.String(logging.FieldImpact, "job state unchanged"))
		return false
	}
	job.Status = to
	return true
}
