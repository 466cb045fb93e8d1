package queue

import (
	"context"
	"fmt"
	"sync"

	"filescribe/internal/events"
)

// Lister returns the authoritative job collection.
type Lister interface {
	ListJobs(ctx context.Context) ([]Job, error)
}

// ListerFunc adapts a function to Lister.
type ListerFunc func(ctx context.Context) ([]Job, error)

// ListJobs implements Lister.
func (f ListerFunc) ListJobs(ctx context.Context) ([]Job, error) {
	return f(ctx)
}

// Mirror keeps a consumer-side copy of the job collection current from
// file-transcription-update events. An update for an unknown job, or a jump
// in the event sequence, triggers a full re-list.
type Mirror struct {
	lister Lister

	mu      sync.Mutex
	jobs    map[string]Job
	order   []string
	lastSeq uint64
	resyncs int
}

// NewMirror constructs an empty mirror backed by lister.
func NewMirror(lister Lister) *Mirror {
	return &Mirror{lister: lister, jobs: make(map[string]Job)}
}

// Sync replaces the mirrored state with a fresh listing.
func (m *Mirror) Sync(ctx context.Context) error {
	jobs, err := m.lister.ListJobs(ctx)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceLocked(jobs)
	return nil
}

// SetCursor records the last event sequence reflected in the mirrored state.
func (m *Mirror) SetCursor(seq uint64) {
	m.mu.Lock()
	m.lastSeq = seq
	m.mu.Unlock()
}

// Cursor returns the last applied event sequence.
func (m *Mirror) Cursor() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeq
}

// Apply folds one bus event into the mirror. Events from other topics only
// advance the cursor. Replayed events at or below the cursor are ignored.
func (m *Mirror) Apply(ctx context.Context, evt events.Event) error {
	m.mu.Lock()
	if m.lastSeq != 0 && evt.Seq != 0 && evt.Seq <= m.lastSeq {
		m.mu.Unlock()
		return nil
	}
	gap := m.lastSeq != 0 && evt.Seq > m.lastSeq+1
	unknown := false
	if evt.Topic == events.TopicJobUpdate && evt.Job != nil {
		_, known := m.jobs[evt.Job.JobID]
		unknown = !known
	}
	if !gap && !unknown {
		if evt.Job != nil {
			m.applyLocked(*evt.Job)
		}
		if evt.Seq != 0 {
			m.lastSeq = evt.Seq
		}
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := m.Resync(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	if evt.Seq > m.lastSeq {
		m.lastSeq = evt.Seq
	}
	m.mu.Unlock()
	return nil
}

// Resync re-lists the collection and counts the recovery.
func (m *Mirror) Resync(ctx context.Context) error {
	if err := m.Sync(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	m.resyncs++
	m.mu.Unlock()
	return nil
}

// Jobs returns the mirrored jobs in listing order.
func (m *Mirror) Jobs() []Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Job, 0, len(m.order))
	for _, id := range m.order {
		job := m.jobs[id]
		out = append(out, job.clone())
	}
	return out
}

// Job returns one mirrored job.
func (m *Mirror) Job(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return job.clone(), true
}

// Resyncs reports how many full re-lists were triggered by Apply or Resync.
func (m *Mirror) Resyncs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resyncs
}

func (m *Mirror) replaceLocked(jobs []Job) {
	m.jobs = make(map[string]Job, len(jobs))
	m.order = m.order[:0]
	for _, job := range jobs {
		m.jobs[job.ID] = job
		m.order = append(m.order, job.ID)
	}
}

func (m *Mirror) applyLocked(update events.JobUpdate) {
	job := m.jobs[update.JobID]
	if status, ok := ParseStatus(update.Status); ok {
		job.Status = status
	}
	job.Progress = update.Progress
	if update.Transcription != nil {
		job.Transcription = *update.Transcription
	}
	if update.Error != nil {
		job.Error = *update.Error
	}
	m.jobs[update.JobID] = job
}
