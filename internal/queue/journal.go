package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"filescribe/internal/logging"
)

const journalWriteTimeout = 10 * time.Second

// Persister stores job snapshots. Implementations are called from a single
// journal goroutine, in the order the manager produced the changes.
type Persister interface {
	SaveJob(ctx context.Context, job Job) error
	DeleteJobs(ctx context.Context, ids ...string) error
	LoadJobs(ctx context.Context) ([]Job, error)
}

type journalOp struct {
	save   *Job
	delete []string
}

// journal applies persistence operations asynchronously so manager callers
// never wait on the database.
type journal struct {
	store  Persister
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []journalOp
	closed  bool
	done    chan struct{}
}

func newJournal(store Persister, logger *slog.Logger) *journal {
	j := &journal{store: store, logger: logger, done: make(chan struct{})}
	j.cond = sync.NewCond(&j.mu)
	go j.loop()
	return j
}

func (j *journal) save(job Job) {
	j.push(journalOp{save: &job})
}

func (j *journal) remove(ids ...string) {
	if len(ids) == 0 {
		return
	}
	j.push(journalOp{delete: append([]string(nil), ids...)})
}

func (j *journal) push(op journalOp) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.pending = append(j.pending, op)
	j.cond.Signal()
}

func (j *journal) loop() {
	defer close(j.done)
	for {
		j.mu.Lock()
		for len(j.pending) == 0 && !j.closed {
			j.cond.Wait()
		}
		if len(j.pending) == 0 && j.closed {
			j.mu.Unlock()
			return
		}
		batch := j.pending
		j.pending = nil
		j.mu.Unlock()

		for _, op := range batch {
			j.apply(op)
		}
	}
}

func (j *journal) apply(op journalOp) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	switch {
	case op.save != nil:
		if err := j.store.SaveJob(ctx, *op.save); err != nil {
			logging.WarnWithContext(j.logger, "persist job failed", "job_persist_failed",
				logging.String(logging.FieldJobID, op.save.ID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "job state may be stale after restart"),
				logging.String(logging.FieldErrorHint, "check the database path is writable"))
		}
	case len(op.delete) > 0:
		if err := j.store.DeleteJobs(ctx, op.delete...); err != nil {
			logging.WarnWithContext(j.logger, "delete persisted jobs failed", "job_delete_failed",
				logging.Int("count", len(op.delete)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "removed jobs may reappear after restart"))
		}
	}
}

// close flushes pending operations and stops the goroutine.
func (j *journal) close() {
	if j == nil {
		return
	}
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		<-j.done
		return
	}
	j.closed = true
	j.cond.Broadcast()
	j.mu.Unlock()
	<-j.done
}
