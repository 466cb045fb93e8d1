package notifications

import (
	"context"
	"log/slog"
	"time"

	"filescribe/internal/events"
	"filescribe/internal/logging"
	"filescribe/internal/queue"
)

const relayTimeout = 15 * time.Second

// JobLookup resolves a job id to its current snapshot.
type JobLookup func(id string) (queue.Job, bool)

// Relay turns terminal job updates from the event bus into notifications.
type Relay struct {
	svc    Service
	lookup JobLookup
	logger *slog.Logger
}

// NewRelay builds a relay. lookup supplies file names for job events.
func NewRelay(svc Service, lookup JobLookup, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = logging.NewNop()
	}
	if svc == nil {
		svc = noopService{}
	}
	return &Relay{svc: svc, lookup: lookup, logger: logging.NewComponentLogger(logger, "notifications")}
}

// Run consumes events until ctx is cancelled or the channel closes.
func (r *Relay) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			r.handle(ctx, evt)
		}
	}
}

func (r *Relay) handle(ctx context.Context, evt events.Event) {
	if evt.Topic != events.TopicJobUpdate || evt.Job == nil {
		return
	}
	status, ok := queue.ParseStatus(evt.Job.Status)
	if !ok || (status != queue.StatusCompleted && status != queue.StatusFailed) {
		return
	}

	name := evt.Job.JobID
	var elapsed time.Duration
	if r.lookup != nil {
		if job, found := r.lookup(evt.Job.JobID); found {
			name = job.FileName
			elapsed = time.Duration(job.DurationSeconds * float64(time.Second))
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	var err error
	if status == queue.StatusCompleted {
		err = r.svc.NotifyJobCompleted(sendCtx, name, elapsed)
	} else {
		reason := ""
		if evt.Job.Error != nil {
			reason = *evt.Job.Error
		}
		err = r.svc.NotifyJobFailed(sendCtx, name, reason)
	}
	if err != nil {
		r.warn(err, evt.Job.JobID)
	}
}

// QueueDrained notifies that the worker emptied the queue. It matches the
// queue manager's drained callback.
func (r *Relay) QueueDrained(summary queue.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
	defer cancel()
	completed := summary.Counts[queue.StatusCompleted]
	failed := summary.Counts[queue.StatusFailed]
	if err := r.svc.NotifyQueueDrained(ctx, completed, failed); err != nil {
		r.warn(err, "")
	}
}

func (r *Relay) warn(err error, jobID string) {
	attrs := []logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldImpact, "notification was not delivered"),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
	}
	if jobID != "" {
		attrs = append(attrs, logging.String(logging.FieldJobID, jobID))
	}
	logging.WarnWithContext(r.logger, "notification failed", "notification_failed", attrs...)
}
