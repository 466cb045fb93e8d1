package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"filescribe/internal/config"
	"filescribe/internal/events"
	"filescribe/internal/export"
	"filescribe/internal/logging"
	"filescribe/internal/media"
	"filescribe/internal/notifications"
	"filescribe/internal/queue"
	"filescribe/internal/recognizer"
	"filescribe/internal/services"
	"filescribe/internal/store"
	"filescribe/internal/watch"
)

const (
	busCapacity  = 2048
	relayBuffer  = 256
	minSettleDur = time.Millisecond
)

// Daemon owns the queue manager, watch service, event bus and notification
// relay, and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	bus      *events.Bus
	allow    *media.ExtensionSet
	queue    *queue.Manager
	watch    *watch.Service
	notifier notifications.Service
	relay    *notifications.Relay

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	running   atomic.Bool
	stopped   bool
	startedAt time.Time
	cancel    context.CancelFunc
	relaySub  *events.Subscription
	relayDone chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	Queue        queue.Summary
	Folders      []watch.FolderStatus
	LastSequence uint64
	DatabasePath string
	LockPath     string
	SocketPath   string
}

// ExportRequest selects a completed job and an output format. An empty
// format falls back to export.default_format and an empty Dir to
// paths.export_dir. When Inline is set the content is returned instead of
// written.
type ExportRequest struct {
	JobID    string
	Format   string
	Dir      string
	FileName string
	Inline   bool
}

// ExportResult reports where an export was written, or its content when
// inline.
type ExportResult struct {
	Path    string
	Format  export.Format
	Content []byte
}

// New constructs a daemon. The store may be nil, in which case jobs and
// folders live only in memory.
func New(cfg *config.Config, st *store.Store, engines recognizer.EngineProvider, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if engines == nil {
		return nil, errors.New("daemon requires a recognizer engine provider")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		bus:      events.NewBus(busCapacity),
		allow:    media.NewExtensionSet(cfg.Queue.SupportedExtensions),
		notifier: notifications.NewService(cfg),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	var persister queue.Persister
	var folderStore watch.ConfigStore
	if st != nil {
		folderStore = st
		if cfg.Queue.Persist {
			persister = st
		}
	}

	d.relay = notifications.NewRelay(d.notifier, d.lookupJob, logger)
	d.queue = queue.NewManager(queue.Options{
		Allowlist:             d.allow,
		Engines:               engines,
		Publisher:             d.bus,
		Persister:             persister,
		Logger:                logger,
		MaxFileSizeBytes:      cfg.MaxFileSizeBytes(),
		LargeFileWarningBytes: cfg.LargeFileWarningBytes(),
		OnDrained:             d.relay.QueueDrained,
	})

	settle := time.Duration(cfg.Watch.SettleMillis) * time.Millisecond
	if settle < minSettleDur {
		settle = minSettleDur
	}
	d.watch = watch.NewService(watch.Options{
		Store:              folderStore,
		Queue:              d.queue,
		Allowlist:          d.allow,
		Publisher:          d.bus,
		Logger:             logger,
		Settle:             settle,
		DefaultAutoProcess: cfg.Watch.DefaultAutoProcess,
		Seeds:              cfg.Watch.Folders,
	})
	return d, nil
}

// Start acquires the daemon lock, restores persisted jobs, and starts the
// watch folders and notification relay.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if d.stopped {
		return errors.New("daemon has been stopped")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another filescribe daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	restored, err := d.queue.Restore(runCtx)
	if err != nil {
		logging.WarnWithContext(d.logger, "job restore failed", "queue_restore_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "previously queued jobs are not listed"),
			logging.String(logging.FieldErrorHint, "check the database at "+d.cfg.DatabasePath()))
	}
	if err := d.watch.StartAll(runCtx); err != nil {
		logging.WarnWithContext(d.logger, "watch folders did not all start", "watch_start_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "some watch folders are inactive"),
			logging.String(logging.FieldErrorHint, "run filescribe watch status for per-folder errors"))
	}

	d.relaySub = d.bus.Subscribe(relayBuffer)
	d.relayDone = make(chan struct{})
	go func(ch <-chan events.Event, done chan struct{}) {
		defer close(done)
		d.relay.Run(runCtx, ch)
	}(d.relaySub.C(), d.relayDone)

	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("filescribe daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.Int("restored_jobs", restored))
	return nil
}

// Stop halts the watch folders and the worker, flushes the job journal, and
// releases the lock. A stopped daemon cannot be restarted.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.watch.Close()
	d.queue.Close()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.relaySub != nil {
		d.relaySub.Close()
		<-d.relayDone
		d.relaySub = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_unlock_failed"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"))
	}
	d.stopped = true
	d.running.Store(false)
	d.logger.Info("filescribe daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close stops the daemon and releases the store.
func (d *Daemon) Close() error {
	d.Stop()
	d.watch.Close()
	d.queue.Close()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	started := d.startedAt
	d.mu.Unlock()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    started,
		Queue:        d.queue.Summary(),
		Folders:      d.watch.Status(),
		LastSequence: d.bus.LastSequence(),
		DatabasePath: d.cfg.DatabasePath(),
		LockPath:     d.lockPath,
		SocketPath:   d.cfg.SocketPath(),
	}
}

// Queue exposes the job queue manager.
func (d *Daemon) Queue() *queue.Manager {
	return d.queue
}

// Watch exposes the watch-folder service.
func (d *Daemon) Watch() *watch.Service {
	return d.watch
}

// Bus exposes the event bus.
func (d *Daemon) Bus() *events.Bus {
	return d.bus
}

// Extensions lists the supported media extensions.
func (d *Daemon) Extensions() []string {
	return d.allow.Extensions()
}

// ListJobs returns jobs in creation order, optionally filtered by status.
func (d *Daemon) ListJobs(statuses []queue.Status) []queue.Job {
	jobs := d.queue.Jobs()
	if len(statuses) == 0 {
		return jobs
	}
	want := make(map[queue.Status]struct{}, len(statuses))
	for _, s := range statuses {
		want[s] = struct{}{}
	}
	filtered := jobs[:0]
	for _, job := range jobs {
		if _, ok := want[job.Status]; ok {
			filtered = append(filtered, job)
		}
	}
	return filtered
}

// Export serializes a completed job's transcript.
func (d *Daemon) Export(req ExportRequest) (ExportResult, error) {
	job, ok := d.queue.Job(strings.TrimSpace(req.JobID))
	if !ok {
		return ExportResult{}, services.Wrap(services.ErrNotFound, "export", "lookup job", "job "+req.JobID+" not found", nil)
	}
	if job.Status != queue.StatusCompleted {
		return ExportResult{}, services.Wrap(services.ErrValidation, "export", "lookup job",
			fmt.Sprintf("job %s is %s, only completed jobs can be exported", job.ID, job.Status), nil)
	}

	formatName := req.Format
	if strings.TrimSpace(formatName) == "" {
		formatName = d.cfg.Export.DefaultFormat
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		return ExportResult{}, err
	}

	meta := export.Metadata{
		Title:      export.TitleFromPath(job.FilePath),
		SourceFile: job.FilePath,
		DurationMS: job.MediaDurationMS,
		CreatedAt:  job.CreatedAt,
	}
	if job.CompletedAt != nil {
		meta.CreatedAt = *job.CompletedAt
	}
	content, err := export.Serialize(job.Transcription, format, job.Segments, meta)
	if err != nil {
		return ExportResult{}, err
	}
	if req.Inline {
		return ExportResult{Format: format, Content: content}, nil
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = d.cfg.Paths.ExportDir
	} else if dir, err = config.ExpandPath(dir); err != nil {
		return ExportResult{}, services.Wrap(services.ErrExport, "export", "resolve dir", "", err)
	}
	name := strings.TrimSpace(req.FileName)
	if name == "" {
		name = export.DefaultFileName(job.FilePath, format)
	}
	path, err := export.WriteFile(dir, name, content)
	if err != nil {
		return ExportResult{}, err
	}
	d.logger.Info("transcript exported",
		logging.String(logging.FieldEventType, "transcript_exported"),
		logging.String(logging.FieldJobID, job.ID),
		logging.String("format", string(format)),
		logging.String("path", path))
	return ExportResult{Path: path, Format: format}, nil
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) lookupJob(id string) (queue.Job, bool) {
	return d.queue.Job(id)
}
