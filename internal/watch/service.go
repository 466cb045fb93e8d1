package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"filescribe/internal/config"
	"filescribe/internal/events"
	"filescribe/internal/logging"
	"filescribe/internal/media"
	"filescribe/internal/services"
)

const defaultSettle = time.Second

// Options configures a Service.
type Options struct {
	Store              ConfigStore
	Queue              Queue
	Allowlist          media.Allowlist
	Publisher          events.Publisher
	Logger             *slog.Logger
	Settle             time.Duration
	DefaultAutoProcess bool
	Seeds              []config.WatchFolder
}

// AddOptions tunes a folder at creation. A nil AutoProcess takes the
// service default.
type AddOptions struct {
	Recursive   bool
	AutoProcess *bool
}

type folderState struct {
	cfg FolderConfig
	sub *subscription
	// lost is set once sub has failed on its own; sub is kept so stop can
	// still wait for its watcher to close.
	lost       bool
	generation uint64
	lastError  string
	detected   int
}

// Service monitors configured folders and forwards new media files to the
// job queue. Each enabled folder has at most one live subscription.
type Service struct {
	store     ConfigStore
	queue     Queue
	allow     media.Allowlist
	publisher events.Publisher
	logger    *slog.Logger
	settle    time.Duration
	autoDef   bool
	seeds     []config.WatchFolder
	now       func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// live counts subscription goroutines whose watcher is still open.
	live atomic.Int64

	// ops serializes control-plane changes so a folder is never started
	// while its previous subscription is still draining.
	ops sync.Mutex

	mu      sync.Mutex
	folders map[string]*folderState
	order   []string
	seen    map[string]struct{}
	closed  bool
}

// NewService constructs a watch service. Nothing is watched until StartAll
// or AddFolder.
func NewService(opts Options) *Service {
	allow := opts.Allowlist
	if allow == nil {
		allow = media.DefaultAllowlist()
	}
	settle := opts.Settle
	if settle <= 0 {
		settle = defaultSettle
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		store:      opts.Store,
		queue:      opts.Queue,
		allow:      allow,
		publisher:  opts.Publisher,
		logger:     logging.NewComponentLogger(opts.Logger, "watch"),
		settle:     settle,
		autoDef:    opts.DefaultAutoProcess,
		seeds:      opts.Seeds,
		now:        func() time.Time { return time.Now().UTC() },
		baseCtx:    ctx,
		baseCancel: cancel,
		folders:    make(map[string]*folderState),
		seen:       make(map[string]struct{}),
	}
}

// StartAll restores persisted folders, adds config-file seeds that are not
// already known, and starts every enabled folder.
func (s *Service) StartAll(ctx context.Context) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	if s.store != nil {
		stored, err := s.store.LoadFolders(ctx)
		if err != nil {
			return fmt.Errorf("load watch folders: %w", err)
		}
		s.mu.Lock()
		for _, cfg := range stored {
			if _, exists := s.folders[cfg.ID]; exists {
				continue
			}
			s.folders[cfg.ID] = &folderState{cfg: cfg}
			s.order = append(s.order, cfg.ID)
		}
		s.mu.Unlock()
	}

	for _, seed := range s.seeds {
		path, err := canonicalize(seed.Path)
		if err != nil {
			logging.WarnWithContext(s.logger, "skipping configured watch folder", "watch_seed_invalid",
				logging.String("path", seed.Path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "folder not monitored"),
				logging.String(logging.FieldErrorHint, "fix [[watch.folders]] in the config file"))
			continue
		}
		if s.findByPath(path) != nil {
			continue
		}
		auto := s.autoDef
		if seed.AutoProcess != nil {
			auto = *seed.AutoProcess
		}
		cfg := s.newConfig(path, seed.Recursive, auto)
		if err := s.persist(ctx, cfg); err != nil {
			return err
		}
		s.mu.Lock()
		s.folders[cfg.ID] = &folderState{cfg: cfg}
		s.order = append(s.order, cfg.ID)
		s.mu.Unlock()
	}

	for _, cfg := range s.Folders() {
		if cfg.Enabled {
			_ = s.start(cfg.ID)
		}
	}
	return nil
}

// AddFolder registers and starts watching path with the default
// auto_process setting.
func (s *Service) AddFolder(ctx context.Context, path string, recursive bool) (FolderConfig, error) {
	return s.AddFolderWith(ctx, path, AddOptions{Recursive: recursive})
}

// AddFolderWith registers and starts watching path. The config is complete
// before the first event can arrive. A start failure is recorded in the
// folder's status; the config is still returned.
func (s *Service) AddFolderWith(ctx context.Context, path string, opts AddOptions) (FolderConfig, error) {
	canonical, err := canonicalize(path)
	if err != nil {
		return FolderConfig{}, err
	}

	s.ops.Lock()
	defer s.ops.Unlock()
	if s.isClosed() {
		return FolderConfig{}, errors.New("watch service closed")
	}
	if existing := s.findByPath(canonical); existing != nil {
		return FolderConfig{}, services.Wrap(services.ErrValidation, "watch", "add",
			"folder already watched: "+canonical, nil)
	}

	auto := s.autoDef
	if opts.AutoProcess != nil {
		auto = *opts.AutoProcess
	}
	cfg := s.newConfig(canonical, opts.Recursive, auto)
	if err := s.persist(ctx, cfg); err != nil {
		return FolderConfig{}, err
	}
	s.mu.Lock()
	s.folders[cfg.ID] = &folderState{cfg: cfg}
	s.order = append(s.order, cfg.ID)
	s.mu.Unlock()

	s.logger.Info("watch folder added",
		logging.String(logging.FieldFolderID, cfg.ID),
		logging.String("path", cfg.Path),
		logging.Bool("recursive", cfg.Recursive),
		logging.Bool("auto_process", cfg.AutoProcess))
	_ = s.start(cfg.ID)
	return cfg, nil
}

// RemoveFolder stops the folder's subscription and deletes its config.
func (s *Service) RemoveFolder(ctx context.Context, id string) error {
	s.ops.Lock()
	defer s.ops.Unlock()

	state := s.lookup(id)
	if state == nil {
		return services.Wrap(services.ErrNotFound, "watch", "remove", "folder "+id, nil)
	}
	s.stop(id)

	s.mu.Lock()
	delete(s.folders, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.DeleteFolder(ctx, id); err != nil {
			return fmt.Errorf("delete watch folder: %w", err)
		}
	}
	s.logger.Info("watch folder removed", logging.String(logging.FieldFolderID, id))
	return nil
}

// UpdateFolder applies a changed config. A change of path, recursion, or
// enablement restarts the subscription after the old one has fully stopped;
// an auto_process change alone takes effect immediately.
func (s *Service) UpdateFolder(ctx context.Context, next FolderConfig) (FolderConfig, error) {
	s.ops.Lock()
	defer s.ops.Unlock()

	state := s.lookup(next.ID)
	if state == nil {
		return FolderConfig{}, services.Wrap(services.ErrNotFound, "watch", "update", "folder "+next.ID, nil)
	}
	s.mu.Lock()
	current := state.cfg
	s.mu.Unlock()

	if next.Path != current.Path {
		canonical, err := canonicalize(next.Path)
		if err != nil {
			return FolderConfig{}, err
		}
		if other := s.findByPath(canonical); other != nil && other.ID != next.ID {
			return FolderConfig{}, services.Wrap(services.ErrValidation, "watch", "update",
				"folder already watched: "+canonical, nil)
		}
		next.Path = canonical
	}
	next.CreatedAt = current.CreatedAt

	restart := next.Path != current.Path || next.Recursive != current.Recursive || next.Enabled != current.Enabled
	if err := s.persist(ctx, next); err != nil {
		return FolderConfig{}, err
	}

	if !restart {
		s.mu.Lock()
		state.cfg = next
		s.mu.Unlock()
		s.logger.Info("watch folder updated",
			logging.String(logging.FieldFolderID, next.ID),
			logging.Bool("auto_process", next.AutoProcess))
		return next, nil
	}

	s.stop(next.ID)
	s.mu.Lock()
	state.cfg = next
	s.mu.Unlock()
	s.logger.Info("watch folder reconfigured",
		logging.String(logging.FieldFolderID, next.ID),
		logging.String("path", next.Path),
		logging.Bool("enabled", next.Enabled),
		logging.Bool("recursive", next.Recursive))
	if next.Enabled {
		_ = s.start(next.ID)
	}
	return next, nil
}

// Folders returns every folder config in creation order.
func (s *Service) Folders() []FolderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FolderConfig, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.folders[id].cfg)
	}
	return out
}

// Folder returns one folder config.
func (s *Service) Folder(id string) (FolderConfig, bool) {
	state := s.lookup(id)
	if state == nil {
		return FolderConfig{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.cfg, true
}

// Status returns the live state of every folder in creation order.
func (s *Service) Status() []FolderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]FolderStatus, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.statusLocked(s.folders[id]))
	}
	return out
}

// Close stops every subscription.
func (s *Service) Close() {
	s.ops.Lock()
	defer s.ops.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	ids := append([]string(nil), s.order...)
	s.mu.Unlock()

	for _, id := range ids {
		s.stop(id)
	}
	s.baseCancel()
}

func (s *Service) statusLocked(state *folderState) FolderStatus {
	return FolderStatus{
		FolderID:      state.cfg.ID,
		Path:          state.cfg.Path,
		IsWatching:    state.cfg.Enabled && state.sub != nil && !state.lost,
		LastError:     events.StringPtr(state.lastError),
		FilesDetected: state.detected,
	}
}

// start opens a subscription for id. Callers hold ops.
func (s *Service) start(id string) error {
	s.mu.Lock()
	state, ok := s.folders[id]
	if !ok || s.closed {
		s.mu.Unlock()
		return nil
	}
	state.generation++
	generation := state.generation
	cfg := state.cfg
	s.mu.Unlock()

	sub, err := openSubscription(s.baseCtx, cfg, generation, s.settle, s.logger, s, &s.live)

	s.mu.Lock()
	state.lost = false
	if err != nil {
		state.sub = nil
		state.lastError = errorText(err)
	} else {
		state.sub = sub
		state.lastError = ""
	}
	status := s.statusLocked(state)
	s.publishLocked(events.NewFolderStatus(toEventStatus(status)))
	s.mu.Unlock()

	if err != nil {
		logging.WarnWithContext(s.logger, "watch folder unavailable", "watch_start_failed",
			logging.String(logging.FieldFolderID, id),
			logging.String("path", cfg.Path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "folder not monitored until updated or re-enabled"),
			logging.String(logging.FieldErrorHint, "check the folder exists and is readable"))
		return err
	}
	s.logger.Info("watching folder",
		logging.String(logging.FieldFolderID, id),
		logging.String("path", cfg.Path),
		logging.Bool("recursive", cfg.Recursive))
	return nil
}

// stop cancels id's subscription and waits for its watcher to close. Callers
// hold ops.
func (s *Service) stop(id string) {
	s.mu.Lock()
	state, ok := s.folders[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	sub := state.sub
	state.sub = nil
	state.lost = false
	state.generation++
	s.mu.Unlock()

	if sub == nil {
		return
	}
	sub.stop()

	s.mu.Lock()
	status := s.statusLocked(state)
	s.publishLocked(events.NewFolderStatus(toEventStatus(status)))
	s.mu.Unlock()
}

func (s *Service) allowed(path string) bool {
	return s.allow.Allowed(path)
}

// detected is called from a subscription goroutine once a file has settled.
func (s *Service) detected(folderID string, generation uint64, path string) {
	path = filepath.Clean(path)
	key := dedupeKey(path)

	s.mu.Lock()
	state, ok := s.folders[folderID]
	if !ok || state.generation != generation || !state.cfg.Enabled || !s.allow.Allowed(path) {
		s.mu.Unlock()
		return
	}
	if _, dup := s.seen[key]; dup {
		s.mu.Unlock()
		return
	}
	s.seen[key] = struct{}{}
	s.mu.Unlock()

	if s.queue != nil && s.queue.HasPath(path) {
		s.logger.Debug("file already known to queue", logging.String("path", path))
		return
	}

	s.mu.Lock()
	if state.generation != generation {
		s.mu.Unlock()
		return
	}
	state.detected++
	auto := state.cfg.AutoProcess
	s.publishLocked(events.NewFileDetected(folderID, path))
	s.mu.Unlock()

	s.logger.Info("file detected",
		logging.String(logging.FieldFolderID, folderID),
		logging.String("path", path),
		logging.Bool("auto_process", auto))
	if !auto || s.queue == nil {
		return
	}
	if _, err := s.queue.Enqueue([]string{path}); err != nil {
		logging.WarnWithContext(s.logger, "detected file not queued", "watch_enqueue_failed",
			logging.String(logging.FieldFolderID, folderID),
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "file must be added manually"))
	}
}

// failed is called from a subscription goroutine that is about to exit.
func (s *Service) failed(folderID string, generation uint64, err error) {
	s.mu.Lock()
	state, ok := s.folders[folderID]
	if !ok || state.generation != generation {
		s.mu.Unlock()
		return
	}
	state.lost = true
	state.lastError = errorText(err)
	status := s.statusLocked(state)
	s.publishLocked(events.NewFolderStatus(toEventStatus(status)))
	s.mu.Unlock()

	logging.WarnWithContext(s.logger, "watch folder stopped", "watch_failed",
		logging.String(logging.FieldFolderID, folderID),
		logging.Error(err),
		logging.String(logging.FieldImpact, "folder not monitored until updated or re-enabled"))
}

func (s *Service) publishLocked(evt events.Event) {
	if s.publisher != nil {
		s.publisher.Publish(evt)
	}
}

func (s *Service) lookup(id string) *folderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folders[id]
}

func (s *Service) findByPath(path string) *FolderConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.order {
		if cfg := s.folders[id].cfg; cfg.Path == path {
			return &cfg
		}
	}
	return nil
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Service) newConfig(path string, recursive, autoProcess bool) FolderConfig {
	return FolderConfig{
		ID:          "wf_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Path:        path,
		Enabled:     true,
		Recursive:   recursive,
		AutoProcess: autoProcess,
		CreatedAt:   s.now(),
	}
}

func (s *Service) persist(ctx context.Context, cfg FolderConfig) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.SaveFolder(ctx, cfg); err != nil {
		return fmt.Errorf("save watch folder: %w", err)
	}
	return nil
}

func toEventStatus(status FolderStatus) events.FolderStatus {
	return events.FolderStatus{
		FolderID:   status.FolderID,
		IsWatching: status.IsWatching,
		LastError:  status.LastError,
	}
}

// canonicalize expands, absolutizes, and resolves symlinks, requiring an
// existing directory.
func canonicalize(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", services.Wrap(services.ErrValidation, "watch", "add", "folder path required", nil)
	}
	expanded, err := config.ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "watch", "add", "expand path", err)
	}
	resolved, err := filepath.EvalSymlinks(expanded)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrValidation, "watch", "add", "folder does not exist: "+expanded, nil)
		}
		return "", services.Wrap(services.ErrValidation, "watch", "add", "resolve "+expanded, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "watch", "add", "stat "+resolved, err)
	}
	if !info.IsDir() {
		return "", services.Wrap(services.ErrValidation, "watch", "add", "not a directory: "+resolved, nil)
	}
	return resolved, nil
}

// dedupeKey normalizes path so differently composed Unicode names map to the
// same file.
func dedupeKey(path string) string {
	return norm.NFC.String(path)
}
