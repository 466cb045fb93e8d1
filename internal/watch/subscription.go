package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"filescribe/internal/logging"
	"filescribe/internal/services"
)

// subscription is one fsnotify watcher bound to a folder generation. Its
// done channel closes only after the watcher has been closed.
type subscription struct {
	folderID   string
	root       string
	recursive  bool
	generation uint64
	settle     time.Duration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
	live    *atomic.Int64
	logger  *slog.Logger
	sink    sink
}

// sink receives what a subscription observes.
type sink interface {
	allowed(path string) bool
	detected(folderID string, generation uint64, path string)
	failed(folderID string, generation uint64, err error)
}

type pendingFile struct {
	timer *time.Timer
	size  int64
}

func openSubscription(parent context.Context, cfg FolderConfig, generation uint64, settle time.Duration, logger *slog.Logger, s sink, live *atomic.Int64) (*subscription, error) {
	info, err := os.Stat(cfg.Path)
	switch {
	case err != nil:
		return nil, fsWatchError("start", "folder unavailable: "+cfg.Path, err)
	case !info.IsDir():
		return nil, fsWatchError("start", "not a directory: "+cfg.Path, nil)
	}
	if err := unix.Access(cfg.Path, unix.R_OK|unix.X_OK); err != nil {
		return nil, fsWatchError("start", "permission denied: "+cfg.Path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fsWatchError("start", "create watcher", err)
	}
	if err := watcher.Add(cfg.Path); err != nil {
		_ = watcher.Close()
		return nil, fsWatchError("start", "watch "+cfg.Path, err)
	}

	ctx, cancel := context.WithCancel(parent)
	sub := &subscription{
		folderID:   cfg.ID,
		root:       cfg.Path,
		recursive:  cfg.Recursive,
		generation: generation,
		settle:     settle,
		watcher:    watcher,
		cancel:     cancel,
		done:       make(chan struct{}),
		live:       live,
		logger:     logger,
		sink:       s,
	}
	if cfg.Recursive {
		sub.addTree(cfg.Path, nil)
	}
	live.Add(1)
	go sub.run(ctx)
	return sub, nil
}

// stop cancels the subscription and waits for the watcher to close.
func (s *subscription) stop() {
	s.cancel()
	<-s.done
}

func (s *subscription) run(ctx context.Context) {
	defer close(s.done)
	defer s.live.Add(-1)
	defer s.watcher.Close()

	pending := make(map[string]*pendingFile)
	ready := make(chan string, 16)
	defer func() {
		for _, p := range pending {
			p.timer.Stop()
		}
	}()

	schedule := func(path string) {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return
		}
		if p, ok := pending[path]; ok {
			p.size = info.Size()
			p.timer.Reset(s.settle)
			return
		}
		pending[path] = &pendingFile{
			size: info.Size(),
			timer: time.AfterFunc(s.settle, func() {
				select {
				case ready <- path:
				case <-ctx.Done():
				}
			}),
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-s.watcher.Events:
			if !ok {
				s.sink.failed(s.folderID, s.generation, fsWatchError("watch", "event stream closed", nil))
				return
			}
			if s.isRoot(evt.Name) && (evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename)) {
				s.sink.failed(s.folderID, s.generation, fsWatchError("watch", "watch folder removed: "+s.root, nil))
				return
			}
			switch {
			case evt.Has(fsnotify.Create):
				s.handleCreate(evt.Name, schedule)
			case evt.Has(fsnotify.Write):
				if _, ok := pending[evt.Name]; ok {
					schedule(evt.Name)
				}
			case evt.Has(fsnotify.Remove), evt.Has(fsnotify.Rename):
				if p, ok := pending[evt.Name]; ok {
					p.timer.Stop()
					delete(pending, evt.Name)
				}
			}

		case path := <-ready:
			p, ok := pending[path]
			if !ok {
				continue
			}
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				delete(pending, path)
				continue
			}
			if info.Size() != p.size {
				p.size = info.Size()
				p.timer.Reset(s.settle)
				continue
			}
			delete(pending, path)
			s.sink.detected(s.folderID, s.generation, path)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				s.sink.failed(s.folderID, s.generation, fsWatchError("watch", "error stream closed", nil))
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				logging.WarnWithContext(s.logger, "watch event overflow", "watch_overflow",
					logging.String(logging.FieldFolderID, s.folderID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "some new files may not be detected"),
					logging.String(logging.FieldErrorHint, "raise fs.inotify.max_queued_events or add files in smaller batches"))
				continue
			}
			s.sink.failed(s.folderID, s.generation, fsWatchError("watch", "watcher failed", err))
			return
		}
	}
}

func (s *subscription) handleCreate(path string, schedule func(string)) {
	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		if s.recursive {
			s.addTree(path, schedule)
		}
		return
	}
	if !s.recursive && filepath.Dir(path) != s.root {
		return
	}
	if !info.Mode().IsRegular() || !s.sink.allowed(path) {
		return
	}
	schedule(path)
}

// addTree watches dir and its descendants. When schedule is set, files
// already inside are scheduled once, covering writes that raced the watch.
func (s *subscription) addTree(dir string, schedule func(string)) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			if path != s.root {
				if addErr := s.watcher.Add(path); addErr != nil {
					logging.WarnWithContext(s.logger, "cannot watch subdirectory", "watch_subdir_failed",
						logging.String(logging.FieldFolderID, s.folderID),
						logging.String("path", path),
						logging.Error(addErr),
						logging.String(logging.FieldImpact, "files in this subdirectory will not be detected"))
				}
			}
			return nil
		}
		if schedule != nil && d.Type().IsRegular() && s.sink.allowed(path) {
			schedule(path)
		}
		return nil
	})
}

func (s *subscription) isRoot(path string) bool {
	return filepath.Clean(path) == s.root
}

func fsWatchError(operation, message string, err error) error {
	return services.Wrap(services.ErrFsWatch, "watch", operation, message, err)
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
