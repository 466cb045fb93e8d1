package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filescribe/internal/config"
	"filescribe/internal/events"
	"filescribe/internal/queue"
	"filescribe/internal/services"
	"filescribe/internal/testsupport"
	"filescribe/internal/watch"
)

const settle = 30 * time.Millisecond

type fakeQueue struct {
	mu       sync.Mutex
	enqueued []string
	known    map[string]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{known: make(map[string]bool)}
}

func (q *fakeQueue) Enqueue(paths []string) ([]queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]queue.Job, 0, len(paths))
	for _, p := range paths {
		q.enqueued = append(q.enqueued, p)
		q.known[p] = true
		jobs = append(jobs, queue.Job{ID: "job_" + filepath.Base(p), FilePath: p, Status: queue.StatusQueued})
	}
	return jobs, nil
}

func (q *fakeQueue) HasPath(path string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.known[path]
}

func (q *fakeQueue) paths() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.enqueued...)
}

func (q *fakeQueue) markKnown(path string) {
	q.mu.Lock()
	q.known[path] = true
	q.mu.Unlock()
}

type memoryStore struct {
	mu      sync.Mutex
	folders map[string]watch.FolderConfig
	order   []string
}

func newMemoryStore(folders ...watch.FolderConfig) *memoryStore {
	s := &memoryStore{folders: make(map[string]watch.FolderConfig)}
	for _, f := range folders {
		s.folders[f.ID] = f
		s.order = append(s.order, f.ID)
	}
	return s
}

func (s *memoryStore) SaveFolder(_ context.Context, cfg watch.FolderConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.folders[cfg.ID]; !ok {
		s.order = append(s.order, cfg.ID)
	}
	s.folders[cfg.ID] = cfg
	return nil
}

func (s *memoryStore) DeleteFolder(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.folders, id)
	return nil
}

func (s *memoryStore) LoadFolders(context.Context) ([]watch.FolderConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []watch.FolderConfig
	for _, id := range s.order {
		if f, ok := s.folders[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

type fixture struct {
	svc   *watch.Service
	queue *fakeQueue
	bus   *events.Bus
	store *memoryStore
}

func newFixture(t *testing.T, opts watch.Options) *fixture {
	t.Helper()
	f := &fixture{queue: newFakeQueue(), bus: events.NewBus(0), store: newMemoryStore()}
	if opts.Store == nil {
		opts.Store = f.store
	}
	opts.Queue = f.queue
	opts.Publisher = f.bus
	if opts.Settle == 0 {
		opts.Settle = settle
	}
	f.svc = watch.NewService(opts)
	t.Cleanup(f.svc.Close)
	return f
}

func (f *fixture) detections(folderID string) []string {
	replay, _ := f.bus.Since(0)
	var out []string
	for _, evt := range replay {
		if evt.Topic == events.TopicFileDetected && evt.File.FolderID == folderID {
			out = append(out, evt.File.FilePath)
		}
	}
	return out
}

func (f *fixture) status(t *testing.T, id string) watch.FolderStatus {
	t.Helper()
	for _, st := range f.svc.Status() {
		if st.FolderID == id {
			return st
		}
	}
	t.Fatalf("no status for folder %s", id)
	return watch.FolderStatus{}
}

func writeMedia(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("RIFFdata"), 0o644))
}

func mustDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestDetectsNewFileAndEnqueues(t *testing.T) {
	f := newFixture(t, watch.Options{DefaultAutoProcess: true})
	in := mustDir(t)

	cfg, err := f.svc.AddFolder(context.Background(), in, false)
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.True(t, cfg.AutoProcess)
	assert.Equal(t, in, cfg.Path)
	assert.True(t, f.status(t, cfg.ID).IsWatching)

	target := filepath.Join(in, "a.wav")
	writeMedia(t, target)

	testsupport.WaitFor(t, 5*time.Second, func() bool { return len(f.queue.paths()) == 1 }, "file never enqueued")
	assert.Equal(t, []string{target}, f.queue.paths())
	assert.Equal(t, []string{target}, f.detections(cfg.ID))
	assert.Equal(t, 1, f.status(t, cfg.ID).FilesDetected)

	replay, _ := f.bus.Since(0)
	var detected *events.FileDetected
	for _, evt := range replay {
		if evt.File != nil {
			detected = evt.File
		}
	}
	require.NotNil(t, detected)
	assert.Equal(t, "a.wav", detected.FileName)
}

func TestIgnoresUnsupportedAndNestedFiles(t *testing.T) {
	f := newFixture(t, watch.Options{DefaultAutoProcess: true})
	in := mustDir(t)
	require.NoError(t, os.Mkdir(filepath.Join(in, "sub"), 0o755))
	cfg, err := f.svc.AddFolder(context.Background(), in, false)
	require.NoError(t, err)

	writeMedia(t, filepath.Join(in, "notes.txt"))
	writeMedia(t, filepath.Join(in, "sub", "nested.wav"))
	writeMedia(t, filepath.Join(in, "ok.mp3"))

	testsupport.WaitFor(t, 5*time.Second, func() bool { return len(f.queue.paths()) == 1 }, "supported file never enqueued")
	time.Sleep(5 * settle)
	assert.Equal(t, []string{filepath.Join(in, "ok.mp3")}, f.detections(cfg.ID))
}

func TestRecursiveFolderWatchesNewSubdirectories(t *testing.T) {
	f := newFixture(t, watch.Options{DefaultAutoProcess: true})
	in := mustDir(t)
	require.NoError(t, os.MkdirAll(filepath.Join(in, "existing"), 0o755))
	cfg, err := f.svc.AddFolder(context.Background(), in, true)
	require.NoError(t, err)

	existing := filepath.Join(in, "existing", "one.wav")
	writeMedia(t, existing)
	testsupport.WaitFor(t, 5*time.Second, func() bool { return len(f.queue.paths()) == 1 }, "nested file never enqueued")

	fresh := filepath.Join(in, "new", "deeper", "two.m4a")
	writeMedia(t, fresh)
	testsupport.WaitFor(t, 5*time.Second, func() bool { return len(f.queue.paths()) == 2 }, "file in new directory never enqueued")
	assert.ElementsMatch(t, []string{existing, fresh}, f.detections(cfg.ID))
}

func TestDeduplicatesWithinSession(t *testing.T) {
	f := newFixture(t, watch.Options{DefaultAutoProcess: true})
	in := mustDir(t)
	cfg, err := f.svc.AddFolder(context.Background(), in, false)
	require.NoError(t, err)

	known := filepath.Join(in, "known.wav")
	f.queue.markKnown(known)
	writeMedia(t, known)

	target := filepath.Join(in, "a.wav")
	writeMedia(t, target)
	testsupport.WaitFor(t, 5*time.Second, func() bool { return len(f.queue.paths()) == 1 }, "file never enqueued")

	require.NoError(t, os.Remove(target))
	writeMedia(t, target)
	time.Sleep(6 * settle)

	assert.Equal(t, []string{target}, f.queue.paths())
	assert.Equal(t, []string{target}, f.detections(cfg.ID))
}

func TestAutoProcessOffOnlyEmitsEvent(t *testing.T) {
	f := newFixture(t, watch.Options{DefaultAutoProcess: true})
	in := mustDir(t)
	cfg, err := f.svc.AddFolder(context.Background(), in, false)
	require.NoError(t, err)

	cfg.AutoProcess = false
	updated, err := f.svc.UpdateFolder(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, updated.AutoProcess)

	target := filepath.Join(in, "quiet.wav")
	writeMedia(t, target)
	testsupport.WaitFor(t, 5*time.Second, func() bool { return len(f.detections(cfg.ID)) == 1 }, "file never detected")
	assert.Empty(t, f.queue.paths())
}

func TestToggleRecursiveKeepsSingleSubscription(t *testing.T) {
	f := newFixture(t, watch.Options{DefaultAutoProcess: true})
	in := mustDir(t)
	cfg, err := f.svc.AddFolder(context.Background(), in, false)
	require.NoError(t, err)
	require.Equal(t, int64(1), f.svc.LiveSubscriptions())

	for range 3 {
		cfg.Recursive = !cfg.Recursive
		cfg, err = f.svc.UpdateFolder(context.Background(), cfg)
		require.NoError(t, err)
		require.Equal(t, int64(1), f.svc.LiveSubscriptions(), "recursive=%v", cfg.Recursive)
	}
	assert.True(t, cfg.Recursive)

	target := filepath.Join(in, "once.wav")
	writeMedia(t, target)
	testsupport.WaitFor(t, 5*time.Second, func() bool { return len(f.queue.paths()) == 1 }, "file never enqueued")
	time.Sleep(5 * settle)

	assert.Equal(t, []string{target}, f.queue.paths())
	assert.Len(t, f.detections(cfg.ID), 1)
	assert.Len(t, f.svc.Status(), 1)
	assert.True(t, f.status(t, cfg.ID).IsWatching)
	assert.Equal(t, int64(1), f.svc.LiveSubscriptions())

	cfg.Enabled = false
	_, err = f.svc.UpdateFolder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.svc.LiveSubscriptions())
}

func TestAddFolderWithManualAutoProcess(t *testing.T) {
	f := newFixture(t, watch.Options{DefaultAutoProcess: true})
	in := mustDir(t)
	manual := false

	cfg, err := f.svc.AddFolderWith(context.Background(), in, watch.AddOptions{AutoProcess: &manual})
	require.NoError(t, err)
	assert.False(t, cfg.AutoProcess)
	assert.False(t, cfg.Recursive)

	stored, _ := f.store.LoadFolders(context.Background())
	require.Len(t, stored, 1)
	assert.False(t, stored[0].AutoProcess)

	target := filepath.Join(in, "early.wav")
	writeMedia(t, target)
	testsupport.WaitFor(t, 5*time.Second, func() bool { return len(f.detections(cfg.ID)) == 1 }, "file never detected")
	time.Sleep(3 * settle)
	assert.Empty(t, f.queue.paths())
}

func TestAddFolderValidation(t *testing.T) {
	f := newFixture(t, watch.Options{})
	in := mustDir(t)

	_, err := f.svc.AddFolder(context.Background(), filepath.Join(in, "missing"), false)
	assert.ErrorIs(t, err, services.ErrValidation)

	file := filepath.Join(in, "file.wav")
	writeMedia(t, file)
	_, err = f.svc.AddFolder(context.Background(), file, false)
	assert.ErrorIs(t, err, services.ErrValidation)

	_, err = f.svc.AddFolder(context.Background(), in, false)
	require.NoError(t, err)
	_, err = f.svc.AddFolder(context.Background(), in+"/", true)
	assert.ErrorIs(t, err, services.ErrValidation)

	err = f.svc.RemoveFolder(context.Background(), "wf_missing")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestRootRemovalRecordsErrorAndRestartClearsIt(t *testing.T) {
	f := newFixture(t, watch.Options{DefaultAutoProcess: true})
	in := filepath.Join(mustDir(t), "inbox")
	require.NoError(t, os.Mkdir(in, 0o755))
	cfg, err := f.svc.AddFolder(context.Background(), in, false)
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(in))
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return f.status(t, cfg.ID).LastError != nil
	}, "root removal never reported")
	st := f.status(t, cfg.ID)
	assert.False(t, st.IsWatching)
	assert.Contains(t, *st.LastError, "removed")

	require.NoError(t, os.Mkdir(in, 0o755))
	cfg.Enabled = false
	cfg, err = f.svc.UpdateFolder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(0), f.svc.LiveSubscriptions(), "disable waits for the failed watcher to close")
	cfg.Enabled = true
	_, err = f.svc.UpdateFolder(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.svc.LiveSubscriptions())

	st = f.status(t, cfg.ID)
	assert.True(t, st.IsWatching)
	assert.Nil(t, st.LastError)
}

func TestRemoveFolderStopsWatching(t *testing.T) {
	f := newFixture(t, watch.Options{DefaultAutoProcess: true})
	in := mustDir(t)
	cfg, err := f.svc.AddFolder(context.Background(), in, false)
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveFolder(context.Background(), cfg.ID))
	assert.Equal(t, int64(0), f.svc.LiveSubscriptions())

	writeMedia(t, filepath.Join(in, "late.wav"))
	time.Sleep(5 * settle)
	assert.Empty(t, f.queue.paths())
	assert.Empty(t, f.svc.Folders())
	stored, _ := f.store.LoadFolders(context.Background())
	assert.Empty(t, stored)
}

func TestStartAllRestoresAndSeeds(t *testing.T) {
	persistedDir := mustDir(t)
	seedDir := mustDir(t)
	disabled := watch.FolderConfig{ID: "wf_old", Path: persistedDir, Enabled: false, CreatedAt: time.Now()}
	store := newMemoryStore(disabled)
	auto := false

	f := newFixture(t, watch.Options{
		Store:              store,
		DefaultAutoProcess: true,
		Seeds: []config.WatchFolder{
			{Path: seedDir, Recursive: true, AutoProcess: &auto},
			{Path: persistedDir},
			{Path: filepath.Join(seedDir, "missing")},
		},
	})
	require.NoError(t, f.svc.StartAll(context.Background()))

	folders := f.svc.Folders()
	require.Len(t, folders, 2)
	assert.Equal(t, "wf_old", folders[0].ID)
	assert.Equal(t, seedDir, folders[1].Path)
	assert.True(t, folders[1].Recursive)
	assert.False(t, folders[1].AutoProcess)

	assert.False(t, f.status(t, "wf_old").IsWatching)
	assert.True(t, f.status(t, folders[1].ID).IsWatching)

	stored, _ := store.LoadFolders(context.Background())
	assert.Len(t, stored, 2)
}
