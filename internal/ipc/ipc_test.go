package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filescribe/internal/config"
	"filescribe/internal/daemon"
	"filescribe/internal/events"
	"filescribe/internal/ipc"
	"filescribe/internal/logging"
	"filescribe/internal/queue"
	"filescribe/internal/recognizer"
	"filescribe/internal/testsupport"
	"filescribe/internal/transcript"
)

func startServer(t *testing.T, cfg *config.Config, rec recognizer.Recognizer) (*daemon.Daemon, *ipc.Client) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	d, err := daemon.New(cfg, store, recognizer.Static{Recognizer: rec}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") || strings.Contains(err.Error(), "invalid argument") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})
	return d, client
}

func TestIPCQueueLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	media := filepath.Join(testsupport.BaseDir(cfg), "in", "standup.mp3")
	testsupport.WriteFile(t, media, 256)
	rec := testsupport.NewFakeRecognizer()
	rec.Succeed(media, "Morning all", transcript.Segment{StartMS: 0, EndMS: 2000, Text: "Morning all"})

	_, client := startServer(t, cfg, rec)
	ctx := context.Background()

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, cfg.SocketPath(), status.SocketPath)

	added, err := client.QueueAdd(ctx, []string{media}, false)
	require.NoError(t, err)
	require.Len(t, added.Jobs, 1)
	jobID := added.Jobs[0].ID
	assert.Equal(t, queue.StatusQueued, added.Jobs[0].Status)
	assert.Equal(t, "standup.mp3", added.Jobs[0].FileName)

	dup, err := client.QueueAdd(ctx, []string{media}, false)
	require.NoError(t, err)
	assert.Empty(t, dup.Jobs, "live duplicate should be skipped")

	listed, err := client.QueueList(ctx, []string{"queued"})
	require.NoError(t, err)
	require.Len(t, listed.Jobs, 1)

	_, err = client.QueueList(ctx, []string{"bogus"})
	require.Error(t, err)

	cancelled, err := client.QueueCancel(ctx)
	require.NoError(t, err)
	assert.False(t, cancelled.Cancelled)

	_, err = client.QueueProcess(ctx)
	require.NoError(t, err)
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		shown, err := client.QueueShow(ctx, jobID)
		return err == nil && shown.Job.Status == queue.StatusCompleted
	}, "job %s did not complete", jobID)

	shown, err := client.QueueShow(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, "Morning all", shown.Job.Transcription)
	assert.Equal(t, 1.0, shown.Job.Progress)

	exported, err := client.Export(ctx, ipc.ExportRequest{JobID: jobID, Format: "vtt", Inline: true})
	require.NoError(t, err)
	assert.Equal(t, "vtt", exported.Format)
	assert.True(t, strings.HasPrefix(exported.Content, "WEBVTT"))

	written, err := client.Export(ctx, ipc.ExportRequest{JobID: jobID, Format: "txt"})
	require.NoError(t, err)
	data, err := os.ReadFile(written.Path)
	require.NoError(t, err)
	assert.Equal(t, "Morning all", string(data))

	_, err = client.QueueShow(ctx, "job_missing")
	require.Error(t, err)

	cleared, err := client.QueueClear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, cleared.Removed)

	_, err = client.QueueRemove(ctx, jobID)
	require.Error(t, err, "cleared job should be gone")
}

func TestIPCEventsLongPoll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	media := filepath.Join(testsupport.BaseDir(cfg), "in", "memo.wav")
	testsupport.WriteFile(t, media, 64)
	_, client := startServer(t, cfg, testsupport.NewFakeRecognizer())
	ctx := context.Background()

	start, err := client.Events(ctx, ipc.EventsRequest{})
	require.NoError(t, err)
	assert.True(t, start.Covered)

	empty, err := client.Events(ctx, ipc.EventsRequest{Since: start.Next, WaitMillis: 50})
	require.NoError(t, err)
	assert.Empty(t, empty.Events)
	assert.Equal(t, start.Next, empty.Next)

	_, err = client.QueueAdd(ctx, []string{media}, true)
	require.NoError(t, err)

	var statuses []string
	cursor := start.Next
	testsupport.WaitFor(t, 5*time.Second, func() bool {
		resp, err := client.Events(ctx, ipc.EventsRequest{Since: cursor, WaitMillis: 200})
		if err != nil {
			return false
		}
		cursor = resp.Next
		for _, evt := range resp.Events {
			if evt.Topic == events.TopicJobUpdate && evt.Job != nil {
				statuses = append(statuses, evt.Job.Status)
			}
		}
		return len(statuses) > 0 && statuses[len(statuses)-1] == string(queue.StatusCompleted)
	}, "never saw completion event, got %v", statuses)
	assert.Equal(t, string(queue.StatusQueued), statuses[0])
}

func TestIPCMirrorFollowsQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	media := filepath.Join(testsupport.BaseDir(cfg), "in", "call.ogg")
	testsupport.WriteFile(t, media, 64)
	_, client := startServer(t, cfg, testsupport.NewFakeRecognizer())
	ctx := context.Background()

	mirror := queue.NewMirror(queue.ListerFunc(client.ListJobs))
	require.NoError(t, mirror.Sync(ctx))
	assert.Empty(t, mirror.Jobs())

	_, err := client.QueueAdd(ctx, []string{media}, false)
	require.NoError(t, err)

	resp, err := client.Events(ctx, ipc.EventsRequest{Since: mirror.Cursor(), WaitMillis: 1000})
	require.NoError(t, err)
	for _, evt := range resp.Events {
		require.NoError(t, mirror.Apply(ctx, evt))
	}
	jobs := mirror.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, media, jobs[0].FilePath)
}

func TestIPCWatchFolders(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSettleMillis(20))
	inbox := filepath.Join(testsupport.BaseDir(cfg), "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	_, client := startServer(t, cfg, testsupport.NewFakeRecognizer())
	ctx := context.Background()

	manual := false
	added, err := client.WatchAdd(ctx, ipc.WatchAddRequest{Path: inbox, AutoProcess: &manual})
	require.NoError(t, err)
	assert.False(t, added.Folder.AutoProcess)
	assert.True(t, added.Folder.Enabled)
	assert.True(t, added.Status.IsWatching)

	_, err = client.WatchAdd(ctx, ipc.WatchAddRequest{Path: inbox})
	require.Error(t, err, "duplicate folder should be rejected")

	listed, err := client.WatchList(ctx)
	require.NoError(t, err)
	require.Len(t, listed.Folders, 1)

	disabled := false
	updated, err := client.WatchUpdate(ctx, ipc.WatchUpdateRequest{ID: added.Folder.ID, Enabled: &disabled})
	require.NoError(t, err)
	assert.False(t, updated.Folder.Enabled)

	statuses, err := client.WatchStatus(ctx)
	require.NoError(t, err)
	require.Len(t, statuses.Statuses, 1)
	assert.False(t, statuses.Statuses[0].IsWatching)

	removed, err := client.WatchRemove(ctx, added.Folder.ID)
	require.NoError(t, err)
	assert.True(t, removed.Removed)

	exts, err := client.Extensions(ctx)
	require.NoError(t, err)
	assert.Contains(t, exts.Extensions, "mp3")

	note, err := client.TestNotification(ctx)
	require.NoError(t, err)
	assert.False(t, note.Sent)
	assert.Equal(t, "ntfy topic not configured", note.Message)
}

func TestIPCWatchAddManualNeverAutoQueues(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSettleMillis(20))
	inbox := filepath.Join(testsupport.BaseDir(cfg), "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))
	d, client := startServer(t, cfg, testsupport.NewFakeRecognizer())
	ctx := context.Background()

	manual := false
	added, err := client.WatchAdd(ctx, ipc.WatchAddRequest{Path: inbox, AutoProcess: &manual})
	require.NoError(t, err)
	target := filepath.Join(inbox, "early.wav")
	testsupport.WriteFile(t, target, 512)

	testsupport.WaitFor(t, 5*time.Second, func() bool {
		replay, _ := d.Bus().Since(0)
		for _, evt := range replay {
			if evt.Topic == events.TopicFileDetected && filepath.Base(evt.File.FilePath) == "early.wav" {
				return true
			}
		}
		return false
	}, "file in manual folder never detected")
	assert.False(t, d.Queue().HasPath(target))
	assert.Empty(t, d.Queue().Jobs())

	folder, ok := d.Watch().Folder(added.Folder.ID)
	require.True(t, ok)
	assert.False(t, folder.AutoProcess)
}

func TestIPCClientHonoursContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, client := startServer(t, cfg, testsupport.NewFakeRecognizer())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Events(ctx, ipc.EventsRequest{Since: 1 << 40, WaitMillis: 2000})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
