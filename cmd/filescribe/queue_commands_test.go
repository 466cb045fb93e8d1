package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filescribe/internal/ipc"
	"filescribe/internal/logging"
	"filescribe/internal/queue"
	"filescribe/internal/testsupport"
	"filescribe/internal/transcript"
)

func TestQueueAddListShowExport(t *testing.T) {
	env := setupCLITestEnv(t)
	media := filepath.Join(env.baseDir, "in", "interview.m4a")
	testsupport.WriteFile(t, media, 2048)
	env.recognizer.Succeed(media, "Thanks for joining", transcript.Segment{StartMS: 0, EndMS: 1500, Text: "Thanks for joining"})

	out, _, err := runCLI(t, []string{"queue", "add", media, filepath.Join(env.baseDir, "notes.txt")}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Queued interview.m4a as ")
	requireContains(t, out, "Skipped 1 file(s)")

	out, _, err = runCLI(t, []string{"queue", "list", "--json"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	var jobs []queue.Job
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 1)
	jobID := jobs[0].ID
	assert.Equal(t, queue.StatusQueued, jobs[0].Status)

	out, _, err = runCLI(t, []string{"queue", "list"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "interview.m4a")
	requireContains(t, out, "Queued")

	out, _, err = runCLI(t, []string{"queue", "process"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))

	testsupport.WaitFor(t, 5*time.Second, func() bool {
		job, ok := env.daemon.Queue().Job(jobID)
		return ok && job.Status == queue.StatusCompleted
	}, "job %s did not complete", jobID)

	out, _, err = runCLI(t, []string{"queue", "show", jobID}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Completed")
	requireContains(t, out, "100%")
	requireContains(t, out, "Thanks for joining")

	out, _, err = runCLI(t, []string{"export", jobID, "--format", "srt", "--stdout"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "00:00:00,000 --> 00:00:01,500")

	exportDir := filepath.Join(env.baseDir, "out")
	out, _, err = runCLI(t, []string{"export", jobID, "--format", "md", "--dir", exportDir, "--name", "interview.md"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Exported markdown transcript")
	data, err := os.ReadFile(filepath.Join(exportDir, "interview.md"))
	require.NoError(t, err)
	requireContains(t, string(data), "Thanks for joining")

	_, _, err = runCLI(t, []string{"export", jobID, "--format", "wma"}, env.socketPath, env.configPath)
	require.Error(t, err)

	out, _, err = runCLI(t, []string{"queue", "clear"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Cleared 1 completed job(s)")
}

func TestQueueAddDuplicateAndRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	media := filepath.Join(env.baseDir, "in", "lecture.mp4")
	testsupport.WriteFile(t, media, 512)

	_, _, err := runCLI(t, []string{"queue", "add", media}, env.socketPath, env.configPath)
	require.NoError(t, err)

	out, _, err := runCLI(t, []string{"queue", "add", media}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "No new jobs queued")

	jobs := env.daemon.Queue().Jobs()
	require.Len(t, jobs, 1)

	out, _, err = runCLI(t, []string{"queue", "remove", jobs[0].ID}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Removed "+jobs[0].ID)

	_, _, err = runCLI(t, []string{"queue", "remove", jobs[0].ID}, env.socketPath, env.configPath)
	require.Error(t, err)

	out, _, err = runCLI(t, []string{"queue", "cancel"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "nothing is processing")

	_, _, err = runCLI(t, []string{"queue", "list", "--status", "paused"}, env.socketPath, env.configPath)
	require.Error(t, err)
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollowQueuePrintsJobUpdates(t *testing.T) {
	env := setupCLITestEnv(t)
	env.recognizer.Blocking()
	media := filepath.Join(env.baseDir, "in", "podcast.flac")
	testsupport.WriteFile(t, media, 256)

	watcher, err := ipc.Dial(env.socketPath)
	require.NoError(t, err)
	defer watcher.Close()
	_, err = watcher.QueueAdd(context.Background(), []string{media}, true)
	require.NoError(t, err)
	select {
	case <-env.recognizer.Started():
	case <-time.After(5 * time.Second):
		t.Fatal("recognizer never started")
	}

	client, err := ipc.Dial(env.socketPath)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := &lockedBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- followQueue(ctx, client, out, logging.NewNop())
	}()

	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return strings.Contains(out.String(), "Following 1 job(s)")
	}, "follow never synced:\n%s", out.String())
	env.recognizer.Release()

	testsupport.WaitFor(t, 5*time.Second, func() bool {
		return strings.Contains(out.String(), "Completed")
	}, "follow output never showed completion:\n%s", out.String())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("followQueue did not return after cancel")
	}
	requireContains(t, out.String(), "100%")
}

func TestBuildJobRows(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := buildJobRows([]ipc.Job{{
		ID:        "job_1",
		FileName:  "a.mp3",
		FileSize:  1_500_000,
		Status:    queue.StatusProcessing,
		Progress:  0.426,
		CreatedAt: now.Add(-2 * time.Minute),
	}}, now)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"job_1", "a.mp3", "1.5 MB", "Processing", "43%", "2 minutes ago"}, rows[0])
}
