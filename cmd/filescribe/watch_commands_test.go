package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filescribe/internal/ipc"
)

func TestWatchFolderCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	inbox := filepath.Join(env.baseDir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))

	out, _, err := runCLI(t, []string{"watch", "add", inbox, "--recursive", "--manual", "--json"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	var added ipc.WatchAddResponse
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.True(t, added.Folder.Recursive)
	assert.False(t, added.Folder.AutoProcess)
	folderID := added.Folder.ID

	out, _, err = runCLI(t, []string{"watch", "list"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, folderID)

	out, _, err = runCLI(t, []string{"watch", "status"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "[OK] watching")

	out, _, err = runCLI(t, []string{"watch", "disable", folderID}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "disabled")

	out, _, err = runCLI(t, []string{"watch", "status"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "not watching")

	_, _, err = runCLI(t, []string{"watch", "set", folderID}, env.socketPath, env.configPath)
	require.Error(t, err, "set without flags should be rejected")

	out, _, err = runCLI(t, []string{"watch", "set", folderID, "--auto-process=true"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, folderID)
	folder, ok := env.daemon.Watch().Folder(folderID)
	require.True(t, ok)
	assert.True(t, folder.AutoProcess)
	assert.False(t, folder.Enabled)

	out, _, err = runCLI(t, []string{"watch", "remove", folderID}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Removed watch folder")

	out, _, err = runCLI(t, []string{"watch", "list"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "No watch folders configured")
}

func TestExtensionsAndNotifyCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"extensions"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	fields := strings.Fields(out)
	assert.Contains(t, fields, "mp3")
	assert.Contains(t, fields, "wav")

	out, _, err = runCLI(t, []string{"test-notify"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "ntfy topic not configured")
}

func TestEventsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	inbox := filepath.Join(env.baseDir, "inbox")
	require.NoError(t, os.MkdirAll(inbox, 0o755))

	_, _, err := runCLI(t, []string{"watch", "add", inbox}, env.socketPath, env.configPath)
	require.NoError(t, err)

	out, _, err := runCLI(t, []string{"events"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "watch-folder-status")
	requireContains(t, out, "watching")

	out, _, err = runCLI(t, []string{"events", "--since", "1000"}, env.socketPath, env.configPath)
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(out))
}

func TestCommandsReportMissingDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(env.baseDir, "nobody.sock")

	_, _, err := runCLI(t, []string{"queue", "list"}, missing, env.configPath)
	require.Error(t, err)
	requireContains(t, err.Error(), "filescribe start")
}
