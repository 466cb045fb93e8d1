package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"filescribe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "filescribe")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.ExportDir != filepath.Join(tempHome, "Documents", "transcripts") {
		t.Fatalf("unexpected export dir: %q", cfg.Paths.ExportDir)
	}
	if cfg.Queue.MaxFileSizeMB != 4096 {
		t.Fatalf("unexpected max file size: %d", cfg.Queue.MaxFileSizeMB)
	}
	if !cfg.Queue.Persist {
		t.Fatal("expected persistence enabled by default")
	}
	if cfg.Recognizer.Command != "whisper-cli" {
		t.Fatalf("unexpected recognizer command: %q", cfg.Recognizer.Command)
	}
	if !strings.HasPrefix(cfg.Recognizer.Model, tempHome) {
		t.Fatalf("expected model path expanded under HOME, got %q", cfg.Recognizer.Model)
	}
	if cfg.Watch.SettleMillis != 1000 || !cfg.Watch.DefaultAutoProcess {
		t.Fatalf("unexpected watch defaults: %+v", cfg.Watch)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "filescribe.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	watched := filepath.Join(tempHome, "inbox")
	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir":   "~/data",
			"log_dir":    "~/logs",
			"export_dir": "~/out",
		},
		"queue": map[string]any{
			"supported_extensions": []string{".WAV", "mp3", "wav", " "},
		},
		"watch": map[string]any{
			"settle_ms": 0,
			"folders": []map[string]any{
				{"path": "~/inbox", "recursive": true},
			},
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.DataDir != filepath.Join(tempHome, "data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if got := strings.Join(cfg.Queue.SupportedExtensions, ","); got != "wav,mp3" {
		t.Fatalf("unexpected extensions: %q", got)
	}
	if len(cfg.Watch.Folders) != 1 || cfg.Watch.Folders[0].Path != watched || !cfg.Watch.Folders[0].Recursive {
		t.Fatalf("unexpected watch folders: %+v", cfg.Watch.Folders)
	}
	if cfg.Watch.Folders[0].AutoProcess != nil {
		t.Fatal("expected auto_process to stay unset so the default applies")
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(configPath, []byte("[logging]\nlevel = \"info\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FILESCRIBE_NTFY_TOPIC=https://ntfy.sh/from-env\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv never overrides existing variables; make sure ours is unset.
	t.Setenv("FILESCRIBE_NTFY_TOPIC", "")
	os.Unsetenv("FILESCRIBE_NTFY_TOPIC")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/from-env" {
		t.Fatalf("expected ntfy topic from .env, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestEnvOverridesRecognizerSettings(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FILESCRIBE_RECOGNIZER", "/opt/whisper/bin/main")
	t.Setenv("FILESCRIBE_MODEL", "/models/ggml-small.bin")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Recognizer.Command != "/opt/whisper/bin/main" {
		t.Fatalf("unexpected recognizer command: %q", cfg.Recognizer.Command)
	}
	if cfg.Recognizer.Model != "/models/ggml-small.bin" {
		t.Fatalf("unexpected model: %q", cfg.Recognizer.Model)
	}
}

func TestCreateSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Export.DefaultFormat != "txt" {
		t.Fatalf("unexpected default export format: %q", cfg.Export.DefaultFormat)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad export format", func(c *config.Config) { c.Export.DefaultFormat = "rtf" }, "export.default_format"},
		{"warning above max", func(c *config.Config) { c.Queue.LargeFileWarningMB = c.Queue.MaxFileSizeMB + 1 }, "large_file_warning_mb"},
		{"settle too long", func(c *config.Config) { c.Watch.SettleMillis = 120_000 }, "watch.settle_ms"},
		{"too many threads", func(c *config.Config) { c.Recognizer.Threads = 1000 }, "recognizer.threads"},
		{"duplicate folders", func(c *config.Config) {
			c.Watch.Folders = []config.WatchFolder{{Path: "/in"}, {Path: "/in"}}
		}, "duplicate path"},
		{"missing data dir", func(c *config.Config) { c.Paths.DataDir = "" }, "paths.data_dir"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.DataDir = "/tmp/data"
			cfg.Paths.LogDir = "/tmp/logs"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}
