package preflight

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"filescribe/internal/config"
	"filescribe/internal/deps"
	"filescribe/internal/media/ffprobe"
	"filescribe/internal/recognizer"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckModelFile verifies the recognizer model is a readable regular file.
func CheckModelFile(path string) Result {
	const name = "Recognizer model"
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "recognizer.model not set"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.Mode().IsRegular() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a regular file)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: unreadable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MB)", path, info.Size()>>20)}
}

// CheckNtfyTopic verifies the notification topic is an absolute http(s) URL
// with a topic path. It does not publish anything.
func CheckNtfyTopic(topic string) Result {
	const name = "Notifications"
	parsed, err := url.Parse(strings.TrimSpace(topic))
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid ntfy_topic: %v", err)}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Result{Name: name, Detail: "ntfy_topic must be an http(s) URL"}
	}
	if parsed.Host == "" || strings.Trim(parsed.Path, "/") == "" {
		return Result{Name: name, Detail: "ntfy_topic must include a host and topic name"}
	}
	return Result{Name: name, Passed: true, Detail: parsed.Host + parsed.Path}
}

// CheckSystemDeps evaluates the external binaries the recognizer pipeline
// runs. Both the daemon startup snapshot and the CLI status command use it.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	command := ""
	if cfg != nil {
		command = cfg.Recognizer.Command
	}
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "Recognizer",
			Command:     command,
			Description: "Required for transcription",
		},
		{
			Name:        "FFmpeg",
			Command:     recognizer.FFmpegCommand,
			Description: "Required to convert non-WAV media",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobe.DefaultBinary,
			Description: "Reports media duration for progress",
			Optional:    true,
		},
	})
}
