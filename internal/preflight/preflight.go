package preflight

import (
	"filescribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Severity maps a result onto the status display levels.
func (r Result) Severity() string {
	if r.Passed {
		return "ok"
	}
	return "error"
}

// RunAll executes the filesystem and configuration checks for cfg.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Export directory", cfg.Paths.ExportDir),
		CheckModelFile(cfg.Recognizer.Model),
	}
	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfyTopic(cfg.Notifications.NtfyTopic))
	}
	return results
}
