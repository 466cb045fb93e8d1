package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionTarget names the per-run files to prune in one directory.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// PruneRunLogs keeps the newest keep files matching each target and removes
// the rest. Excluded paths are never removed and do not count toward keep.
// keep <= 0 disables pruning.
func PruneRunLogs(logger *slog.Logger, keep int, targets ...RetentionTarget) int {
	if keep <= 0 {
		return 0
	}
	removed := 0
	for _, target := range targets {
		removed += pruneTarget(logger, keep, target)
	}
	return removed
}

type runFile struct {
	path    string
	modTime time.Time
}

func pruneTarget(logger *slog.Logger, keep int, target RetentionTarget) int {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return 0
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	skip := make(map[string]struct{}, len(target.Exclude))
	for _, path := range target.Exclude {
		skip[filepath.Clean(path)] = struct{}{}
	}

	var files []runFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if matched, err := filepath.Match(target.Pattern, entry.Name()); err != nil || !matched {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if _, ok := skip[full]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, runFile{path: full, modTime: info.ModTime()})
	}
	if len(files) <= keep {
		return 0
	}
	sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

	removed := 0
	for _, file := range files[keep:] {
		if err := os.Remove(file.path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", file.path),
				Error(err),
				String(FieldErrorHint, "check file permissions and log_dir ownership"),
				String(FieldImpact, "old log file remains on disk"))
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", file.path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
