package config

import (
	"errors"
	"fmt"
	"strings"
)

var validExportFormats = map[string]struct{}{
	"txt": {}, "srt": {}, "vtt": {}, "json": {}, "markdown": {}, "md": {},
	"csv": {}, "html": {}, "docx": {}, "pdf": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateRecognizer(); err != nil {
		return err
	}
	if err := c.validateWatch(); err != nil {
		return err
	}
	if err := c.validateExport(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateQueue() error {
	for _, ext := range c.Queue.SupportedExtensions {
		if strings.ContainsAny(ext, `/\ `) {
			return fmt.Errorf("queue.supported_extensions: invalid extension %q", ext)
		}
	}
	if c.Queue.LargeFileWarningMB > c.Queue.MaxFileSizeMB {
		return fmt.Errorf("queue.large_file_warning_mb (%d) must not exceed queue.max_file_size_mb (%d)",
			c.Queue.LargeFileWarningMB, c.Queue.MaxFileSizeMB)
	}
	return nil
}

func (c *Config) validateRecognizer() error {
	if c.Recognizer.Threads < 0 || c.Recognizer.Threads > maxRecognizerThreads {
		return fmt.Errorf("recognizer.threads must be between 0 and %d", maxRecognizerThreads)
	}
	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.SettleMillis < 0 || c.Watch.SettleMillis > maxWatchSettleMillis {
		return fmt.Errorf("watch.settle_ms must be between 0 and %d", maxWatchSettleMillis)
	}
	seen := make(map[string]struct{}, len(c.Watch.Folders))
	for i, folder := range c.Watch.Folders {
		if folder.Path == "" {
			return fmt.Errorf("watch.folders[%d].path must be set", i)
		}
		if _, ok := seen[folder.Path]; ok {
			return fmt.Errorf("watch.folders[%d]: duplicate path %q", i, folder.Path)
		}
		seen[folder.Path] = struct{}{}
	}
	return nil
}

func (c *Config) validateExport() error {
	if _, ok := validExportFormats[c.Export.DefaultFormat]; !ok {
		return fmt.Errorf("export.default_format: unsupported value %q", c.Export.DefaultFormat)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
