package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeQueue()
	if err := c.normalizeRecognizer(); err != nil {
		return err
	}
	if err := c.normalizeWatch(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	c.Export.DefaultFormat = strings.ToLower(strings.TrimSpace(c.Export.DefaultFormat))
	if c.Export.DefaultFormat == "" {
		c.Export.DefaultFormat = defaultExportFormat
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ExportDir, err = expandPath(c.Paths.ExportDir); err != nil {
		return fmt.Errorf("paths.export_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeQueue() {
	exts := make([]string, 0, len(c.Queue.SupportedExtensions))
	seen := make(map[string]struct{}, len(c.Queue.SupportedExtensions))
	for _, ext := range c.Queue.SupportedExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Queue.SupportedExtensions = exts
	if c.Queue.MaxFileSizeMB <= 0 {
		c.Queue.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	if c.Queue.LargeFileWarningMB <= 0 {
		c.Queue.LargeFileWarningMB = defaultLargeFileWarningMB
	}
}

func (c *Config) normalizeRecognizer() error {
	if value, ok := os.LookupEnv(envRecognizerCommand); ok && strings.TrimSpace(value) != "" {
		c.Recognizer.Command = value
	}
	if value, ok := os.LookupEnv(envRecognizerModel); ok && strings.TrimSpace(value) != "" {
		c.Recognizer.Model = value
	}
	c.Recognizer.Command = strings.TrimSpace(c.Recognizer.Command)
	if c.Recognizer.Command == "" {
		c.Recognizer.Command = defaultRecognizerCommand
	}
	model := strings.TrimSpace(c.Recognizer.Model)
	if model != "" {
		var err error
		if model, err = expandPath(model); err != nil {
			return fmt.Errorf("recognizer.model: %w", err)
		}
	}
	c.Recognizer.Model = model
	c.Recognizer.Language = strings.ToLower(strings.TrimSpace(c.Recognizer.Language))
	if c.Recognizer.Language == "" {
		c.Recognizer.Language = defaultRecognizerLanguage
	}
	if c.Recognizer.TimeoutMinutes <= 0 {
		c.Recognizer.TimeoutMinutes = defaultRecognizerTimeout
	}
	return nil
}

func (c *Config) normalizeWatch() error {
	for i := range c.Watch.Folders {
		expanded, err := expandPath(strings.TrimSpace(c.Watch.Folders[i].Path))
		if err != nil {
			return fmt.Errorf("watch.folders[%d].path: %w", i, err)
		}
		c.Watch.Folders[i].Path = expanded
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv(envNtfyTopic); ok {
			c.Notifications.NtfyTopic = value
		}
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
