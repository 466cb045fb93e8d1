package config

const (
	defaultConfigPath             = "~/.config/filescribe/config.toml"
	defaultDataDir                = "~/.local/share/filescribe"
	defaultLogDir                 = "~/.local/share/filescribe/logs"
	defaultExportDir              = "~/Documents/transcripts"
	defaultMaxFileSizeMB          = 4096
	defaultLargeFileWarningMB     = 500
	defaultRecognizerCommand      = "whisper-cli"
	defaultRecognizerModel        = "~/.local/share/filescribe/models/ggml-base.bin"
	defaultRecognizerLanguage     = "auto"
	defaultRecognizerTimeout      = 240
	defaultWatchSettleMillis      = 1000
	defaultExportFormat           = "txt"
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	maxRecognizerThreads          = 64
	maxWatchSettleMillis          = 60_000
	envNtfyTopic                  = "FILESCRIBE_NTFY_TOPIC"
	envRecognizerModel            = "FILESCRIBE_MODEL"
	envRecognizerCommand          = "FILESCRIBE_RECOGNIZER"
	defaultNotifyJobCompleted     = true
	defaultNotifyJobFailed        = true
	defaultNotifyQueueDrained     = true
	defaultWatchAutoProcess       = true
	defaultQueuePersist           = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			LogDir:    defaultLogDir,
			ExportDir: defaultExportDir,
		},
		Queue: Queue{
			MaxFileSizeMB:      defaultMaxFileSizeMB,
			LargeFileWarningMB: defaultLargeFileWarningMB,
			Persist:            defaultQueuePersist,
		},
		Recognizer: Recognizer{
			Command:        defaultRecognizerCommand,
			Model:          defaultRecognizerModel,
			Language:       defaultRecognizerLanguage,
			TimeoutMinutes: defaultRecognizerTimeout,
		},
		Watch: Watch{
			SettleMillis:       defaultWatchSettleMillis,
			DefaultAutoProcess: defaultWatchAutoProcess,
		},
		Export: Export{
			DefaultFormat: defaultExportFormat,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   defaultNotifyJobCompleted,
			JobFailed:      defaultNotifyJobFailed,
			QueueDrained:   defaultNotifyQueueDrained,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
