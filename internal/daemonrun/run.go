package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"filescribe/internal/config"
	"filescribe/internal/daemon"
	"filescribe/internal/deps"
	"filescribe/internal/ipc"
	"filescribe/internal/logging"
	"filescribe/internal/media/ffprobe"
	"filescribe/internal/preflight"
	"filescribe/internal/recognizer"
	"filescribe/internal/store"
)

// keepRunLogs is how many per-run log files survive startup pruning.
const keepRunLogs = 10

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// Run starts the filescribe daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runStamp := time.Now().UTC().Format("20060102T150405.000Z")
	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("filescribe-%s.log", runStamp))

	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
		RunID:            runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var debugLogPath string
	if opts.Diagnostic {
		debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
		debugLogPath = filepath.Join(debugDir, fmt.Sprintf("filescribe-%s.jsonl", runStamp))
		debugLogger, debugErr := logging.New(logging.Options{
			Level:       "debug",
			Format:      "json",
			OutputPaths: []string{debugLogPath},
			Development: true,
			RunID:       runID,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
		}
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String("debug_log_path", debugLogPath))
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update filescribe.log link: %v\n", err)
	}
	logging.PruneRunLogs(logger, keepRunLogs,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "filescribe-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: filepath.Join(cfg.Paths.LogDir, "debug"), Pattern: "filescribe-*.jsonl", Exclude: []string{debugLogPath}},
	)
	logDependencySnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "filescribe.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(signalCtx, cfg.DatabasePath())
	if err != nil {
		logging.ErrorWithContext(logger, "open store failed", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.data_dir permissions"))
		return err
	}

	workDir := filepath.Join(cfg.Paths.DataDir, "tmp")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		_ = st.Close()
		return fmt.Errorf("create work directory: %w", err)
	}
	engine := recognizer.NewCommand(cfg.Recognizer, logger).
		WithProber(ffprobe.NewProber("")).
		WithTempDir(workDir)

	d, err := daemon.New(cfg, st, recognizer.Static{Recognizer: engine}, logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("filescribe daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "filescribe.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	statuses := preflight.CheckSystemDeps(cfg)
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("summary", deps.Summarize(statuses).Detail),
		logging.Bool("recognizer_model_present", preflight.CheckModelFile(cfg.Recognizer.Model).Passed),
		logging.Bool("notifications_enabled", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
	}
	for _, st := range statuses {
		attrs = append(attrs, logging.Bool(strings.ToLower(st.Name)+"_available", st.Available))
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
	for _, st := range statuses {
		if st.Available || st.Optional {
			continue
		}
		logging.WarnWithContext(logger, "required dependency missing", "dependency_missing",
			logging.String("dependency", st.Name),
			logging.String("detail", st.Detail),
			logging.String(logging.FieldImpact, "transcription jobs will fail"),
			logging.String(logging.FieldErrorHint, "install "+st.Name+" or fix its path in the config"))
	}
}
