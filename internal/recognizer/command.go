package recognizer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"filescribe/internal/config"
	"filescribe/internal/logging"
	"filescribe/internal/media/ffprobe"
	"filescribe/internal/services"
	"filescribe/internal/transcript"
)

const (
	// FFmpegCommand converts inputs the recognizer cannot decode natively.
	FFmpegCommand = "ffmpeg"
	// extractShare is the progress fraction reserved for audio extraction.
	extractShare = 0.05
)

var progressPattern = regexp.MustCompile(`progress\s*=\s*(\d{1,3})%`)

// CommandRunner executes name with args, streaming each stderr line to onLine.
type CommandRunner func(ctx context.Context, name string, args []string, onLine func(string)) error

// Command drives a whisper.cpp style CLI: it writes JSON output next to a temp
// prefix and reports progress on stderr as "progress = N%".
type Command struct {
	binary       string
	model        string
	language     string
	threads      int
	extraArgs    []string
	timeout      time.Duration
	ffmpegBinary string
	prober       *ffprobe.Prober
	run          CommandRunner
	tempDir      string
	logger       *slog.Logger
}

// NewCommand builds a command recognizer from configuration.
func NewCommand(cfg config.Recognizer, logger *slog.Logger) *Command {
	return &Command{
		binary:       cfg.Command,
		model:        cfg.Model,
		language:     cfg.Language,
		threads:      cfg.Threads,
		extraArgs:    append([]string(nil), cfg.ExtraArgs...),
		timeout:      time.Duration(cfg.TimeoutMinutes) * time.Minute,
		ffmpegBinary: FFmpegCommand,
		run:          runStreaming,
		logger:       logging.NewComponentLogger(logger, "recognizer"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Command) WithCommandRunner(runner CommandRunner) *Command {
	if runner != nil {
		c.run = runner
	}
	return c
}

// WithProber enables ffprobe inspection before transcription.
func (c *Command) WithProber(p *ffprobe.Prober) *Command {
	c.prober = p
	return c
}

// WithTempDir overrides where intermediate audio and JSON files are written.
func (c *Command) WithTempDir(dir string) *Command {
	c.tempDir = dir
	return c
}

// Transcribe implements Recognizer.
func (c *Command) Transcribe(ctx context.Context, req Request, progress ProgressFunc) (Result, error) {
	if progress == nil {
		progress = func(float64) {}
	}
	source := strings.TrimSpace(req.Path)
	if source == "" {
		return Result{}, services.Wrap(services.ErrRecognition, "recognizer", "transcribe", "source path required", nil)
	}
	logger := logging.WithContext(services.WithJobID(ctx, req.JobID), c.logger)

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var durationMS int64
	if c.prober != nil {
		info, err := c.prober.Inspect(runCtx, source)
		if err := c.interrupted(ctx, runCtx); err != nil {
			return Result{}, err
		}
		switch {
		case err != nil:
			logging.WarnWithContext(logger, "media probe failed", "media_probe_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "duration unknown; subtitle export may need segments"),
				logging.String(logging.FieldErrorHint, "install ffprobe or check the file is readable"))
		case info.AudioStreamCount() == 0:
			return Result{}, services.Wrap(services.ErrRecognition, "recognizer", "probe", "file has no audio stream", nil)
		default:
			durationMS = info.DurationMillis()
		}
	}

	workDir, err := os.MkdirTemp(c.tempDir, "filescribe-*")
	if err != nil {
		return Result{}, services.Wrap(services.ErrRecognition, "recognizer", "prepare", "create work dir", err)
	}
	defer os.RemoveAll(workDir)

	input := source
	if needsExtraction(source) {
		input = filepath.Join(workDir, "audio.wav")
		if err := c.run(runCtx, c.ffmpegBinary, buildFFmpegArgs(source, input), nil); err != nil {
			if ierr := c.interrupted(ctx, runCtx); ierr != nil {
				return Result{}, ierr
			}
			return Result{}, services.Wrap(services.ErrRecognition, "recognizer", "extract audio", "ffmpeg failed", err)
		}
	}
	progress(extractShare)

	prefix := filepath.Join(workDir, "transcript")
	args := c.buildArgs(input, prefix)
	logger.Debug("running recognizer", logging.String("command", c.binary), logging.String("model", c.model))

	onLine := func(line string) {
		if pct, ok := parseProgress(line); ok {
			progress(extractShare + (1-extractShare)*pct)
		}
	}
	if err := c.run(runCtx, c.binary, args, onLine); err != nil {
		if ierr := c.interrupted(ctx, runCtx); ierr != nil {
			return Result{}, ierr
		}
		return Result{}, services.Wrap(services.ErrRecognition, "recognizer", "transcribe", filepath.Base(c.binary)+" failed", err)
	}

	segments, err := loadSegments(prefix + ".json")
	if err != nil {
		return Result{}, services.Wrap(services.ErrRecognition, "recognizer", "decode output", "", err)
	}
	if durationMS == 0 {
		durationMS = transcript.End(segments)
	}
	progress(1)
	return Result{
		Text:       transcript.JoinText(segments),
		Segments:   segments,
		DurationMS: durationMS,
	}, nil
}

// interrupted distinguishes caller cancellation from the per-job timeout.
func (c *Command) interrupted(parent, runCtx context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return services.Wrap(services.ErrRecognition, "recognizer", "transcribe",
			fmt.Sprintf("timed out after %s", c.timeout), runCtx.Err())
	}
	return nil
}

func (c *Command) buildArgs(input, prefix string) []string {
	args := make([]string, 0, 16+len(c.extraArgs))
	if c.model != "" {
		args = append(args, "-m", c.model)
	}
	args = append(args, "-f", input, "-oj", "-of", prefix, "-pp")
	if c.language != "" {
		args = append(args, "-l", c.language)
	}
	if c.threads > 0 {
		args = append(args, "-t", strconv.Itoa(c.threads))
	}
	return append(args, c.extraArgs...)
}

// needsExtraction reports whether the CLI needs a 16kHz WAV produced by ffmpeg.
func needsExtraction(path string) bool {
	return !strings.EqualFold(filepath.Ext(path), ".wav")
}

func buildFFmpegArgs(source, dest string) []string {
	return []string{
		"-y",
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
}

func parseProgress(line string) (float64, bool) {
	match := progressPattern.FindStringSubmatch(line)
	if match == nil {
		return 0, false
	}
	pct, err := strconv.Atoi(match[1])
	if err != nil || pct < 0 || pct > 100 {
		return 0, false
	}
	return float64(pct) / 100, true
}

type whisperOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func loadSegments(path string) ([]transcript.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recognizer output: %w", err)
	}
	var payload whisperOutput
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse recognizer output: %w", err)
	}
	segments := make([]transcript.Segment, 0, len(payload.Transcription))
	for _, entry := range payload.Transcription {
		text := strings.TrimSpace(entry.Text)
		if text == "" || entry.Offsets.To <= entry.Offsets.From {
			continue
		}
		start := entry.Offsets.From
		// Whisper occasionally emits a segment that starts a few ms before the
		// previous one ends; clamp so the sequence stays non-overlapping.
		if n := len(segments); n > 0 && start < segments[n-1].EndMS {
			start = segments[n-1].EndMS
			if start >= entry.Offsets.To {
				segments[n-1].Text += " " + text
				continue
			}
		}
		segments = append(segments, transcript.Segment{StartMS: start, EndMS: entry.Offsets.To, Text: text})
	}
	return segments, nil
}

func runStreaming(ctx context.Context, name string, args []string, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	var tail []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if onLine != nil {
			onLine(line)
		}
		if strings.TrimSpace(line) != "" && !progressPattern.MatchString(line) {
			tail = append(tail, line)
			if len(tail) > 8 {
				tail = tail[1:]
			}
		}
	}
	_, _ = io.Copy(io.Discard, stderr)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(strings.Join(tail, "\n")))
	}
	return nil
}
