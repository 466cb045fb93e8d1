package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"filescribe/internal/config"
)

const userAgent = "Filescribe/0.1.0"

// Service is the notification surface used by the daemon.
type Service interface {
	NotifyJobCompleted(ctx context.Context, fileName string, elapsed time.Duration) error
	NotifyJobFailed(ctx context.Context, fileName, reason string) error
	NotifyQueueDrained(ctx context.Context, completed, failed int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:     topic,
		client:       &http.Client{Timeout: timeout},
		jobCompleted: cfg.Notifications.JobCompleted,
		jobFailed:    cfg.Notifications.JobFailed,
		queueDrained: cfg.Notifications.QueueDrained,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	jobCompleted bool
	jobFailed    bool
	queueDrained bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, fileName string, elapsed time.Duration) error {
	if !n.jobCompleted {
		return nil
	}
	message := fmt.Sprintf("✅ Transcribed: %s", strings.TrimSpace(fileName))
	if elapsed > 0 {
		message = fmt.Sprintf("%s in %s", message, elapsed.Round(time.Second))
	}
	return n.send(ctx, payload{
		title:   "Filescribe - Transcription Complete",
		message: message,
		tags:    []string{"filescribe", "job", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, fileName, reason string) error {
	if !n.jobFailed {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Transcription failed: ")
	builder.WriteString(strings.TrimSpace(fileName))
	if reason = strings.TrimSpace(reason); reason != "" {
		builder.WriteString("\n")
		builder.WriteString(reason)
	}
	return n.send(ctx, payload{
		title:    "Filescribe - Transcription Failed",
		message:  builder.String(),
		tags:     []string{"filescribe", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyQueueDrained(ctx context.Context, completed, failed int) error {
	if !n.queueDrained {
		return nil
	}
	title := "Filescribe - Queue Complete"
	message := fmt.Sprintf("Queue processing complete: %d transcribed", completed)
	if failed > 0 {
		title = "Filescribe - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d transcribed, %d failed", completed, failed)
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"filescribe", "queue", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "Filescribe - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"filescribe", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, string, time.Duration) error { return nil }
func (noopService) NotifyJobFailed(context.Context, string, string) error          { return nil }
func (noopService) NotifyQueueDrained(context.Context, int, int) error             { return nil }
func (noopService) TestNotification(context.Context) error                         { return nil }
