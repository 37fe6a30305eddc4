package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"apogee/internal/config"
)

const userAgent = "Apogee/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyApprovalPending(ctx context.Context, count int, timeout time.Duration) error
	NotifyBatchCompleted(ctx context.Context, approved, failed int, duration time.Duration) error
	NotifyVideoFailed(ctx context.Context, title, reason string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
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
}

func (n *ntfyService) NotifyApprovalPending(ctx context.Context, count int, timeout time.Duration) error {
	data := payload{
		title: "Apogee - Approval Needed",
		message: fmt.Sprintf("%d topic(s) pending approval. The pipeline waits up to %s.",
			count, timeout.Round(time.Hour)),
		tags:     []string{"apogee", "approval", "pending"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, approved, failed int, duration time.Duration) error {
	data := payload{
		title: "Apogee - Batch Complete",
		message: fmt.Sprintf("Batch finished: %d video(s) approved, %d failed in %s.",
			approved, failed, duration.Round(time.Second)),
		tags: []string{"apogee", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyVideoFailed(ctx context.Context, title, reason string) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Apogee - Video Failed",
		message: fmt.Sprintf("Video failed: %s\nReason: %s", title, strings.TrimSpace(reason)),
		tags:    []string{"apogee", "video", "failed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Apogee - Error",
		message:  builder.String(),
		tags:     []string{"apogee", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Apogee - Test",
		message:  "Notification system test",
		tags:     []string{"apogee", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
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

func (noopService) NotifyApprovalPending(context.Context, int, time.Duration) error   { return nil }
func (noopService) NotifyBatchCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyVideoFailed(context.Context, string, string) error           { return nil }
func (noopService) NotifyError(context.Context, error, string) error                  { return nil }
func (noopService) TestNotification(context.Context) error                            { return nil }
