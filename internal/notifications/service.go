package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"hlsforge/internal/config"
)

const userAgent = "hlsforge/0.1.0"

// Service defines the notification surface exposed to the transcode pipeline.
type Service interface {
	NotifyJobCompleted(ctx context.Context, videoTitle, jobID string) error
	NotifyJobFailed(ctx context.Context, videoTitle, jobID, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:       topic,
		client:         &http.Client{Timeout: timeout},
		notifyComplete: cfg.Notifications.JobComplete,
		notifyFailed:   cfg.Notifications.JobFailed,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint       string
	client         *http.Client
	notifyComplete bool
	notifyFailed   bool
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, videoTitle, jobID string) error {
	if !n.notifyComplete {
		return nil
	}
	videoTitle = strings.TrimSpace(videoTitle)
	data := payload{
		title:   "hlsforge - Transcode Complete",
		message: fmt.Sprintf("Ready to stream: %s", videoTitle),
		tags:    []string{"hlsforge", "transcode", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, videoTitle, jobID, reason string) error {
	if !n.notifyFailed {
		return nil
	}
	videoTitle = strings.TrimSpace(videoTitle)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "hlsforge - Transcode Failed",
		message:  fmt.Sprintf("Transcode failed: %s\nJob: %s\nReason: %s", videoTitle, jobID, reason),
		tags:     []string{"hlsforge", "transcode", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "hlsforge - Test",
		message:  "Notification system test",
		tags:     []string{"hlsforge", "test"},
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

func (noopService) NotifyJobCompleted(context.Context, string, string) error { return nil }

func (noopService) NotifyJobFailed(context.Context, string, string, string) error { return nil }

func (noopService) TestNotification(context.Context) error { return nil }

var (
	_ Service = (*ntfyService)(nil)
	_ Service = noopService{}
)
