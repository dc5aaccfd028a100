package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clipguard/internal/config"
)

const userAgent = "clipguard/0.1.0"

// Flagged describes a video the moderation service flagged.
type Flagged struct {
	VideoID int64
	AssetID string
	PostID  *int64
	URL     string
}

// Aborted describes a job that exhausted its attempts.
type Aborted struct {
	JobID    int64
	VideoID  int64
	AssetID  string
	Stage    string
	Attempts int
	Reason   string
}

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyVideoFlagged(ctx context.Context, event Flagged) error
	NotifyJobAborted(ctx context.Context, event Aborted) error
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		flagged:  cfg.Notifications.Flagged,
		aborted:  cfg.Notifications.Aborted,
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
	flagged  bool
	aborted  bool
}

func (n *ntfyService) NotifyVideoFlagged(ctx context.Context, event Flagged) error {
	if !n.flagged {
		return nil
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "🚩 Video %d flagged (asset %s)", event.VideoID, strings.TrimSpace(event.AssetID))
	if event.PostID != nil {
		fmt.Fprintf(&builder, "\nPost: %d", *event.PostID)
	}
	if url := strings.TrimSpace(event.URL); url != "" {
		builder.WriteString("\nRendition: ")
		builder.WriteString(url)
	}
	return n.send(ctx, payload{
		title:    "clipguard - Video Flagged",
		message:  builder.String(),
		tags:     []string{"clipguard", "moderation", "flagged"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyJobAborted(ctx context.Context, event Aborted) error {
	if !n.aborted {
		return nil
	}
	reason := strings.TrimSpace(event.Reason)
	if reason == "" {
		reason = "unknown"
	}
	message := fmt.Sprintf("❌ Job %d for video %d aborted after %d attempt(s)", event.JobID, event.VideoID, event.Attempts)
	if stage := strings.TrimSpace(event.Stage); stage != "" {
		message += " during " + stage
	}
	message += ": " + reason + "\nThe video remains unmoderated."
	return n.send(ctx, payload{
		title:    "clipguard - Job Aborted",
		message:  message,
		tags:     []string{"clipguard", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "clipguard - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"clipguard", "test"},
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

func (noopService) NotifyVideoFlagged(context.Context, Flagged) error { return nil }
func (noopService) NotifyJobAborted(context.Context, Aborted) error   { return nil }
func (noopService) TestNotification(context.Context) error            { return nil }
