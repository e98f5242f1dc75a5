package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"embymerge/internal/config"
)

const userAgent = "embymerge/1.0"

// Service defines the notification surface used by the merge pipelines.
type Service interface {
	NotifyMerged(ctx context.Context, name string) error
	NotifyMergeFailed(ctx context.Context, name string, err error) error
	NotifyScanCompleted(ctx context.Context, summary ScanSummary) error
	TestNotification(ctx context.Context) error
}

// ScanSummary is the subset of a scan report included in notifications.
type ScanSummary struct {
	Trigger  string
	Merged   int
	Skipped  int
	Failed   int
	Duration time.Duration
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
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		merges:   cfg.Notifications.Merges,
		errors:   cfg.Notifications.Errors,
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
	merges   bool
	errors   bool
}

func (n *ntfyService) NotifyMerged(ctx context.Context, name string) error {
	if !n.merges {
		return nil
	}
	return n.send(ctx, payload{
		title:   "embymerge - Merged",
		message: fmt.Sprintf("🎬 Merged versions: %s", strings.TrimSpace(name)),
		tags:    []string{"embymerge", "merge", "completed"},
	})
}

func (n *ntfyService) NotifyMergeFailed(ctx context.Context, name string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Merge failed")
	if name = strings.TrimSpace(name); name != "" {
		builder.WriteString(" for ")
		builder.WriteString(name)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "embymerge - Error",
		message:  builder.String(),
		tags:     []string{"embymerge", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) NotifyScanCompleted(ctx context.Context, summary ScanSummary) error {
	if !n.merges && !(n.errors && summary.Failed > 0) {
		return nil
	}
	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	trigger := strings.TrimSpace(summary.Trigger)
	if trigger == "" {
		trigger = "manual"
	}

	title := "embymerge - Scan Complete"
	if summary.Failed > 0 {
		title = "embymerge - Scan Complete (with errors)"
	}
	return n.send(ctx, payload{
		title: title,
		message: fmt.Sprintf("Library scan (%s) finished in %s: %d merged, %d skipped, %d failed",
			trigger, duration, summary.Merged, summary.Skipped, summary.Failed),
		tags: []string{"embymerge", "scan", "completed"},
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "embymerge - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"embymerge", "test"},
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

func (noopService) NotifyMerged(context.Context, string) error             { return nil }
func (noopService) NotifyMergeFailed(context.Context, string, error) error { return nil }
func (noopService) NotifyScanCompleted(context.Context, ScanSummary) error { return nil }
func (noopService) TestNotification(context.Context) error                 { return nil }
