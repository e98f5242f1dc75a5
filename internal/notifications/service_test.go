package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"embymerge/internal/config"
	"embymerge/internal/notifications"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

func newNtfyServer(t *testing.T, status int) (*httptest.Server, *[]captured) {
	t.Helper()
	var calls []captured
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, captured{
			title:    r.Header.Get("Title"),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
			body:     string(body),
		})
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyMerged(context.Background(), "Heat"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
	if err := svc.NotifyMergeFailed(context.Background(), "Heat", errors.New("boom")); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "merged",
			send:          func(s notifications.Service) error { return s.NotifyMerged(context.Background(), "The Matrix") },
			expectTitle:   "embymerge - Merged",
			expectMessage: "🎬 Merged versions: The Matrix",
			expectTags:    "embymerge,merge,completed",
		},
		{
			name: "merge failed",
			send: func(s notifications.Service) error {
				return s.NotifyMergeFailed(context.Background(), "The Matrix", errors.New("emby returned 500"))
			},
			expectTitle:    "embymerge - Error",
			expectMessage:  "❌ Merge failed for The Matrix: emby returned 500",
			expectTags:     "embymerge,error,alert",
			expectPriority: "high",
		},
		{
			name: "scan completed",
			send: func(s notifications.Service) error {
				return s.NotifyScanCompleted(context.Background(), notifications.ScanSummary{
					Trigger: "startup", Merged: 3, Skipped: 40, Duration: 2500 * time.Millisecond,
				})
			},
			expectTitle:   "embymerge - Scan Complete",
			expectMessage: "Library scan (startup) finished in 3s: 3 merged, 40 skipped, 0 failed",
			expectTags:    "embymerge,scan,completed",
		},
		{
			name:           "test",
			send:           func(s notifications.Service) error { return s.TestNotification(context.Background()) },
			expectTitle:    "embymerge - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "embymerge,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			server, calls := newNtfyServer(t, http.StatusOK)

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			if err := tc.send(notifications.NewService(&cfg)); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			if len(*calls) != 1 {
				t.Fatalf("expected 1 request, got %d", len(*calls))
			}
			got := (*calls)[0]
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	server, calls := newNtfyServer(t, http.StatusOK)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Merges = false
	cfg.Notifications.Errors = false

	svc := notifications.NewService(&cfg)
	_ = svc.NotifyMerged(context.Background(), "Heat")
	_ = svc.NotifyMergeFailed(context.Background(), "Heat", errors.New("boom"))
	_ = svc.NotifyScanCompleted(context.Background(), notifications.ScanSummary{Merged: 1, Failed: 1})

	if len(*calls) != 0 {
		t.Fatalf("expected no requests with notifications disabled, got %d", len(*calls))
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server, _ := newNtfyServer(t, http.StatusTooManyRequests)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	err := notifications.NewService(&cfg).NotifyMerged(context.Background(), "Heat")
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected 429 error, got %v", err)
	}
}
