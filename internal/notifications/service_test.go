package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"hlsforge/internal/config"
	"hlsforge/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyJobCompleted(context.Background(), "Example", "job-1"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceSendsCompletionNotification(t *testing.T) {
	var gotTitle, gotTags, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobComplete = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyJobCompleted(context.Background(), "Sintel", "job-1"); err != nil {
		t.Fatalf("NotifyJobCompleted: %v", err)
	}
	if gotTitle != "hlsforge - Transcode Complete" {
		t.Fatalf("unexpected title %q", gotTitle)
	}
	if !strings.Contains(gotBody, "Sintel") {
		t.Fatalf("expected video title in body, got %q", gotBody)
	}
	if !strings.Contains(gotTags, "completed") {
		t.Fatalf("unexpected tags %q", gotTags)
	}
}

func TestNtfyServiceSendsFailureNotification(t *testing.T) {
	var gotPriority, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPriority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobFailed = true
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyJobFailed(context.Background(), "Sintel", "job-1", "encoder exited"); err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}
	if gotPriority != "high" {
		t.Fatalf("expected high priority, got %q", gotPriority)
	}
	if !strings.Contains(gotBody, "encoder exited") {
		t.Fatalf("expected reason in body, got %q", gotBody)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.JobComplete = false
	cfg.Notifications.JobFailed = false
	svc := notifications.NewService(&cfg)

	if err := svc.NotifyJobCompleted(context.Background(), "Sintel", "job-1"); err != nil {
		t.Fatalf("NotifyJobCompleted: %v", err)
	}
	if err := svc.NotifyJobFailed(context.Background(), "Sintel", "job-1", "boom"); err != nil {
		t.Fatalf("NotifyJobFailed: %v", err)
	}
	if requests != 0 {
		t.Fatalf("expected no requests with toggles off, got %d", requests)
	}
}

func TestNtfyServiceReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic over quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)

	if err := svc.TestNotification(context.Background()); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}
