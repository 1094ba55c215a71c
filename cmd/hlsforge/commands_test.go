package main

import (
	"strings"
	"testing"
)

func TestVideoAndJobLifecycle(t *testing.T) {
	env := setupCLITestEnv(t, &stubEncoder{segments: 3})
	source := env.writeSource(t, "sintel.mp4")

	out, err := runCLI(t, []string{"video", "add", source, "--title", "Sintel"}, env.address)
	if err != nil {
		t.Fatalf("video add: %v", err)
	}
	requireContains(t, out, "Added video 1: Sintel")

	out, err = runCLI(t, []string{"video", "list"}, env.address)
	if err != nil {
		t.Fatalf("video list: %v", err)
	}
	requireContains(t, out, "Sintel")
	requireContains(t, out, "Pending")

	// submit with --watch streams progress through to completion
	out, err = runCLI(t, []string{"job", "submit", "1", "--watch"}, env.address)
	if err != nil {
		t.Fatalf("job submit --watch: %v", err)
	}
	requireContains(t, out, "Queued job")
	requireContains(t, out, "done")

	out, err = runCLI(t, []string{"job", "list", "--status", "completed"}, env.address)
	if err != nil {
		t.Fatalf("job list: %v", err)
	}
	requireContains(t, out, "Completed")
	requireContains(t, out, "100.0%")

	out, err = runCLI(t, []string{"video", "show", "1"}, env.address)
	if err != nil {
		t.Fatalf("video show: %v", err)
	}
	requireContains(t, out, "Complete")
	requireContains(t, out, "Segments:  3")
}

func TestJobWatchReportsFailure(t *testing.T) {
	env := setupCLITestEnv(t, &stubEncoder{segments: 1, fail: true})
	source := env.writeSource(t, "broken.mkv")

	if _, err := runCLI(t, []string{"video", "add", source}, env.address); err != nil {
		t.Fatalf("video add: %v", err)
	}

	out, err := runCLI(t, []string{"job", "submit", "1", "--watch"}, env.address)
	if err == nil {
		t.Fatalf("expected watch to report failure, output:\n%s", out)
	}
	if !strings.Contains(err.Error(), "failed") {
		t.Fatalf("expected failure error, got %v", err)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t, &stubEncoder{segments: 1})

	out, err := runCLI(t, []string{"status"}, env.address)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "Running")
	requireContains(t, out, "== Dependencies ==")
}

func TestJobShowUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t, &stubEncoder{segments: 1})

	if _, err := runCLI(t, []string{"job", "show", "no-such-job"}, env.address); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestSubmitRejectsBadVideoID(t *testing.T) {
	env := setupCLITestEnv(t, &stubEncoder{segments: 1})

	if _, err := runCLI(t, []string{"job", "submit", "abc"}, env.address); err == nil {
		t.Fatal("expected error for invalid video id")
	}
	if _, err := runCLI(t, []string{"job", "submit", "42"}, env.address); err == nil {
		t.Fatal("expected error for unknown video")
	}
}
