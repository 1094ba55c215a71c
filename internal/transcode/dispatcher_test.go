package transcode_test

import (
	"context"
	"errors"
	"testing"

	"hlsforge/internal/library"
	"hlsforge/internal/services"
	"hlsforge/internal/testsupport"
	"hlsforge/internal/transcode"
)

func TestSubmitCreatesPendingJob(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, store, "Sintel", "/media/sintel.mp4")

	var woken []string
	dispatcher := transcode.NewDispatcher(cfg, store, func(jobID string) {
		woken = append(woken, jobID)
	})

	job, err := dispatcher.Submit(ctx, video.ID, 4)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != library.JobStatusPending {
		t.Fatalf("expected pending job, got %s", job.Status)
	}
	if job.SegmentSeconds != 4 {
		t.Fatalf("expected segment seconds 4, got %d", job.SegmentSeconds)
	}
	if len(woken) != 1 || woken[0] != job.ID {
		t.Fatalf("expected wake with job id, got %v", woken)
	}
}

func TestSubmitDefaultsSegmentSeconds(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t, testsupport.WithSegmentSeconds(6))
	store := testsupport.MustOpenStore(t, cfg)

	video := testsupport.NewVideo(t, store, "Sintel", "/media/sintel.mp4")
	dispatcher := transcode.NewDispatcher(cfg, store, nil)

	job, err := dispatcher.Submit(context.Background(), video.ID, 0)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.SegmentSeconds != 6 {
		t.Fatalf("expected default segment seconds 6, got %d", job.SegmentSeconds)
	}
}

func TestSubmitRejectsInvalidSegmentSeconds(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	video := testsupport.NewVideo(t, store, "Sintel", "/media/sintel.mp4")
	dispatcher := transcode.NewDispatcher(cfg, store, nil)

	for _, seconds := range []int{-1, 61, 1000} {
		if _, err := dispatcher.Submit(context.Background(), video.ID, seconds); !errors.Is(err, services.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument for %d, got %v", seconds, err)
		}
	}
}

func TestSubmitRejectsUnknownVideo(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	dispatcher := transcode.NewDispatcher(cfg, store, nil)
	if _, err := dispatcher.Submit(context.Background(), 12345, 8); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmitRefusesWhenStagingSpaceLow(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	// no filesystem holds this much
	cfg.Workflow.MinFreeSpaceGiB = 1 << 30
	store := testsupport.MustOpenStore(t, cfg)

	video := testsupport.NewVideo(t, store, "Sintel", "/media/sintel.mp4")
	dispatcher := transcode.NewDispatcher(cfg, store, nil)

	if _, err := dispatcher.Submit(context.Background(), video.ID, 8); !errors.Is(err, services.ErrPersistenceFailure) {
		t.Fatalf("expected ErrPersistenceFailure, got %v", err)
	}

	// An unknown video reports not-found even when the volume is full.
	if _, err := dispatcher.Submit(context.Background(), 12345, 8); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown video, got %v", err)
	}
}

func TestSubmitRejectsDuplicateActiveJob(t *testing.T) {
	t.Parallel()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	video := testsupport.NewVideo(t, store, "Sintel", "/media/sintel.mp4")
	dispatcher := transcode.NewDispatcher(cfg, store, nil)

	first, err := dispatcher.Submit(ctx, video.ID, 8)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := dispatcher.Submit(ctx, video.ID, 8); !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// terminal job frees the slot
	if err := store.FailJob(ctx, first.ID, "boom"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	if _, err := dispatcher.Submit(ctx, video.ID, 8); err != nil {
		t.Fatalf("Submit after terminal: %v", err)
	}
}
