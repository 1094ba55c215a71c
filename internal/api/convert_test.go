package api

import (
	"testing"
	"time"

	"hlsforge/internal/library"
	"hlsforge/internal/progress"
)

func TestFromVideo(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	video := &library.Video{
		ID:           7,
		Title:        "Sintel",
		SourcePath:   "/media/sintel.mp4",
		ManifestPath: "/library/7/output.m3u8",
		State:        library.VideoStateComplete,
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Hour),
	}

	dto := FromVideo(video)
	if dto.ID != 7 || dto.Title != "Sintel" || dto.State != "complete" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.CreatedAt == "" || dto.UpdatedAt == "" {
		t.Fatalf("expected formatted timestamps, got %+v", dto)
	}

	if got := FromVideo(nil); got != (Video{}) {
		t.Fatalf("expected zero dto for nil video, got %+v", got)
	}
}

func TestFromJobIncludesOptionalTimestamps(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC)
	job := &library.Job{
		ID:              "job-1",
		VideoID:         7,
		SegmentSeconds:  8,
		Status:          library.JobStatusRunning,
		ProgressPercent: 42,
		StartedAt:       &started,
	}

	dto := FromJob(job)
	if dto.StartedAt == "" {
		t.Fatal("expected started timestamp")
	}
	if dto.FinishedAt != "" {
		t.Fatalf("expected empty finished timestamp, got %q", dto.FinishedAt)
	}
	if dto.Status != "running" || dto.ProgressPercent != 42 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
}

func TestFromProgressEvent(t *testing.T) {
	evt := progress.Event{
		JobID:        "job-1",
		VideoID:      7,
		Percent:      99.5,
		Terminal:     true,
		Failed:       true,
		ErrorMessage: "encoder exited",
		Timestamp:    time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC),
	}
	dto := FromProgressEvent(evt)
	if dto.JobID != "job-1" || !dto.Terminal || !dto.Failed {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.Timestamp == "" {
		t.Fatal("expected formatted timestamp")
	}
}

func TestFromHealth(t *testing.T) {
	counts := FromHealth(library.HealthSummary{Total: 4, Pending: 1, Running: 1, Completed: 1, Failed: 1})
	if counts.Total != 4 || counts.Pending != 1 || counts.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
