package testsupport

import (
	"context"
	"testing"

	"hlsforge/internal/config"
	"hlsforge/internal/library"
)

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewVideo creates a video row for tests using the provided store.
func NewVideo(t testing.TB, store *library.Store, title, sourcePath string) *library.Video {
	t.Helper()

	video, err := store.CreateVideo(context.Background(), title, sourcePath)
	if err != nil {
		t.Fatalf("store.CreateVideo: %v", err)
	}
	return video
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *library.Store, videoID int64, segmentSeconds int) *library.Job {
	t.Helper()

	job, err := store.CreateJob(context.Background(), videoID, segmentSeconds)
	if err != nil {
		t.Fatalf("store.CreateJob: %v", err)
	}
	return job
}
