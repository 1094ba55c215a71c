package transcode

import (
	"context"
	"errors"
	"fmt"

	"hlsforge/internal/config"
	"hlsforge/internal/library"
	"hlsforge/internal/preflight"
	"hlsforge/internal/services"
)

const dispatcherComponent = "dispatcher"

// MinSegmentSeconds and MaxSegmentSeconds bound the accepted segment duration.
const (
	MinSegmentSeconds = 1
	MaxSegmentSeconds = 60
)

// Dispatcher validates job submissions and records them for the worker pool.
type Dispatcher struct {
	cfg   *config.Config
	store *library.Store
	wake  func(jobID string)
}

// NewDispatcher constructs a dispatcher. The wake callback, when non-nil, is
// invoked after a job row is persisted so workers can pick it up without
// waiting for the next poll.
func NewDispatcher(cfg *config.Config, store *library.Store, wake func(jobID string)) *Dispatcher {
	return &Dispatcher{cfg: cfg, store: store, wake: wake}
}

// Submit validates and enqueues a transcoding job for a video. A zero
// segmentSeconds selects the configured default. The persisted job row is the
// source of truth; losing the wake signal only delays pickup until the next
// worker poll.
func (d *Dispatcher) Submit(ctx context.Context, videoID int64, segmentSeconds int) (*library.Job, error) {
	if segmentSeconds == 0 {
		segmentSeconds = d.cfg.FFmpeg.DefaultSegmentSeconds
	}
	if segmentSeconds < MinSegmentSeconds || segmentSeconds > MaxSegmentSeconds {
		return nil, services.Wrap(
			services.ErrInvalidArgument,
			dispatcherComponent,
			"submit",
			fmt.Sprintf("segment duration must be between %d and %d seconds, got %d", MinSegmentSeconds, MaxSegmentSeconds, segmentSeconds),
			nil,
		)
	}

	video, err := d.store.GetVideo(ctx, videoID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, dispatcherComponent, "submit", "load video", err)
	}
	if video == nil {
		return nil, services.Wrap(
			services.ErrNotFound,
			dispatcherComponent,
			"submit",
			fmt.Sprintf("video %d does not exist", videoID),
			nil,
		)
	}

	// Refuse work the staging volume cannot hold rather than failing the
	// job midway through the encode.
	if space := preflight.CheckFreeSpace("staging", d.cfg.Paths.StagingDir, d.cfg.Workflow.MinFreeSpaceGiB); !space.Passed {
		return nil, services.Wrap(services.ErrPersistenceFailure, dispatcherComponent, "submit", space.Detail, nil)
	}

	job, err := d.store.CreateJob(ctx, videoID, segmentSeconds)
	if errors.Is(err, library.ErrActiveJobExists) {
		return nil, services.Wrap(
			services.ErrConflict,
			dispatcherComponent,
			"submit",
			fmt.Sprintf("video %d already has an active job", videoID),
			nil,
		)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, dispatcherComponent, "submit", "create job", err)
	}

	if d.wake != nil {
		d.wake(job.ID)
	}
	return job, nil
}
