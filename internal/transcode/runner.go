package transcode

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"hlsforge/internal/config"
	"hlsforge/internal/library"
	"hlsforge/internal/logging"
	"hlsforge/internal/notifications"
	"hlsforge/internal/progress"
	"hlsforge/internal/segments"
	"hlsforge/internal/services"
	"hlsforge/internal/services/ffmpeg"
)

const runnerComponent = "runner"

// progressPersistStep is the minimum percent delta between database writes.
// The hub still receives every update at the encoder's native granularity.
const progressPersistStep = 1.0

// Runner executes a single transcoding job end to end: scratch workspace,
// encode, output validation, durable publish, and state persistence.
type Runner struct {
	cfg      *config.Config
	store    *library.Store
	encoder  ffmpeg.Client
	hub      *progress.Hub
	writer   *segments.Writer
	notifier notifications.Service
	logger   *slog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(
	cfg *config.Config,
	store *library.Store,
	encoder ffmpeg.Client,
	hub *progress.Hub,
	notifier notifications.Service,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		cfg:      cfg,
		store:    store,
		encoder:  encoder,
		hub:      hub,
		writer:   segments.NewWriter(cfg.Paths.LibraryDir),
		notifier: notifier,
		logger:   logging.WithComponent(logger, runnerComponent),
	}
}

// Run claims and executes the job. A job that is no longer pending is
// treated as claimed by another worker and skipped without error. Every
// failure after the claim is persisted on the job row and published as a
// terminal progress event, and the scratch workspace is removed in all
// outcomes, success, failure, or panic.
func (r *Runner) Run(ctx context.Context, jobID string) error {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return services.Wrap(services.ErrPersistenceFailure, runnerComponent, "run", "load job", err)
	}
	if job == nil || job.Status != library.JobStatusPending {
		return nil
	}
	if err := r.store.StartJob(ctx, jobID); err != nil {
		// Lost the claim race to another worker.
		return nil
	}

	logger := logging.WithJob(r.logger, job.ID, job.VideoID)
	started := time.Now()

	video, runErr := r.loadVideo(ctx, job)
	if runErr == nil {
		runErr = r.execute(ctx, logger, job, video)
	}
	if runErr != nil {
		r.recordFailure(ctx, logger, job, video, runErr)
		return runErr
	}

	logger.Info("transcode completed",
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
		logging.String(logging.FieldEventType, "job_completed"),
	)
	r.publishTerminal(job, 100, false, "")
	if video != nil {
		if err := r.notifier.NotifyJobCompleted(ctx, video.Title, job.ID); err != nil {
			logger.Warn("completion notification failed", logging.Error(err))
		}
	}
	return nil
}

func (r *Runner) loadVideo(ctx context.Context, job *library.Job) (*library.Video, error) {
	video, err := r.store.GetVideo(ctx, job.VideoID)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistenceFailure, runnerComponent, "run", "load video", err)
	}
	if video == nil {
		return nil, services.Wrap(services.ErrNotFound, runnerComponent, "run", "video row missing for job", nil)
	}
	if _, err := os.Stat(video.SourcePath); err != nil {
		return video, services.Wrap(services.ErrEncodingFailure, runnerComponent, "run", "source file unavailable", err)
	}
	return video, nil
}

func (r *Runner) execute(ctx context.Context, logger *slog.Logger, job *library.Job, video *library.Video) error {
	scratchDir := filepath.Join(r.cfg.Paths.StagingDir, "job-"+job.ID)
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return services.Wrap(services.ErrPersistenceFailure, runnerComponent, "run", "create scratch workspace", err)
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			logger.Warn("scratch cleanup failed; stale files may accumulate",
				logging.Error(err),
				logging.String("scratch_dir", scratchDir),
				logging.String(logging.FieldErrorHint, "check staging directory permissions"),
			)
		}
	}()

	logger.Info("transcode started",
		logging.String("source", video.SourcePath),
		logging.Int("segment_seconds", job.SegmentSeconds),
		logging.String(logging.FieldEventType, "job_started"),
	)
	r.publish(job, 0, "starting")

	lastPersisted := 0.0
	_, err := r.encoder.Encode(ctx, ffmpeg.EncodeRequest{
		InputPath:      video.SourcePath,
		OutputDir:      scratchDir,
		SegmentSeconds: job.SegmentSeconds,
	}, func(update ffmpeg.ProgressUpdate) {
		r.publish(job, update.Percent, update.Stage)
		if update.Percent-lastPersisted >= progressPersistStep {
			lastPersisted = update.Percent
			if err := r.store.UpdateJobProgress(ctx, job.ID, update.Percent); err != nil {
				logger.Warn("progress persistence failed", logging.Error(err))
			}
		}
	})
	if err != nil {
		return services.Wrap(services.ErrEncodingFailure, runnerComponent, "run", "ffmpeg encode", err)
	}

	output, err := segments.Collect(scratchDir)
	if err != nil {
		return err
	}

	pub, err := r.writer.Publish(job.VideoID, job.ID, output)
	if err != nil {
		return err
	}
	if err := pub.Install(); err != nil {
		return err
	}

	if err := r.store.CompleteJob(ctx, job.ID, job.VideoID, pub.ManifestPath, pub.Segments); err != nil {
		// The previous publish is still set aside; put it back so the video's
		// library directory matches what the database still records.
		pub.Rollback()
		return services.Wrap(services.ErrPersistenceFailure, runnerComponent, "run", "record completed job", err)
	}
	pub.Commit()

	logger.Info("published hls output",
		logging.String("manifest", pub.ManifestPath),
		logging.Int("segments", len(pub.Segments)),
	)
	return nil
}

func (r *Runner) recordFailure(ctx context.Context, logger *slog.Logger, job *library.Job, video *library.Video, runErr error) {
	message := services.Message(runErr)
	logger.Error("transcode failed",
		logging.Error(runErr),
		logging.String(logging.FieldEventType, "job_failed"),
	)
	if err := r.store.FailJob(ctx, job.ID, message); err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
	}
	r.publishTerminal(job, job.ProgressPercent, true, message)

	title := ""
	if video != nil {
		title = video.Title
	}
	if err := r.notifier.NotifyJobFailed(ctx, title, job.ID, message); err != nil {
		logger.Warn("failure notification failed", logging.Error(err))
	}
}

func (r *Runner) publish(job *library.Job, percent float64, stage string) {
	job.ProgressPercent = percent
	r.hub.Publish(progress.Event{
		JobID:   job.ID,
		VideoID: job.VideoID,
		Percent: percent,
		Stage:   stage,
	})
}

func (r *Runner) publishTerminal(job *library.Job, percent float64, failed bool, message string) {
	r.hub.Publish(progress.Event{
		JobID:        job.ID,
		VideoID:      job.VideoID,
		Percent:      percent,
		Terminal:     true,
		Failed:       failed,
		ErrorMessage: message,
	})
}
