package main

import (
	"context"
	"log/slog"

	"hlsforge/internal/config"
	"hlsforge/internal/daemon"
	"hlsforge/internal/library"
	"hlsforge/internal/logging"
	"hlsforge/internal/notifications"
	"hlsforge/internal/preflight"
	"hlsforge/internal/progress"
	"hlsforge/internal/services/ffmpeg"
	"hlsforge/internal/transcode"
)

// buildDaemon assembles the daemon from configuration: library store,
// progress hub, encoder client, worker pool, and notifier.
func buildDaemon(cfg *config.Config, logger *slog.Logger) (*daemon.Daemon, error) {
	store, err := library.Open(cfg)
	if err != nil {
		return nil, err
	}

	encoder := ffmpeg.NewCLI(
		ffmpeg.WithFFmpegBinary(cfg.FFmpeg.FFmpegBinary),
		ffmpeg.WithFFprobeBinary(cfg.FFmpeg.FFprobeBinary),
	)

	hub := progress.NewHub()
	notifier := notifications.NewService(cfg)
	runner := transcode.NewRunner(cfg, store, encoder, hub, notifier, logger)
	manager := transcode.NewManager(cfg, store, runner, logger)

	d, err := daemon.New(cfg, store, logger, manager, hub)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return d, nil
}

// reportPreflight logs the outcome of environment checks. Failures are
// warnings only; the daemon still starts so the API stays reachable while
// the operator fixes the environment.
func reportPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	if preflight.Passed(results) {
		logger.Info("preflight checks passed", logging.Int("checks", len(results)))
	}
}
