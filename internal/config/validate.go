package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate reports configuration values that would prevent the daemon from
// operating correctly.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.MediaDir) == "" {
		problems = append(problems, "paths.media_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LibraryDir) == "" {
		problems = append(problems, "paths.library_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StagingDir) == "" {
		problems = append(problems, "paths.staging_dir must be set")
	}
	if strings.TrimSpace(c.FFmpeg.FFmpegBinary) == "" {
		problems = append(problems, "ffmpeg.ffmpeg_binary must be set")
	}
	if strings.TrimSpace(c.FFmpeg.FFprobeBinary) == "" {
		problems = append(problems, "ffmpeg.ffprobe_binary must be set")
	}
	if c.FFmpeg.DefaultSegmentSeconds < 1 || c.FFmpeg.DefaultSegmentSeconds > 60 {
		problems = append(problems, fmt.Sprintf("ffmpeg.default_segment_seconds must be between 1 and 60, got %d", c.FFmpeg.DefaultSegmentSeconds))
	}
	if c.Workflow.WorkerCount < 1 {
		problems = append(problems, fmt.Sprintf("workflow.worker_count must be at least 1, got %d", c.Workflow.WorkerCount))
	}
	if c.Workflow.QueueDepth < 1 {
		problems = append(problems, fmt.Sprintf("workflow.queue_depth must be at least 1, got %d", c.Workflow.QueueDepth))
	}
	if c.Workflow.MinFreeSpaceGiB < 0 {
		problems = append(problems, "workflow.min_free_space_gib must not be negative")
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
