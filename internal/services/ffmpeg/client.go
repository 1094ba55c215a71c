package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// ManifestName is the fixed playlist filename written into the output directory.
const ManifestName = "output.m3u8"

// SegmentPrefix is the fixed filename prefix for media segments.
const SegmentPrefix = "output"

// ProgressUpdate captures an incremental encoding progress event.
type ProgressUpdate struct {
	Percent float64
	Stage   string
}

// EncodeRequest describes one HLS transcoding run.
type EncodeRequest struct {
	InputPath      string
	OutputDir      string
	SegmentSeconds int
}

// Client defines ffmpeg transcoding behaviour.
type Client interface {
	Probe(ctx context.Context, inputPath string) (time.Duration, error)
	Encode(ctx context.Context, req EncodeRequest, progress func(ProgressUpdate)) (string, error)
}

// Option configures the CLI client.
type Option func(*CLI)

// WithFFmpegBinary overrides the default ffmpeg binary name.
func WithFFmpegBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.ffmpeg = binary
		}
	}
}

// WithFFprobeBinary overrides the default ffprobe binary name.
func WithFFprobeBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.ffprobe = binary
		}
	}
}

// CLI wraps the ffmpeg and ffprobe command-line tools.
type CLI struct {
	ffmpeg  string
	ffprobe string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{ffmpeg: "ffmpeg", ffprobe: "ffprobe"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Encode launches ffmpeg in HLS mode and returns the manifest path inside
// the output directory. Progress is parsed from ffmpeg's machine-readable
// progress stream on stdout and reported relative to the probed duration.
func (c *CLI) Encode(ctx context.Context, req EncodeRequest, progress func(ProgressUpdate)) (string, error) {
	if req.InputPath == "" {
		return "", errors.New("input path required")
	}
	cleanOutputDir := strings.TrimSpace(req.OutputDir)
	if cleanOutputDir == "" {
		return "", errors.New("output directory required")
	}
	if req.SegmentSeconds <= 0 {
		return "", fmt.Errorf("segment seconds must be positive, got %d", req.SegmentSeconds)
	}

	duration, err := c.Probe(ctx, req.InputPath)
	if err != nil {
		return "", err
	}

	manifestPath := filepath.Join(cleanOutputDir, ManifestName)
	segmentPattern := filepath.Join(cleanOutputDir, SegmentPrefix+"%d.ts")

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", req.InputPath,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", req.SegmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", segmentPattern,
		"-progress", "pipe:1",
		manifestPath,
	}

	cmd := commandContext(ctx, c.ffmpeg, args...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start ffmpeg: %w", err)
	}

	if err := scanProgress(stdout, duration, progress); err != nil {
		_ = cmd.Wait()
		return "", fmt.Errorf("read ffmpeg output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return "", fmt.Errorf("ffmpeg encode failed: %w: %s", err, lastLine(detail))
		}
		return "", fmt.Errorf("ffmpeg encode failed: %w", err)
	}

	return manifestPath, nil
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ Client = (*CLI)(nil)
