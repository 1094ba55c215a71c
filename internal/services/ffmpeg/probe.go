package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Probe returns the container duration of the input reported by ffprobe.
func (c *CLI) Probe(ctx context.Context, inputPath string) (time.Duration, error) {
	if inputPath == "" {
		return 0, errors.New("input path required")
	}

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	}
	cmd := commandContext(ctx, c.ffprobe, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", inputPath, err)
	}

	return parseProbeDuration(string(output))
}

func parseProbeDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "N/A" {
		return 0, errors.New("ffprobe reported no duration")
	}
	seconds, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", trimmed, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("non-positive duration %v", seconds)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
