package ffmpeg

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// scanProgress consumes ffmpeg's -progress key=value stream and emits
// monotonically increasing percentages against the probed duration. The
// stream terminates with progress=end on success.
func scanProgress(r io.Reader, total time.Duration, progress func(ProgressUpdate)) error {
	scanner := bufio.NewScanner(r)
	var lastPercent float64
	for scanner.Scan() {
		update, ok := parseProgressLine(scanner.Text(), total)
		if !ok {
			continue
		}
		if update.Percent < lastPercent {
			update.Percent = lastPercent
		}
		lastPercent = update.Percent
		if progress != nil {
			progress(update)
		}
	}
	return scanner.Err()
}

// parseProgressLine interprets a single line of ffmpeg progress output.
// Only out_time_us and the end-of-stream marker produce updates.
func parseProgressLine(line string, total time.Duration) (ProgressUpdate, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return ProgressUpdate{}, false
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us":
		micros, err := strconv.ParseInt(value, 10, 64)
		if err != nil || micros < 0 {
			return ProgressUpdate{}, false
		}
		return ProgressUpdate{Percent: percentOf(time.Duration(micros)*time.Microsecond, total), Stage: "encoding"}, true
	case "progress":
		if value == "end" {
			return ProgressUpdate{Percent: 100, Stage: "finished"}, true
		}
	}
	return ProgressUpdate{}, false
}

func percentOf(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	percent := float64(elapsed) / float64(total) * 100
	if percent > 100 {
		return 100
	}
	if percent < 0 {
		return 0
	}
	return percent
}
