// Package deps reports the availability of external binaries the transcoding
// pipeline shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"hlsforge/internal/config"
)

// Requirement defines an external dependency hlsforge relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements builds the dependency list for the configured encoder tools.
func Requirements(cfg *config.Config) []Requirement {
	ffmpegBinary := cfg.FFmpeg.FFmpegBinary
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	ffprobeBinary := cfg.FFmpeg.FFprobeBinary
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ffmpegBinary,
			Description: "Required for HLS transcoding",
		},
		{
			Name:        "FFprobe",
			Command:     ffprobeBinary,
			Description: "Required for media duration probing",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if resolved, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		} else {
			status.Command = resolved
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}
