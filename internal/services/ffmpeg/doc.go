// Package ffmpeg wraps the ffmpeg and ffprobe command-line tools for HLS
// transcoding with incremental progress reporting.
package ffmpeg
