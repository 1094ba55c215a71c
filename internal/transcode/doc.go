// Package transcode coordinates HLS transcoding jobs: submission with
// per-video mutual exclusion, a bounded worker pool, and job execution with
// guaranteed scratch-space cleanup.
package transcode
