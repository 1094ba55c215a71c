package library

import (
	"strings"
	"time"
)

// VideoState represents the HLS lifecycle of a video.
type VideoState string

const (
	VideoStatePending  VideoState = "pending"
	VideoStateComplete VideoState = "complete"
)

// JobStatus represents the lifecycle of a transcoding job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// DaemonStopReason is the error message set on jobs failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusRunning,
	JobStatusCompleted,
	JobStatusFailed,
}

var jobStatusSet = func() map[JobStatus]struct{} {
	set := make(map[JobStatus]struct{}, len(allJobStatuses))
	for _, status := range allJobStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllJobStatuses returns the ordered list of known job statuses.
func AllJobStatuses() []JobStatus {
	cp := make([]JobStatus, len(allJobStatuses))
	copy(cp, allJobStatuses)
	return cp
}

// ParseJobStatus converts a string into a known JobStatus.
func ParseJobStatus(value string) (JobStatus, bool) {
	normalized := JobStatus(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := jobStatusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a job status is final.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsActive reports whether a job status occupies the per-video slot.
func (s JobStatus) IsActive() bool {
	return s == JobStatusPending || s == JobStatusRunning
}

// Video represents a source media asset persisted in SQLite.
type Video struct {
	ID           int64
	Title        string
	SourcePath   string
	ManifestPath string
	State        VideoState
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasManifest reports whether HLS output exists for the video.
func (v Video) HasManifest() bool {
	return v.State == VideoStateComplete && v.ManifestPath != ""
}

// Job represents one transcoding attempt for a video.
type Job struct {
	ID              string
	VideoID         int64
	SegmentSeconds  int
	Status          JobStatus
	ProgressPercent float64
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
}

// Segment is one HLS media chunk belonging to a video.
type Segment struct {
	ID       int64
	VideoID  int64
	Index    int
	FilePath string
}

// SegmentFile pairs an ordinal with the durable path it was persisted to.
// Used when recording a completed job's output in a single transaction.
type SegmentFile struct {
	Index    int
	FilePath string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
}
