package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Video describes a library video in a transport-friendly format.
type Video struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	SourcePath   string `json:"sourcePath"`
	ManifestPath string `json:"manifestPath,omitempty"`
	State        string `json:"state"`
	SegmentCount int    `json:"segmentCount,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	UpdatedAt    string `json:"updatedAt,omitempty"`
}

// Job describes a transcoding job in a transport-friendly format.
type Job struct {
	ID              string  `json:"id"`
	VideoID         int64   `json:"videoId"`
	SegmentSeconds  int     `json:"segmentSeconds"`
	Status          string  `json:"status"`
	ProgressPercent float64 `json:"progressPercent"`
	ErrorMessage    string  `json:"errorMessage,omitempty"`
	CreatedAt       string  `json:"createdAt,omitempty"`
	UpdatedAt       string  `json:"updatedAt,omitempty"`
	StartedAt       string  `json:"startedAt,omitempty"`
	FinishedAt      string  `json:"finishedAt,omitempty"`
}

// ProgressEvent is the wire form of a job progress update delivered over the
// websocket stream.
type ProgressEvent struct {
	JobID        string  `json:"jobId"`
	VideoID      int64   `json:"videoId"`
	Percent      float64 `json:"percent"`
	Stage        string  `json:"stage,omitempty"`
	Terminal     bool    `json:"terminal"`
	Failed       bool    `json:"failed,omitempty"`
	ErrorMessage string  `json:"error,omitempty"`
	Timestamp    string  `json:"ts,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// JobCounts aggregates job totals per lifecycle state.
type JobCounts struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running       bool               `json:"running"`
	PID           int                `json:"pid"`
	LibraryDBPath string             `json:"libraryDbPath"`
	LockFilePath  string             `json:"lockFilePath"`
	Jobs          JobCounts          `json:"jobs"`
	Dependencies  []DependencyStatus `json:"dependencies"`
}

// VideoListResponse wraps a collection of videos for API responses.
type VideoListResponse struct {
	Videos []Video `json:"videos"`
}

// VideoResponse wraps a single video.
type VideoResponse struct {
	Video Video `json:"video"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// SubmitJobRequest is the body accepted when enqueueing a transcode.
type SubmitJobRequest struct {
	SegmentSeconds int `json:"segmentSeconds,omitempty"`
}

// SubmitJobResponse acknowledges an accepted transcode request.
type SubmitJobResponse struct {
	JobID string `json:"jobId"`
}

// AddVideoRequest is the body accepted when registering a source video.
type AddVideoRequest struct {
	Title      string `json:"title,omitempty"`
	SourcePath string `json:"sourcePath"`
}

// ManifestPendingResponse is returned when a manifest is requested for a
// video that has no completed HLS output yet. When the request triggered a
// new transcode, JobID identifies it.
type ManifestPendingResponse struct {
	Error string `json:"error"`
	JobID string `json:"jobId,omitempty"`
}

// ErrorResponse carries a machine-readable failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}
