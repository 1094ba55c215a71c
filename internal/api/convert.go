package api

import (
	"hlsforge/internal/library"
	"hlsforge/internal/progress"
)

// FromVideo converts a library record to its API representation.
func FromVideo(video *library.Video) Video {
	if video == nil {
		return Video{}
	}
	dto := Video{
		ID:           video.ID,
		Title:        video.Title,
		SourcePath:   video.SourcePath,
		ManifestPath: video.ManifestPath,
		State:        string(video.State),
	}
	if !video.CreatedAt.IsZero() {
		dto.CreatedAt = video.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !video.UpdatedAt.IsZero() {
		dto.UpdatedAt = video.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromVideos converts a slice of library records into API DTOs.
func FromVideos(videos []*library.Video) []Video {
	if len(videos) == 0 {
		return nil
	}
	out := make([]Video, 0, len(videos))
	for _, video := range videos {
		out = append(out, FromVideo(video))
	}
	return out
}

// FromJob converts a job record to its API representation.
func FromJob(job *library.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:              job.ID,
		VideoID:         job.VideoID,
		SegmentSeconds:  job.SegmentSeconds,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		ErrorMessage:    job.ErrorMessage,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if job.StartedAt != nil {
		dto.StartedAt = job.StartedAt.UTC().Format(dateTimeFormat)
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = job.FinishedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(jobs []*library.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// FromProgressEvent converts a hub event into its wire representation.
func FromProgressEvent(evt progress.Event) ProgressEvent {
	dto := ProgressEvent{
		JobID:        evt.JobID,
		VideoID:      evt.VideoID,
		Percent:      evt.Percent,
		Stage:        evt.Stage,
		Terminal:     evt.Terminal,
		Failed:       evt.Failed,
		ErrorMessage: evt.ErrorMessage,
	}
	if !evt.Timestamp.IsZero() {
		dto.Timestamp = evt.Timestamp.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromHealth converts aggregate job counts into the status payload form.
func FromHealth(health library.HealthSummary) JobCounts {
	return JobCounts{
		Total:     health.Total,
		Pending:   health.Pending,
		Running:   health.Running,
		Completed: health.Completed,
		Failed:    health.Failed,
	}
}
