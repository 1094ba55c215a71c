package library

import "errors"

// ErrActiveJobExists is returned when a job submission races with an existing
// pending or running job for the same video.
var ErrActiveJobExists = errors.New("active job exists for video")

// ErrVideoNotFound is returned when an operation references a missing video.
var ErrVideoNotFound = errors.New("video not found")
