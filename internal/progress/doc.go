// Package progress fans incremental transcoding updates out to per-job
// subscribers without ever blocking the publishing job runner.
package progress
