// Package library manages persistence for videos, transcoding jobs, and HLS
// segments backed by SQLite.
package library
