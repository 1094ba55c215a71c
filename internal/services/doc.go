// Package services defines the shared error taxonomy used across the
// transcoding pipeline and the clients that wrap external tools.
package services
