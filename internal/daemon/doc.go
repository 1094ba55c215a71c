// Package daemon wires the library store, transcode manager, progress hub,
// and HTTP API into a single-instance background service.
package daemon
