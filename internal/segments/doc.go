// Package segments validates encoder output and publishes HLS manifests and
// media segments into the durable library tree.
package segments
