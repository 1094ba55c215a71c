// Package preflight validates the runtime environment before the daemon
// accepts transcoding work.
package preflight
