// Package notifications delivers push notifications for job lifecycle events
// via ntfy.
package notifications
