// Package notifications publishes job outcomes to ntfy.
//
// NewService returns a no-op notifier when no topic is configured, so the
// pipeline can call it unconditionally. Delivery failures are reported to the
// caller, which logs them; they never change a job's state.
package notifications
