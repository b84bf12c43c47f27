// Package logging assembles structured slog loggers and formatting helpers used
// across scribe.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so stage code tags log lines
// with job IDs, stages, and correlation IDs. The "auto" format picks the
// console handler on a terminal and JSON otherwise. A no-op logger is
// provided for tests and wiring code that cannot fail.
package logging
