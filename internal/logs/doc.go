// Package logs reads back scribe.log for the CLI.
//
// Tail returns the last N matching lines, or the lines appended after a byte
// offset, optionally waiting for new output. Lines can be filtered to a single
// job; both the JSON and console log formats carry the job_id field.
package logs
