// Package summary condenses a transcript into a summary with a generative
// provider.
//
// Transcripts longer than the configured input budget are truncated with a
// head-biased split (Truncate). When enabled, the global timestamp list is
// appended to the summary in a versioned, self-describing block that
// DecodeTimestamps can recover; the job's timestamps field remains the
// canonical copy.
package summary
