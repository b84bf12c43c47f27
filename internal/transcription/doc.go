// Package transcription fans audio chunks out to a transcription provider on a
// bounded worker pool and merges the results, in chunk order, into one
// transcript with a global timestamp list.
package transcription
