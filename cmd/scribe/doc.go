// Command scribe runs and inspects transcription jobs.
//
// Pipeline commands (start, retry, resume) run in-process against the job
// store, so they work with or without scribed running. Because claims are
// transactional, a CLI run and a daemon run for the same source supersede
// each other like any two triggers would.
package main
