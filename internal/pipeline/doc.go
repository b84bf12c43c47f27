// Package pipeline drives a job through its four stages.
//
// The Orchestrator claims a job in the store (superseding any other live run
// for the same source), then runs prepare, transcribe, summarize, and article
// in order, persisting each artifact as soon as its stage succeeds. A stage
// failure moves the job to error with the step recorded so a later retry can
// resume from persisted artifacts. Every write is guarded on the run counter,
// so a superseded run stops at its next write instead of clobbering the newer
// one.
package pipeline
