// Package daemon coordinates the long-running scribed process.
//
// It wires configuration, the job store, and the pipeline orchestrator into a
// single lifecycle with flock-based locking to prevent multiple instances
// from sharing a data directory. At start it fails jobs a previous process
// left in processing so they can be resumed. HTTP triggers are acknowledged
// as soon as the job is claimed; stages then run on background goroutines
// that Stop waits for.
//
// Keep orchestration logic here: the stages themselves live in pipeline and
// its stage packages while the daemon focuses on startup, shutdown, and
// request dispatch.
package daemon
