// Package preflight provides readiness checks for the filesystem paths and
// external providers scribe depends on.
//
// The daemon runs the directory checks at startup and reports them from
// GET /api/status. "scribe status --check-providers" additionally probes the
// configured transcription and generation providers. Each check is gated by
// the provider selection in config; unselected providers are skipped.
package preflight
