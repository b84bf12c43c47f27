// Package jobs defines the persisted job record and the store that holds it.
//
// A job tracks one source reference through the four pipeline steps. The
// record carries every artifact produced so far so a failed run can be
// retried from any step without recomputing earlier output. Store
// implementations guarantee that at most one live job per source is in
// processing: Claim supersedes older processing jobs (soft-delete plus error)
// in the same atomic write that claims the new one, and Update accepts
// ExpectStatus/ExpectRun guards so a superseded run cannot overwrite newer
// state.
//
// SQLiteStore is the default backend (WAL mode, busy retry, a partial unique
// index as the last line of enforcement). The fsstore subpackage provides a
// Firestore backend; backend.Open chooses between them from configuration.
package jobs
