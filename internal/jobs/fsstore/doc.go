// Package fsstore implements jobs.Store on Cloud Firestore.
//
// Each job is one document keyed by its identifier. Claim, Update, and
// FailInterrupted run inside Firestore transactions, which gives the same
// single-live-processing-job guarantee the SQLite store gets from its partial
// unique index.
package fsstore
