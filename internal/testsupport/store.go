package testsupport

import (
	"context"
	"testing"

	"scribe/internal/config"
	"scribe/internal/jobs"
)

// MustOpenStore opens a SQLite job store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobs.SQLiteStore {
	t.Helper()

	store, err := jobs.Open(cfg)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates an uploaded job for tests using the provided store.
func NewJob(t testing.TB, store jobs.Store, sourceRef string) *jobs.Job {
	t.Helper()

	job, err := store.Create(context.Background(), sourceRef)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return job
}
