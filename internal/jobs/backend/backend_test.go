package backend_test

import (
	"context"
	"testing"

	"scribe/internal/jobs"
	"scribe/internal/jobs/backend"
	"scribe/internal/testsupport"
)

func TestOpenDefaultsToSQLite(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := backend.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, ok := store.(*jobs.SQLiteStore); !ok {
		t.Fatalf("expected SQLite store, got %T", store)
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Store.Backend = "mongo"
	if _, err := backend.Open(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
