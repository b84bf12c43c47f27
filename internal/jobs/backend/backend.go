// Package backend opens the job store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"google.golang.org/api/option"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/jobs/fsstore"
)

// Open returns the configured jobs.Store.
func Open(ctx context.Context, cfg *config.Config) (jobs.Store, error) {
	switch cfg.Store.Backend {
	case "", "sqlite":
		store, err := jobs.Open(cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "firestore":
		var opts []option.ClientOption
		if creds := cfg.Storage.GCSCredentialsFile; creds != "" {
			opts = append(opts, option.WithCredentialsFile(creds))
		}
		store, err := fsstore.Open(ctx, cfg.Store.FirestoreProject, cfg.Store.FirestoreCollection, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("store.backend: unsupported value %q", cfg.Store.Backend)
	}
}
