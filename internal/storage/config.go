package storage

import (
	"context"

	"google.golang.org/api/option"

	"scribe/internal/config"
)

// NewFromConfig builds the router for the configured backends.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Router, error) {
	router := NewRouter()
	router.Handle("file", Local{Root: cfg.Storage.LocalRoot})
	if cfg.Storage.GCSEnabled {
		var opts []option.ClientOption
		if creds := cfg.Storage.GCSCredentialsFile; creds != "" {
			opts = append(opts, option.WithCredentialsFile(creds))
		}
		gcs, err := NewGCS(ctx, opts...)
		if err != nil {
			return nil, err
		}
		router.Handle("gs", gcs)
	}
	return router, nil
}
