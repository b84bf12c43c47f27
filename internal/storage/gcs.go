package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GCS resolves gs://bucket/object references.
type GCS struct {
	client *storage.Client
}

// NewGCS creates a Cloud Storage client. Credentials come from opts or the
// application default chain.
func NewGCS(ctx context.Context, opts ...option.ClientOption) (*GCS, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCS{client: client}, nil
}

// Resolve opens a streaming reader for the object.
func (g *GCS) Resolve(ctx context.Context, ref string) (*Object, error) {
	bucket, name, err := ParseGSRef(ref)
	if err != nil {
		return nil, err
	}
	reader, err := g.client.Bucket(bucket).Object(name).NewReader(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return &Object{
		Ref:         ref,
		Body:        reader,
		Size:        reader.Attrs.Size,
		ContentType: reader.Attrs.ContentType,
	}, nil
}

// Close releases the storage client.
func (g *GCS) Close() error {
	return g.client.Close()
}

// ParseGSRef splits gs://bucket/object into its parts.
func ParseGSRef(ref string) (string, string, error) {
	ref = strings.TrimSpace(ref)
	rest, ok := strings.CutPrefix(ref, "gs://")
	if !ok {
		return "", "", fmt.Errorf("parse %q: not a gs:// reference", ref)
	}
	bucket, name, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || strings.Trim(name, "/") == "" {
		return "", "", fmt.Errorf("parse %q: want gs://bucket/object", ref)
	}
	return bucket, name, nil
}

func isNotFound(err error) bool {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return true
	}
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
