// Package storage resolves source references into readable media.
//
// Plain paths and file:// URLs resolve on the local filesystem; gs://bucket/object
// references resolve through Cloud Storage. Missing objects report ErrNotFound
// regardless of backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// ErrNotFound indicates the referenced object does not exist.
var ErrNotFound = errors.New("object not found")

// Object is a resolved source. Local objects carry LocalPath and no Body;
// remote objects carry a Body the caller must close.
type Object struct {
	Ref         string
	LocalPath   string
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Close releases the object's body, if any.
func (o *Object) Close() error {
	if o == nil || o.Body == nil {
		return nil
	}
	return o.Body.Close()
}

// Resolver opens a source reference.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (*Object, error)
}

// Router dispatches references to a resolver by URL scheme. References
// without a scheme use the "file" resolver.
type Router struct {
	resolvers map[string]Resolver
	closers   []io.Closer
}

// NewRouter builds an empty router.
func NewRouter() *Router {
	return &Router{resolvers: map[string]Resolver{}}
}

// Handle registers resolver for scheme.
func (r *Router) Handle(scheme string, resolver Resolver) {
	r.resolvers[strings.ToLower(scheme)] = resolver
	if closer, ok := resolver.(io.Closer); ok {
		r.closers = append(r.closers, closer)
	}
}

// Resolve implements Resolver.
func (r *Router) Resolve(ctx context.Context, ref string) (*Object, error) {
	scheme := Scheme(ref)
	resolver, ok := r.resolvers[scheme]
	if !ok {
		return nil, fmt.Errorf("resolve %q: no resolver for scheme %q", ref, scheme)
	}
	return resolver.Resolve(ctx, ref)
}

// Close releases any resolver that holds a client.
func (r *Router) Close() error {
	var errs []error
	for _, closer := range r.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// Scheme returns the lower-cased URL scheme of ref, or "file" when it has none.
func Scheme(ref string) string {
	ref = strings.TrimSpace(ref)
	idx := strings.Index(ref, "://")
	if idx <= 0 {
		return "file"
	}
	parsed, err := url.Parse(ref)
	if err != nil || parsed.Scheme == "" {
		return "file"
	}
	return strings.ToLower(parsed.Scheme)
}
