package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// Local resolves filesystem paths. Relative paths are joined to Root when set.
type Local struct {
	Root string
}

// Resolve implements Resolver.
func (l Local) Resolve(ctx context.Context, ref string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("resolve %s: is a directory", path)
	}
	return &Object{Ref: ref, LocalPath: path, Size: info.Size()}, nil
}

func (l Local) path(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("resolve: empty reference")
	}
	if strings.HasPrefix(strings.ToLower(ref), "file://") {
		parsed, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("parse %q: %w", ref, err)
		}
		ref = parsed.Path
	}
	if !filepath.IsAbs(ref) && l.Root != "" {
		ref = filepath.Join(l.Root, ref)
	}
	abs, err := filepath.Abs(filepath.Clean(ref))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", ref, err)
	}
	return abs, nil
}
