package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"scribe/internal/config"
)

// WriteFile writes size filler bytes to path, creating parent directories.
// A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteSource places a placeholder media file under the configured local
// storage root and returns the source reference that resolves to it.
func WriteSource(t testing.TB, cfg *config.Config, ref string, size int64) string {
	t.Helper()
	WriteFile(t, filepath.Join(cfg.Storage.LocalRoot, filepath.FromSlash(ref)), size)
	return ref
}
