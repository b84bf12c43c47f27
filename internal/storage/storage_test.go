package storage_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/storage"
	"scribe/internal/testsupport"
)

func TestLocalResolvesRelativeAndFileURL(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "talks", "keynote.mp3")
	testsupport.WriteFile(t, path, 2048)

	local := storage.Local{Root: root}
	obj, err := local.Resolve(context.Background(), "talks/keynote.mp3")
	if err != nil {
		t.Fatalf("Resolve relative: %v", err)
	}
	if obj.LocalPath != path || obj.Size != 2048 || obj.Body != nil {
		t.Fatalf("unexpected object %+v", obj)
	}

	obj, err = local.Resolve(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("Resolve file URL: %v", err)
	}
	if obj.LocalPath != path {
		t.Fatalf("unexpected path %q", obj.LocalPath)
	}
}

func TestLocalMissingAndDirectory(t *testing.T) {
	root := t.TempDir()
	local := storage.Local{Root: root}
	if _, err := local.Resolve(context.Background(), "missing.wav"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := local.Resolve(context.Background(), root); err == nil || errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected directory error, got %v", err)
	}
}

func TestParseGSRef(t *testing.T) {
	bucket, name, err := storage.ParseGSRef("gs://media-in/uploads/2026/talk.mp4")
	if err != nil {
		t.Fatalf("ParseGSRef: %v", err)
	}
	if bucket != "media-in" || name != "uploads/2026/talk.mp4" {
		t.Fatalf("unexpected parts %q %q", bucket, name)
	}
	for _, bad := range []string{"gs://bucket", "gs:///obj", "s3://b/o", "gs://bucket/"} {
		if _, _, err := storage.ParseGSRef(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

type fakeResolver struct{ body string }

func (f fakeResolver) Resolve(_ context.Context, ref string) (*storage.Object, error) {
	return &storage.Object{Ref: ref, Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestRouterDispatchesByScheme(t *testing.T) {
	router := storage.NewRouter()
	router.Handle("gs", fakeResolver{body: "remote"})
	router.Handle("file", storage.Local{Root: t.TempDir()})

	obj, err := router.Resolve(context.Background(), "gs://b/o.wav")
	if err != nil {
		t.Fatalf("Resolve gs: %v", err)
	}
	defer obj.Close()
	data, _ := io.ReadAll(obj.Body)
	if string(data) != "remote" {
		t.Fatalf("unexpected body %q", data)
	}

	if _, err := router.Resolve(context.Background(), "local.wav"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected local miss, got %v", err)
	}
	if _, err := router.Resolve(context.Background(), "s3://b/o"); err == nil {
		t.Fatal("expected unknown scheme error")
	}
	if err := router.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestScheme(t *testing.T) {
	cases := map[string]string{
		"/abs/path.mp3":   "file",
		"rel/path.mp3":    "file",
		"file:///a/b.mp3": "file",
		"GS://b/o":        "gs",
		"C:/media/x.wav":  "file",
	}
	for ref, want := range cases {
		if got := storage.Scheme(ref); got != want {
			t.Fatalf("Scheme(%q) = %q, want %q", ref, got, want)
		}
	}
}
