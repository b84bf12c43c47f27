package ffprobe

import (
	"context"
	"errors"
	"testing"

	"scribe/internal/media/command"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Disposition: Disposition{AttachedPic: 1}},
			{CodecType: "audio", Duration: "61.5"},
			{CodecType: "audio"},
		},
		Format: Format{Size: "1000"},
	}
	if result.HasVideo() {
		t.Fatal("cover art must not count as video")
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.AudioStreamCount() != 2 {
		t.Fatalf("expected 2 audio streams, got %d", result.AudioStreamCount())
	}
	if result.DurationSeconds() != 61.5 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 1000 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}

	result.Streams = append(result.Streams, Stream{CodecType: "video"})
	if !result.HasVideo() {
		t.Fatal("expected real video stream to be detected")
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if result.DurationSeconds() != 0 {
		t.Fatalf("expected duration 0, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestProberParsesRunnerOutput(t *testing.T) {
	var gotArgs []string
	runner := command.RunnerFunc(func(_ context.Context, name string, args ...string) (command.Result, error) {
		if name != "ffprobe-custom" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		return command.Result{Stdout: []byte(`{"streams":[{"index":0,"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"650.0"}}`)}, nil
	})
	result, err := Prober{Binary: "ffprobe-custom", Runner: runner}.Inspect(context.Background(), "/media/talk.m4a")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.DurationSeconds() != 650 || result.AudioStreamCount() != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if gotArgs[len(gotArgs)-1] != "/media/talk.m4a" || gotArgs[len(gotArgs)-2] != "--" {
		t.Fatalf("path must follow --, got %v", gotArgs)
	}
}

func TestProberWrapsFailures(t *testing.T) {
	runner := command.RunnerFunc(func(context.Context, string, ...string) (command.Result, error) {
		return command.Result{Stderr: []byte("Invalid data found when processing input"), ExitCode: 1}, errors.New("exit status 1")
	})
	_, err := Prober{Runner: runner}.Inspect(context.Background(), "/tmp/x")
	if !errors.Is(err, ErrProbeFailed) {
		t.Fatalf("expected ErrProbeFailed, got %v", err)
	}
}
