package testsupport

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"scribe/internal/media/command"
)

// FakeMedia stands in for ffprobe and ffmpeg. Normalization writes
// DurationSeconds of s16le PCM in which every sample holds its whole-second
// offset, so tests can check which part of the timeline a chunk covers.
type FakeMedia struct {
	DurationSeconds float64
	SampleRate      int
	Video           bool
	NoAudio         bool
	Unreadable      bool
	// FFmpegFailures makes the first N ffmpeg invocations exit non-zero.
	FFmpegFailures int

	mu    sync.Mutex
	calls [][]string
}

// Run implements command.Runner.
func (f *FakeMedia) Run(ctx context.Context, name string, args ...string) (command.Result, error) {
	if err := ctx.Err(); err != nil {
		return command.Result{}, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	fail := false
	if strings.Contains(filepath.Base(name), "ffmpeg") && f.FFmpegFailures > 0 {
		f.FFmpegFailures--
		fail = true
	}
	f.mu.Unlock()

	switch base := filepath.Base(name); {
	case strings.Contains(base, "ffprobe"):
		return f.probe()
	case strings.Contains(base, "ffmpeg"):
		if fail {
			return command.Result{Stderr: []byte("Conversion failed!"), ExitCode: 1}, errors.New("exit status 1")
		}
		return f.transcode(args)
	default:
		return command.Result{ExitCode: 127}, fmt.Errorf("unexpected command %q", name)
	}
}

// Calls returns the argv of every invocation in order.
func (f *FakeMedia) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

// CountCalls counts invocations whose binary name contains fragment.
func (f *FakeMedia) CountCalls(fragment string) int {
	n := 0
	for _, call := range f.Calls() {
		if strings.Contains(filepath.Base(call[0]), fragment) {
			n++
		}
	}
	return n
}

func (f *FakeMedia) probe() (command.Result, error) {
	if f.Unreadable {
		return command.Result{Stderr: []byte("Invalid data found when processing input"), ExitCode: 1}, errors.New("exit status 1")
	}
	streams := []map[string]any{}
	if f.Video {
		streams = append(streams, map[string]any{"index": len(streams), "codec_type": "video", "codec_name": "h264"})
	}
	if !f.NoAudio {
		streams = append(streams, map[string]any{"index": len(streams), "codec_type": "audio", "codec_name": "aac", "channels": 2, "sample_rate": "44100"})
	}
	payload := map[string]any{
		"streams": streams,
		"format": map[string]any{
			"nb_streams":  len(streams),
			"duration":    fmt.Sprintf("%.3f", f.DurationSeconds),
			"format_name": "mov,mp4",
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return command.Result{}, err
	}
	return command.Result{Stdout: data}, nil
}

func (f *FakeMedia) transcode(args []string) (command.Result, error) {
	if len(args) == 0 {
		return command.Result{ExitCode: 1}, errors.New("no output path")
	}
	dest := args[len(args)-1]
	if !strings.HasSuffix(dest, ".pcm") {
		return command.Result{}, os.WriteFile(dest, []byte("audio"), 0o644)
	}
	rate := f.SampleRate
	if rate <= 0 {
		rate = 16000
	}
	samples := int(math.Round(f.DurationSeconds * float64(rate)))
	buf := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(i/rate))
	}
	return command.Result{}, os.WriteFile(dest, buf, 0o644)
}
