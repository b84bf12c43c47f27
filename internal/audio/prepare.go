package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/media/command"
	"scribe/internal/media/ffprobe"
	"scribe/internal/services"
	"scribe/internal/storage"
)

const ffmpegAttempts = 2

// Preparer resolves, probes, and normalizes source media.
type Preparer struct {
	ffmpeg       string
	workDir      string
	sampleRate   int
	chunkSeconds float64
	minFreeBytes uint64

	resolver storage.Resolver
	prober   ffprobe.Prober
	runner   command.Runner
	logger   *slog.Logger
}

// NewPreparer builds a Preparer. A nil runner executes real binaries.
func NewPreparer(cfg *config.Config, resolver storage.Resolver, runner command.Runner, logger *slog.Logger) *Preparer {
	if runner == nil {
		runner = command.Exec{}
	}
	return &Preparer{
		ffmpeg:       cfg.Audio.FFmpegBinary,
		workDir:      cfg.Paths.WorkDir,
		sampleRate:   cfg.Audio.SampleRate,
		chunkSeconds: cfg.ChunkDuration().Seconds(),
		minFreeBytes: uint64(cfg.Audio.MinFreeMiB) << 20,
		resolver:     resolver,
		prober:       ffprobe.Prober{Binary: cfg.Audio.FFprobeBinary, Runner: runner},
		runner:       runner,
		logger:       logging.NewComponentLogger(logger, "audio"),
	}
}

// Prepare normalizes the source and plans chunks of the configured length.
func (p *Preparer) Prepare(ctx context.Context, sourceRef string) (*Prepared, error) {
	return p.PrepareWithPlan(ctx, sourceRef, nil)
}

// PrepareWithPlan normalizes the source and slices it with plan. An empty
// plan is computed from the normalized duration.
func (p *Preparer) PrepareWithPlan(ctx context.Context, sourceRef string, plan []Bounds) (prepared *Prepared, err error) {
	if len(plan) > 0 {
		if err := ValidatePlan(plan, 0); err != nil {
			return nil, services.InvalidMedia("load chunk plan", "persisted plan is unusable", err)
		}
	}
	if err := os.MkdirAll(p.workDir, 0o755); err != nil {
		return nil, services.MediaProcessing("create workspace", "", 1, err)
	}
	dir, err := os.MkdirTemp(p.workDir, "prepare-")
	if err != nil {
		return nil, services.MediaProcessing("create workspace", "", 1, err)
	}
	defer func() {
		if err != nil {
			_ = os.RemoveAll(dir)
		}
	}()

	source, err := p.fetch(ctx, sourceRef, dir)
	if err != nil {
		return nil, err
	}

	probe, err := p.prober.Inspect(ctx, source)
	if err != nil {
		if errors.Is(err, ffprobe.ErrProbeFailed) {
			return nil, services.InvalidMedia("probe source", "unreadable media", err)
		}
		return nil, services.MediaProcessing("probe source", "", 1, err)
	}
	if probe.AudioStreamCount() == 0 {
		return nil, services.InvalidMedia("probe source", "no audio stream", nil)
	}
	if probe.DurationSeconds() <= 0 {
		return nil, services.InvalidMedia("probe source", "zero duration", nil)
	}

	input := source
	if probe.HasVideo() {
		input = filepath.Join(dir, "audio.mka")
		args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", source, "-map", "0:a:0", "-vn", "-c:a", "copy", input}
		if err := p.runFFmpeg(ctx, "extract audio track", args); err != nil {
			return nil, err
		}
	}

	if err := p.checkFreeSpace(dir, probe.DurationSeconds()); err != nil {
		return nil, err
	}

	pcmPath := filepath.Join(dir, "audio.pcm")
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", input,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", strconv.Itoa(p.sampleRate),
		"-f", "s16le",
		"-c:a", "pcm_s16le",
		pcmPath,
	}
	if err := p.runFFmpeg(ctx, "normalize audio", args); err != nil {
		return nil, err
	}

	file, err := os.Open(pcmPath)
	if err != nil {
		return nil, services.MediaProcessing("normalize audio", "", 1, err)
	}
	defer func() {
		if err != nil {
			_ = file.Close()
		}
	}()
	info, err := file.Stat()
	if err != nil {
		return nil, services.MediaProcessing("normalize audio", "", 1, err)
	}
	samples := info.Size() / bytesPerSample
	if samples == 0 {
		return nil, services.InvalidMedia("normalize audio", "no samples after normalization", nil)
	}
	duration := float64(samples) / float64(p.sampleRate)

	if len(plan) == 0 {
		plan, err = PlanChunks(duration, p.chunkSeconds)
		if err != nil {
			return nil, services.InvalidMedia("plan chunks", "", err)
		}
	} else {
		plan = append([]Bounds(nil), plan...)
	}

	p.logger.Info("audio prepared",
		logging.String(logging.FieldSourceRef, sourceRef),
		logging.Float64("duration_seconds", duration),
		logging.Int("chunks", len(plan)),
		logging.Bool("extracted", probe.HasVideo()),
	)
	return &Prepared{dir: dir, pcm: file, samples: samples, sampleRate: p.sampleRate, plan: plan}, nil
}

// fetch returns a local path for the source, streaming remote objects into dir.
func (p *Preparer) fetch(ctx context.Context, sourceRef, dir string) (string, error) {
	obj, err := p.resolver.Resolve(ctx, sourceRef)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", services.InvalidMedia("resolve source", "object not found", err)
		}
		return "", services.MediaProcessing("resolve source", "", 1, err)
	}
	defer obj.Close()
	if obj.Body == nil {
		return obj.LocalPath, nil
	}

	dest := filepath.Join(dir, "source"+sourceExt(sourceRef))
	out, err := os.Create(dest)
	if err != nil {
		return "", services.MediaProcessing("download source", "", 1, err)
	}
	if _, err := io.Copy(out, obj.Body); err != nil {
		_ = out.Close()
		return "", services.MediaProcessing("download source", "", 1, err)
	}
	if err := out.Close(); err != nil {
		return "", services.MediaProcessing("download source", "", 1, err)
	}
	return dest, nil
}

// runFFmpeg retries a failed invocation once with identical arguments.
func (p *Preparer) runFFmpeg(ctx context.Context, operation string, args []string) error {
	var (
		res command.Result
		err error
	)
	for attempt := 1; attempt <= ffmpegAttempts; attempt++ {
		res, err = p.runner.Run(ctx, p.ffmpeg, args...)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return services.MediaProcessing(operation, res.Diagnostic(), attempt, ctx.Err())
		}
		p.logger.Warn("ffmpeg failed",
			logging.String("operation", operation),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(err),
		)
	}
	return services.MediaProcessing(operation, res.Diagnostic(), ffmpegAttempts, err)
}

func (p *Preparer) checkFreeSpace(dir string, durationSeconds float64) error {
	need := uint64(durationSeconds*float64(p.sampleRate)*bytesPerSample) + p.minFreeBytes
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return services.MediaProcessing("check free space", "", 1, err)
	}
	avail := st.Bavail * uint64(st.Bsize)
	if avail < need {
		msg := fmt.Sprintf("need %d bytes in %s, %d available", need, dir, avail)
		return services.MediaProcessing("check free space", msg, 1, errors.New("insufficient disk space"))
	}
	return nil
}

func sourceExt(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		ref = ref[:i]
	}
	ext := filepath.Ext(ref)
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return ext
}
