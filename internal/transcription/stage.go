package transcription

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"scribe/internal/audio"
	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/retry"
	"scribe/internal/services"
)

// ChunkSource serves chunks by index. audio.Prepared satisfies it.
type ChunkSource interface {
	Len() int
	Chunk(i int) (audio.Chunk, error)
}

// Result is the merged output of every chunk.
type Result struct {
	Transcript string
	Timestamps []jobs.Timestamp
}

// Stage transcribes chunk sources.
type Stage struct {
	provider Provider
	workers  int
	policy   retry.Policy
	logger   *slog.Logger
}

// NewStage builds a stage using the [transcription] worker and retry settings.
func NewStage(provider Provider, cfg *config.Config, logger *slog.Logger) *Stage {
	workers := cfg.Transcription.Workers
	if workers < 1 {
		workers = 1
	}
	return &Stage{
		provider: provider,
		workers:  workers,
		policy:   retry.FromConfig(cfg.Transcription.Retry),
		logger:   logging.NewComponentLogger(logger, "transcription"),
	}
}

type chunkOutput struct {
	text       string
	timestamps []jobs.Timestamp
}

// Transcribe submits every chunk and merges the results in index order. The
// first chunk to exhaust its retries cancels the rest and is returned as a
// transcription error.
func (s *Stage) Transcribe(ctx context.Context, chunks ChunkSource) (Result, error) {
	n := chunks.Len()
	if n == 0 {
		return Result{}, services.Wrap(services.ErrTranscription, "transcribe", "transcribe chunks", "no chunks to transcribe", nil)
	}
	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()

	outputs := make([]chunkOutput, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := s.transcribeChunk(gctx, logger, chunks, i)
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if !errors.Is(err, services.ErrTranscription) {
			err = services.Wrap(services.ErrTranscription, "transcribe", "transcribe chunks", "", err)
		}
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, services.Wrap(services.ErrTranscription, "transcribe", "transcribe chunks", "", err)
	}

	result := merge(outputs)
	if result.Transcript == "" {
		logger.Warn("transcript is empty",
			logging.String(logging.FieldEventType, "empty_transcript"),
			logging.Int("chunks", n),
		)
	}
	logger.Info("transcription complete",
		logging.Int("chunks", n),
		logging.Int("segments", len(result.Timestamps)),
		logging.Int("characters", len(result.Transcript)),
		logging.Elapsed(time.Since(started)),
	)
	return result, nil
}

func (s *Stage) transcribeChunk(ctx context.Context, logger *slog.Logger, chunks ChunkSource, i int) (chunkOutput, error) {
	chunk, err := chunks.Chunk(i)
	if err != nil {
		return chunkOutput{}, services.Transcription(i, 0, err)
	}
	var res ChunkResult
	attempts, err := retry.Do(ctx, s.policy, func(actx context.Context, _ int) error {
		r, err := s.provider.TranscribeChunk(actx, chunk.Data, chunk.SampleRate)
		if err != nil {
			return err
		}
		res = r
		return nil
	},
		retry.ClassifierOf(s.provider),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			logger.Warn("chunk transcription failed; retrying",
				logging.Chunk(i),
				logging.Int(logging.FieldAttempt, attempt),
				logging.Duration("wait", wait),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		return chunkOutput{}, services.Transcription(i, attempts, err)
	}
	logger.Debug("chunk transcribed",
		logging.Chunk(i),
		logging.Int(logging.FieldAttempt, attempts),
		logging.Int("segments", len(res.Segments)),
	)
	return rebase(chunk, res), nil
}

// rebase shifts chunk-local segment offsets onto the source timeline.
func rebase(chunk audio.Chunk, res ChunkResult) chunkOutput {
	length := chunk.EndSeconds - chunk.StartSeconds
	out := chunkOutput{timestamps: make([]jobs.Timestamp, 0, len(res.Segments))}
	texts := make([]string, 0, len(res.Segments))
	for _, seg := range res.Segments {
		text := cleanText(seg.Text)
		if text == "" {
			continue
		}
		local := seg.StartSeconds
		if local < 0 {
			local = 0
		}
		if length > 0 && local > length {
			local = length
		}
		out.timestamps = append(out.timestamps, jobs.Timestamp{OffsetSeconds: chunk.StartSeconds + local, Text: text})
		texts = append(texts, text)
	}
	out.text = cleanText(res.Text)
	if out.text == "" {
		out.text = strings.Join(texts, " ")
	}
	return out
}

// merge concatenates chunk outputs in index order. Offsets are clamped so the
// list never decreases even if a provider reorders segments within a chunk.
func merge(outputs []chunkOutput) Result {
	var result Result
	texts := make([]string, 0, len(outputs))
	last := 0.0
	for _, out := range outputs {
		if out.text != "" {
			texts = append(texts, out.text)
		}
		for _, ts := range out.timestamps {
			if ts.OffsetSeconds < last {
				ts.OffsetSeconds = last
			}
			last = ts.OffsetSeconds
			result.Timestamps = append(result.Timestamps, ts)
		}
	}
	result.Transcript = strings.Join(texts, " ")
	if result.Timestamps == nil {
		result.Timestamps = []jobs.Timestamp{}
	}
	return result
}

func cleanText(value string) string {
	return strings.Join(strings.Fields(norm.NFC.String(value)), " ")
}
