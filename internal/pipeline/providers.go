package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"scribe/internal/article"
	"scribe/internal/audio"
	"scribe/internal/config"
	"scribe/internal/generate"
	"scribe/internal/jobs"
	"scribe/internal/media/command"
	"scribe/internal/notifications"
	"scribe/internal/services"
	"scribe/internal/services/speechapi"
	"scribe/internal/services/whisperx"
	"scribe/internal/storage"
	"scribe/internal/summary"
	"scribe/internal/transcription"
)

// NewTranscriptionProvider builds the provider selected by transcription.provider.
func NewTranscriptionProvider(cfg *config.Config) (transcription.Provider, error) {
	switch strings.ToLower(cfg.Transcription.Provider) {
	case "whisperx":
		return whisperx.NewService(whisperx.ConfigFrom(cfg), nil), nil
	case "api":
		if strings.TrimSpace(cfg.Transcription.APIKey) == "" {
			return nil, services.Wrap(services.ErrConfiguration, "", "build transcription provider", "transcription.api_key is not set", nil)
		}
		return speechapi.NewClient(speechapi.ConfigFrom(cfg)), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "build transcription provider", fmt.Sprintf("unknown provider %q", cfg.Transcription.Provider), nil)
	}
}

// NewFromConfig wires the production stages: storage router, ffmpeg-backed
// preparer, and the configured transcription and generation providers. The
// returned Orchestrator owns those resources; release them with Close.
func NewFromConfig(ctx context.Context, cfg *config.Config, store jobs.Store, logger *slog.Logger) (*Orchestrator, error) {
	router, err := storage.NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "", "build storage", "", err)
	}
	transcriber, err := NewTranscriptionProvider(cfg)
	if err != nil {
		_ = router.Close()
		return nil, err
	}
	generator, err := generate.New(ctx, cfg)
	if err != nil {
		_ = router.Close()
		return nil, err
	}

	orch := New(store, StageSet{
		Preparer:    audio.NewPreparer(cfg, router, command.Logged(command.Exec{}, logger), logger),
		Transcriber: transcription.NewStage(transcriber, cfg, logger),
		Summarizer:  summary.NewStage(generator, cfg, logger),
		Articles:    article.NewStage(generator, cfg, logger),
	}, logger)
	orch.SetNotifier(notifications.NewService(cfg))
	orch.closers = append(orch.closers, router)
	if closer, ok := generator.(io.Closer); ok {
		orch.closers = append(orch.closers, closer)
	}
	return orch, nil
}

// Close releases resources acquired by NewFromConfig.
func (o *Orchestrator) Close() error {
	var errs []error
	for _, c := range o.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	o.closers = nil
	return errors.Join(errs...)
}
