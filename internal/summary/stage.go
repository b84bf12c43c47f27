package summary

import (
	"context"
	"log/slog"

	"scribe/internal/config"
	"scribe/internal/generate"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/retry"
	"scribe/internal/services"
)

// Stage produces summaries.
type Stage struct {
	provider generate.Provider
	policy   retry.Policy
	maxChars int
	embed    bool
	logger   *slog.Logger
}

// NewStage builds a stage from the [generation] settings.
func NewStage(provider generate.Provider, cfg *config.Config, logger *slog.Logger) *Stage {
	return &Stage{
		provider: provider,
		policy:   retry.FromConfig(cfg.Generation.Retry),
		maxChars: cfg.Generation.MaxInputChars,
		embed:    cfg.Generation.EmbedTimestamps,
		logger:   logging.NewComponentLogger(logger, "summary"),
	}
}

// Summarize returns the summary text, with the timestamp block appended when
// embedding is enabled.
func (s *Stage) Summarize(ctx context.Context, transcript string, timestamps []jobs.Timestamp) (string, error) {
	logger := logging.WithContext(ctx, s.logger)
	input, truncated := Truncate(transcript, s.maxChars)
	if truncated {
		logger.Warn("transcript truncated for summarization",
			logging.Int("original_chars", len([]rune(transcript))),
			logging.Int("max_chars", s.maxChars),
		)
	}

	text, attempts, err := generate.Run(ctx, s.provider, s.policy, s.logger, SystemPrompt, userPromptPrefix+input)
	if err != nil {
		return "", services.Summarization(attempts, err)
	}
	if s.embed {
		text, err = EmbedTimestamps(text, timestamps)
		if err != nil {
			return "", services.Summarization(attempts, err)
		}
	}
	logger.Info("summary generated",
		logging.Int(logging.FieldAttempt, attempts),
		logging.Int("characters", len(text)),
		logging.Bool("truncated", truncated),
	)
	return text, nil
}
