// Package article expands a summary into a long-form article.
package article

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"scribe/internal/config"
	"scribe/internal/generate"
	"scribe/internal/logging"
	"scribe/internal/retry"
	"scribe/internal/services"
	"scribe/internal/summary"
)

// SystemPrompt frames the article request.
const SystemPrompt = `You are an editor turning talk summaries into readable articles.
Write a well-structured Markdown article with a title, an introduction, sections with headings, and a short conclusion.
Stay faithful to the source material; do not invent facts, quotes, or statistics.
Write in the language of the summary.`

// Stage produces articles.
type Stage struct {
	provider          generate.Provider
	policy            retry.Policy
	maxChars          int
	includeTranscript bool
	logger            *slog.Logger
}

// NewStage builds a stage from the [generation] settings.
func NewStage(provider generate.Provider, cfg *config.Config, logger *slog.Logger) *Stage {
	return &Stage{
		provider:          provider,
		policy:            retry.FromConfig(cfg.Generation.Retry),
		maxChars:          cfg.Generation.MaxInputChars,
		includeTranscript: cfg.Generation.IncludeTranscript,
		logger:            logging.NewComponentLogger(logger, "article"),
	}
}

// Generate writes an article from summary. The transcript is added as
// supporting context when configured and available.
func (s *Stage) Generate(ctx context.Context, summaryText string, transcript *string) (string, error) {
	body := strings.TrimSpace(summary.Body(summaryText))
	if body == "" {
		return "", services.ArticleGeneration(0, errors.New("summary is empty"))
	}

	var prompt strings.Builder
	prompt.WriteString("Write an article based on this summary.\n\nSummary:\n")
	prompt.WriteString(body)
	if s.includeTranscript && transcript != nil && strings.TrimSpace(*transcript) != "" {
		excerpt, _ := summary.Truncate(*transcript, s.maxChars)
		prompt.WriteString("\n\nTranscript (for reference):\n")
		prompt.WriteString(excerpt)
	}

	text, attempts, err := generate.Run(ctx, s.provider, s.policy, s.logger, SystemPrompt, prompt.String())
	if err != nil {
		return "", services.ArticleGeneration(attempts, err)
	}
	logging.WithContext(ctx, s.logger).Info("article generated",
		logging.Int(logging.FieldAttempt, attempts),
		logging.Int("characters", len(text)),
	)
	return text, nil
}
