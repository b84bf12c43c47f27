// Package generate selects the generative-text provider used by the summary
// and article stages.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/retry"
	"scribe/internal/services"
	"scribe/internal/services/llm"
	"scribe/internal/services/vertex"
)

// Provider produces text from a system instruction and a prompt. One call is
// one attempt; callers own retries and deadlines.
type Provider interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// HealthChecker is implemented by providers with a cheap liveness probe.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// New builds the configured provider. Vertex clients hold a connection and
// implement io.Closer.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch strings.ToLower(cfg.Generation.Provider) {
	case "llm":
		if cfg.LLM.APIKey == "" {
			return nil, services.Wrap(services.ErrConfiguration, "", "build generation provider", "llm.api_key is not set", nil)
		}
		return llm.NewClient(llm.ConfigFrom(cfg)), nil
	case "vertex":
		client, err := vertex.NewFromConfig(ctx, cfg)
		if err != nil {
			return nil, services.Wrap(services.ErrProviderUnavailable, "", "build generation provider", "vertex", err)
		}
		return client, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "", "build generation provider", fmt.Sprintf("unknown provider %q", cfg.Generation.Provider), nil)
	}
}

var errEmptyOutput = errors.New("provider returned empty text")

// Run calls provider under policy and returns the trimmed text and the number
// of attempts made.
func Run(ctx context.Context, provider Provider, policy retry.Policy, logger *slog.Logger, system, prompt string) (string, int, error) {
	var text string
	attempts, err := retry.Do(ctx, policy, func(actx context.Context, _ int) error {
		out, err := provider.Generate(actx, system, prompt)
		if err != nil {
			return err
		}
		out = strings.TrimSpace(out)
		if out == "" {
			return errEmptyOutput
		}
		text = out
		return nil
	},
		retry.WithClassifier(func(err error) bool {
			if errors.Is(err, errEmptyOutput) {
				return true
			}
			if c, ok := provider.(interface{ Retryable(error) bool }); ok {
				return c.Retryable(err)
			}
			return true
		}),
		retry.WithNotify(func(attempt int, err error, wait time.Duration) {
			logging.WithContext(ctx, logger).Warn("generation failed; retrying",
				logging.Int(logging.FieldAttempt, attempt),
				logging.Duration("wait", wait),
				logging.Error(err),
			)
		}),
	)
	return text, attempts, err
}
