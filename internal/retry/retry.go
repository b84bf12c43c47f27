// Package retry runs provider calls under a bounded exponential backoff with a
// deadline on every attempt.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scribe/internal/config"
)

// Policy bounds a retried operation.
type Policy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// FromConfig converts a config retry section into a Policy.
func FromConfig(r config.Retry) Policy {
	return Policy{
		MaxAttempts:    r.MaxAttempts,
		AttemptTimeout: r.AttemptTimeout(),
		InitialBackoff: r.InitialBackoff(),
		MaxBackoff:     r.MaxBackoff(),
	}
}

// Notify is called after a failed attempt that will be retried.
type Notify func(attempt int, err error, wait time.Duration)

// Classifier reports whether err is worth another attempt.
type Classifier func(error) bool

// Option customizes a single Do call.
type Option func(*options)

type options struct {
	notify    Notify
	retryable Classifier
}

// WithNotify registers a callback for retried failures.
func WithNotify(fn Notify) Option {
	return func(o *options) { o.notify = fn }
}

// WithClassifier overrides which errors are retried. By default every error is.
func WithClassifier(fn Classifier) Option {
	return func(o *options) { o.retryable = fn }
}

// ClassifierOf uses v's own Retryable method when it has one.
func ClassifierOf(v any) Option {
	if c, ok := v.(interface{ Retryable(error) bool }); ok {
		return WithClassifier(c.Retryable)
	}
	return func(*options) {}
}

// retryAfterHint is implemented by errors that carry a server supplied delay.
type retryAfterHint interface {
	RetryAfterHint() time.Duration
}

// Do runs op until it succeeds, returns a non-retryable error, the parent
// context ends, or MaxAttempts is reached. Each attempt gets its own
// AttemptTimeout deadline. It returns the number of attempts made. When the
// parent context ends between attempts, the returned error wraps both the
// last attempt's error and the context error.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context, attempt int) error, opts ...Option) (int, error) {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	expo := backoff.NewExponentialBackOff()
	if policy.InitialBackoff > 0 {
		expo.InitialInterval = policy.InitialBackoff
	}
	if policy.MaxBackoff > 0 {
		expo.MaxInterval = policy.MaxBackoff
	}
	expo.MaxElapsedTime = 0

	hinted := &hintedBackOff{inner: expo, max: expo.MaxInterval}
	policyBackOff := backoff.WithContext(backoff.WithMaxRetries(hinted, uint64(policy.MaxAttempts-1)), ctx)

	attempts := 0
	var lastErr error
	operation := func() error {
		attempts++
		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if policy.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
		}
		defer cancel()

		err := op(attemptCtx, attempts)
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		if cfg.retryable != nil && !cfg.retryable(err) {
			return backoff.Permanent(err)
		}
		hinted.observe(err)
		return err
	}
	notify := func(err error, wait time.Duration) {
		if cfg.notify != nil {
			cfg.notify(attempts, err, wait)
		}
	}

	err := backoff.RetryNotify(operation, policyBackOff, notify)
	if err != nil && lastErr != nil && err != lastErr && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = fmt.Errorf("%w (retry stopped: %w)", lastErr, err)
	}
	return attempts, err
}

// hintedBackOff stretches the next delay to honour a Retry-After hint, never
// past max.
type hintedBackOff struct {
	inner backoff.BackOff
	max   time.Duration
	hint  time.Duration
}

func (h *hintedBackOff) observe(err error) {
	var hinted retryAfterHint
	if errors.As(err, &hinted) {
		h.hint = hinted.RetryAfterHint()
		return
	}
	h.hint = 0
}

func (h *hintedBackOff) NextBackOff() time.Duration {
	next := h.inner.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	hint := h.hint
	if h.max > 0 && hint > h.max {
		hint = h.max
	}
	if hint > next {
		return hint
	}
	return next
}

func (h *hintedBackOff) Reset() {
	h.hint = 0
	h.inner.Reset()
}
