// Package llm provides an OpenRouter-compatible chat completion client used
// as a generative text provider for summaries and articles.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.Generate: send system/user prompts, receive free-form text. A reply
// wrapped in a single fenced block is unwrapped.
// Client.HealthCheck: verify API key and model availability.
// Client.Retryable: classify a Generate error for the caller's retry policy.
//
// # Retry Behaviour
//
// Generate performs exactly one HTTP request. Callers own the retry loop;
// Retryable reports HTTP 408/429/5xx, network failures, and empty completions
// as transient. Errors carrying a Retry-After header expose it through
// RetryAfterHint so backoff can honour the server's delay.
package llm
