// Package speechapi calls an OpenAI-compatible /audio/transcriptions endpoint
// as a transcription provider.
package speechapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scribe/internal/config"
	"scribe/internal/transcription"
)

const (
	defaultBaseURL  = "https://api.openai.com/v1"
	defaultModel    = "whisper-1"
	transcribePath  = "/audio/transcriptions"
	verboseJSON     = "verbose_json"
	granularitySegs = "segment"
)

// Config captures connection settings.
type Config struct {
	BaseURL  string
	APIKey   string
	Model    string
	Language string
}

// ConfigFrom maps the [transcription] section onto a client config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:  cfg.Transcription.APIBaseURL,
		APIKey:   cfg.Transcription.APIKey,
		Model:    cfg.Transcription.APIModel,
		Language: cfg.TranscriptionLanguage(),
	}
}

// Client uploads chunks and returns segment-level transcripts.
type Client struct {
	cfg  Config
	http *http.Client
}

// Option customizes a client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient constructs a client. Deadlines come from the caller's context.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	client := &Client{cfg: cfg, http: &http.Client{}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type response struct {
	Text     string    `json:"text"`
	Language string    `json:"language"`
	Duration float64   `json:"duration"`
	Segments []segment `json:"segments"`
}

type segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("speech api: unexpected status %d: %s", e.StatusCode, e.Body)
}

// RetryAfterHint reports the server supplied Retry-After delay.
func (e *StatusError) RetryAfterHint() time.Duration {
	return e.RetryAfter
}

// TranscribeChunk uploads one WAV chunk.
func (c *Client) TranscribeChunk(ctx context.Context, wav []byte, _ int) (transcription.ChunkResult, error) {
	if c.cfg.APIKey == "" {
		return transcription.ChunkResult{}, errors.New("speech api: missing api key")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("model", c.cfg.Model); err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: write model field: %w", err)
	}
	if err := writer.WriteField("response_format", verboseJSON); err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: write format field: %w", err)
	}
	if err := writer.WriteField("timestamp_granularities[]", granularitySegs); err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: write granularity field: %w", err)
	}
	if c.cfg.Language != "" {
		if err := writer.WriteField("language", c.cfg.Language); err != nil {
			return transcription.ChunkResult{}, fmt.Errorf("speech api: write language field: %w", err)
		}
	}
	field, err := writer.CreateFormFile("file", "chunk.wav")
	if err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: create file field: %w", err)
	}
	if _, err := field.Write(wav); err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: copy audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: close multipart writer: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+transcribePath, body)
	if err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: build request: %w", err)
	}
	request.Header.Set("Content-Type", writer.FormDataContentType())
	request.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(request)
	if err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: http request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(payload))}
		if secs, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("Retry-After"))); err == nil && secs > 0 {
			statusErr.RetryAfter = time.Duration(secs) * time.Second
		}
		return transcription.ChunkResult{}, statusErr
	}

	var parsed response
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return transcription.ChunkResult{}, fmt.Errorf("speech api: decode response: %w", err)
	}
	result := transcription.ChunkResult{Text: strings.TrimSpace(parsed.Text)}
	for _, seg := range parsed.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		result.Segments = append(result.Segments, transcription.Segment{StartSeconds: seg.Start, Text: text})
	}
	if len(result.Segments) == 0 && result.Text != "" {
		result.Segments = []transcription.Segment{{StartSeconds: 0, Text: result.Text}}
	}
	return result, nil
}

// Retryable treats rate limits, server errors, timeouts, and network failures
// as transient.
func (c *Client) Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
