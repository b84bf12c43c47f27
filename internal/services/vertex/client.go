// Package vertex generates text with Gemini models on Vertex AI.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"scribe/internal/config"
)

var errEmptyResponse = errors.New("vertex: empty response")

// Client wraps a genai client bound to one model.
type Client struct {
	base  *genai.Client
	model string
}

// NewClient connects to Vertex AI in project/region.
func NewClient(ctx context.Context, project, region, model string, opts ...option.ClientOption) (*Client, error) {
	if project == "" || region == "" {
		return nil, errors.New("vertex: project and region are required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("vertex: model is required")
	}
	base, err := genai.NewClient(ctx, project, region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &Client{base: base, model: model}, nil
}

// NewFromConfig builds a client from the [vertex] section.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Client, error) {
	var opts []option.ClientOption
	if creds := cfg.Storage.GCSCredentialsFile; creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return NewClient(ctx, cfg.Vertex.Project, cfg.Vertex.Region, cfg.Vertex.Model, opts...)
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate sends one request with system as the system instruction.
func (c *Client) Generate(ctx context.Context, system, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("vertex: prompt required")
	}
	model := c.base.GenerativeModel(c.model)
	if system = strings.TrimSpace(system); system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	model.SetTemperature(0.2)

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex: generate content: %w", err)
	}
	text := extractText(resp)
	if text == "" {
		return "", errEmptyResponse
	}
	return text, nil
}

// Retryable treats throttling, unavailability, timeouts, and empty
// candidates as transient.
func (c *Client) Retryable(err error) bool {
	return Retryable(err)
}

// Retryable reports whether err is worth another attempt.
func Retryable(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, errEmptyResponse), errors.Is(err, context.DeadlineExceeded):
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal, codes.Aborted:
			return true
		}
	}
	return false
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}
