package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionHandler(t *testing.T, choice map[string]any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{"choices": []any{choice}}
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func TestClientGenerateSendsPrompts(t *testing.T) {
	var got chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if title := r.Header.Get("X-Title"); title != "scribe" {
			t.Errorf("unexpected title header %q", title)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		completionHandler(t, map[string]any{"message": map[string]any{"content": "  A short summary.  "}})(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model", Title: "scribe"})
	text, err := client.Generate(context.Background(), "You summarize talks.", "transcript text")
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if text != "A short summary." {
		t.Fatalf("unexpected text %q", text)
	}
	if got.Model != "demo-model" || len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "transcript text" {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.MaxTokens != 0 {
		t.Fatalf("generation must not cap output tokens, got %d", got.MaxTokens)
	}
}

func TestClientGenerateRequiresKeyAndPrompt(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Generate(context.Background(), "sys", "prompt"); err == nil {
		t.Fatal("expected missing key error")
	}
	client = NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	if _, err := client.Generate(context.Background(), "sys", "   "); err == nil {
		t.Fatal("expected missing prompt error")
	}
}

func TestClientGenerateFallbackFields(t *testing.T) {
	cases := map[string]map[string]any{
		"delta":  {"delta": map[string]any{"content": "from delta"}},
		"legacy": {"finish_reason": "stop", "text": "from text"},
	}
	for name, choice := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(completionHandler(t, choice))
			defer server.Close()
			client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
			text, err := client.Generate(context.Background(), "", "prompt")
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if !strings.HasPrefix(text, "from ") {
				t.Fatalf("unexpected text %q", text)
			}
		})
	}
}

func TestClientGenerateEmptyContentIsRetryable(t *testing.T) {
	server := httptest.NewServer(completionHandler(t, map[string]any{
		"finish_reason": "length",
		"message":       map[string]any{"content": ""},
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), "", "prompt")
	if err == nil {
		t.Fatal("expected empty content error")
	}
	if !strings.Contains(err.Error(), "empty content") || !strings.Contains(err.Error(), "response_snippet=") {
		t.Fatalf("expected snippet in error, got %v", err)
	}
	if !client.Retryable(err) {
		t.Fatal("empty content should be retryable")
	}
}

func TestClientStatusErrors(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusRequestTimeout, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}
	for _, tc := range cases {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "3")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":"nope"}`))
		}))
		client := NewClient(Config{APIKey: "test", BaseURL: server.URL})
		_, err := client.Generate(context.Background(), "", "prompt")
		server.Close()
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if Retryable(err) != tc.retryable {
			t.Fatalf("status %d: retryable = %v, want %v", tc.status, !tc.retryable, tc.retryable)
		}
		var hinted interface{ RetryAfterHint() time.Duration }
		if !errors.As(err, &hinted) || hinted.RetryAfterHint() != 3*time.Second {
			t.Fatalf("status %d: expected 3s retry hint", tc.status)
		}
	}
}

func TestRetryableClassification(t *testing.T) {
	if Retryable(nil) {
		t.Fatal("nil is not retryable")
	}
	if Retryable(context.Canceled) {
		t.Fatal("cancellation is not retryable")
	}
	if !Retryable(context.DeadlineExceeded) {
		t.Fatal("attempt timeout should be retryable")
	}
}

func TestClientHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxTokens == 0 {
			t.Errorf("health check should cap tokens")
		}
		completionHandler(t, map[string]any{"message": map[string]any{"content": "OK"}})(w, r)
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "test", BaseURL: server.URL, Model: "demo-model"})
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
}

func TestClientHealthCheckFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "bad", BaseURL: server.URL, Model: "demo"})
	if err := client.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail")
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain text", "plain text"},
		{"```markdown\n# Title\n\nBody\n```", "# Title\n\nBody"},
		{"```\nsummary\n```", "summary"},
		{"```not a fence``` trailing", "```not a fence``` trailing"},
		{"Intro\n```go\ncode\n```", "Intro\n```go\ncode\n```"},
	}
	for _, tc := range cases {
		if got := StripCodeFence(tc.in); got != tc.want {
			t.Errorf("StripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
