package preflight

import (
	"context"
	"strings"

	"scribe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// RunAll executes the filesystem checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
	}
	if root := strings.TrimSpace(cfg.Storage.LocalRoot); root != "" {
		results = append(results, CheckDirectoryAccess("Media root", root))
	}
	return results
}

// CheckProviders probes the providers selected by config.
func CheckProviders(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	switch strings.ToLower(cfg.Transcription.Provider) {
	case "api":
		results = append(results, CheckSpeechAPI(ctx, cfg.Transcription.APIBaseURL, cfg.Transcription.APIKey))
	case "whisperx":
		results = append(results, Result{Name: "Transcription", Passed: true, Detail: "local WhisperX (" + cfg.Transcription.WhisperXModel + ")"})
	}

	switch strings.ToLower(cfg.Generation.Provider) {
	case "llm":
		results = append(results, CheckLLM(ctx, "Generation LLM", cfg))
	case "vertex":
		results = append(results, CheckVertex(cfg))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
