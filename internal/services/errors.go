package services

import (
	"errors"
	"fmt"
	"strings"
)

// Pipeline failure markers. Every error produced by a stage matches exactly
// one of these through errors.Is.
var (
	ErrInvalidMedia        = errors.New("invalid media")
	ErrMediaProcessing     = errors.New("media processing failed")
	ErrTranscription       = errors.New("transcription failed")
	ErrSummarization       = errors.New("summarization failed")
	ErrArticleGeneration   = errors.New("article generation failed")
	ErrMissingPrerequisite = errors.New("missing prerequisite")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrConfiguration       = errors.New("configuration error")
	ErrProviderUnavailable = errors.New("provider unavailable")

	errUnclassifiedFailure = errors.New("pipeline failure")
)

const noChunk = -1

// PipelineError carries the diagnostic context attached to a classified failure.
type PipelineError struct {
	Marker     error
	Stage      string
	Operation  string
	Message    string
	ChunkIndex int
	Attempts   int
	Diagnostic string
	Err        error
}

func (e *PipelineError) Error() string {
	var b strings.Builder
	b.WriteString(e.marker().Error())
	if detail := buildDetail(e.Stage, e.Operation, e.Message); detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	if e.ChunkIndex >= 0 {
		fmt.Fprintf(&b, " (chunk %d)", e.ChunkIndex)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&b, " after %d attempt(s)", e.Attempts)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if diag := strings.TrimSpace(e.Diagnostic); diag != "" {
		b.WriteString(" [")
		b.WriteString(truncateDiagnostic(diag))
		b.WriteString("]")
	}
	return b.String()
}

// Unwrap exposes both the marker and the underlying cause.
func (e *PipelineError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.marker()}
	}
	return []error{e.marker(), e.Err}
}

func (e *PipelineError) marker() error {
	if e == nil || e.Marker == nil {
		return errUnclassifiedFailure
	}
	return e.Marker
}

// Kind returns a short snake_case label for the marker, used in logs and API payloads.
func (e *PipelineError) Kind() string {
	return kindOf(e.marker())
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker. The marker should be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	return &PipelineError{
		Marker:     marker,
		Stage:      strings.TrimSpace(stage),
		Operation:  strings.TrimSpace(operation),
		Message:    strings.TrimSpace(message),
		ChunkIndex: noChunk,
		Err:        err,
	}
}

// InvalidMedia reports input that can never be processed; the pipeline does not retry it.
func InvalidMedia(operation, message string, err error) error {
	return Wrap(ErrInvalidMedia, "prepare", operation, message, err)
}

// MediaProcessing reports an external tool failure that persisted past its retry.
func MediaProcessing(operation, diagnostic string, attempts int, err error) error {
	return &PipelineError{
		Marker:     ErrMediaProcessing,
		Stage:      "prepare",
		Operation:  operation,
		ChunkIndex: noChunk,
		Attempts:   attempts,
		Diagnostic: diagnostic,
		Err:        err,
	}
}

// Transcription reports a chunk whose provider calls were exhausted.
func Transcription(chunkIndex, attempts int, err error) error {
	return &PipelineError{
		Marker:     ErrTranscription,
		Stage:      "transcribe",
		Operation:  "transcribe chunk",
		ChunkIndex: chunkIndex,
		Attempts:   attempts,
		Err:        err,
	}
}

// Summarization reports exhausted summary generation attempts.
func Summarization(attempts int, err error) error {
	return &PipelineError{
		Marker:     ErrSummarization,
		Stage:      "summarize",
		Operation:  "generate summary",
		ChunkIndex: noChunk,
		Attempts:   attempts,
		Err:        err,
	}
}

// ArticleGeneration reports exhausted article generation attempts.
func ArticleGeneration(attempts int, err error) error {
	return &PipelineError{
		Marker:     ErrArticleGeneration,
		Stage:      "article",
		Operation:  "generate article",
		ChunkIndex: noChunk,
		Attempts:   attempts,
		Err:        err,
	}
}

// MissingPrerequisite reports a retry request whose input artifact is absent.
func MissingPrerequisite(step int, artifact string) error {
	return &PipelineError{
		Marker:     ErrMissingPrerequisite,
		Operation:  "retry",
		Message:    fmt.Sprintf("step %d requires %s", step, artifact),
		ChunkIndex: noChunk,
	}
}

// ConcurrencyConflict reports a lost compare-and-swap against the job store.
func ConcurrencyConflict(operation, message string) error {
	return Wrap(ErrConcurrencyConflict, "", operation, message, nil)
}

// ErrorDetails is the structured view of a failure used for logging.
type ErrorDetails struct {
	Kind       string
	Stage      string
	Operation  string
	Message    string
	ChunkIndex int
	Attempts   int
	Hint       string
	Cause      string
}

// Details extracts structured information from err. Unclassified errors report kind "unknown".
func Details(err error) ErrorDetails {
	details := ErrorDetails{Kind: "unknown", ChunkIndex: noChunk}
	if err == nil {
		return details
	}
	details.Cause = err.Error()
	var pe *PipelineError
	if errors.As(err, &pe) {
		details.Kind = pe.Kind()
		details.Stage = pe.Stage
		details.Operation = pe.Operation
		details.Message = pe.Message
		details.ChunkIndex = pe.ChunkIndex
		details.Attempts = pe.Attempts
		if pe.Err != nil {
			details.Cause = pe.Err.Error()
		}
	}
	details.Hint = hintFor(err)
	return details
}

// IsRetryable reports whether a caller may usefully retry the failed step later.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidMedia), errors.Is(err, ErrMissingPrerequisite), errors.Is(err, ErrConfiguration):
		return false
	default:
		return true
	}
}

func kindOf(marker error) string {
	switch {
	case errors.Is(marker, ErrInvalidMedia):
		return "invalid_media"
	case errors.Is(marker, ErrMediaProcessing):
		return "media_processing"
	case errors.Is(marker, ErrTranscription):
		return "transcription"
	case errors.Is(marker, ErrSummarization):
		return "summarization"
	case errors.Is(marker, ErrArticleGeneration):
		return "article_generation"
	case errors.Is(marker, ErrMissingPrerequisite):
		return "missing_prerequisite"
	case errors.Is(marker, ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(marker, ErrConfiguration):
		return "configuration"
	case errors.Is(marker, ErrProviderUnavailable):
		return "provider_unavailable"
	default:
		return "unknown"
	}
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMedia):
		return "check that the source exists and contains an audio track"
	case errors.Is(err, ErrMediaProcessing):
		return "inspect the ffmpeg diagnostic; retry from step 1 once resolved"
	case errors.Is(err, ErrTranscription):
		return "retry from step 2 once the transcription provider is reachable"
	case errors.Is(err, ErrSummarization):
		return "retry from step 3 once the generative provider is reachable"
	case errors.Is(err, ErrArticleGeneration):
		return "retry from step 4 once the generative provider is reachable"
	case errors.Is(err, ErrMissingPrerequisite):
		return "retry from an earlier step"
	case errors.Is(err, ErrConfiguration):
		return "fix the configuration file"
	default:
		return ""
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	return strings.Join(parts, ": ")
}

func truncateDiagnostic(value string) string {
	const limit = 512
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return value
}
