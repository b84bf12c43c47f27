package logging

import (
	"context"
	"log/slog"

	"scribe/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID is the standardized structured logging key for job identifiers.
	FieldJobID = "job_id"
	// FieldStage is the standardized structured logging key for pipeline stage names.
	FieldStage = "stage"
	// FieldSourceRef is the storage locator of the media being processed.
	FieldSourceRef = "source_ref"
	// FieldChunkIndex is the zero-based audio chunk index.
	FieldChunkIndex = "chunk_index"
	// FieldAttempt is the 1-based provider attempt number.
	FieldAttempt = "attempt"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies notable log lines (stage_complete, job_superseded, ...).
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next operator action for a failure.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}

// FailureAttrs flattens a pipeline failure into log attributes.
func FailureAttrs(err error) []Attr {
	details := services.Details(err)
	attrs := []Attr{
		String("error_kind", details.Kind),
		String("error_message", details.Cause),
	}
	if details.Operation != "" {
		attrs = append(attrs, String("error_operation", details.Operation))
	}
	if details.ChunkIndex >= 0 {
		attrs = append(attrs, Int(FieldChunkIndex, details.ChunkIndex))
	}
	if details.Attempts > 0 {
		attrs = append(attrs, Int("attempts", details.Attempts))
	}
	if details.Hint != "" {
		attrs = append(attrs, String(FieldErrorHint, details.Hint))
	}
	return attrs
}
