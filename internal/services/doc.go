// Package services defines shared utilities consumed by the pipeline stages
// and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - The failure taxonomy: sentinel markers (ErrInvalidMedia,
//     ErrTranscription, ...) plus PipelineError, which carries the chunk
//     index, attempt count, and tool diagnostics attached to a failure.
//   - Details, which flattens any error into fields for structured logs.
//
// Provider clients live in subpackages (llm, vertex, whisperx, speechapi).
// Use the constructors here when a stage fails so the orchestrator can
// record a consistent error message on the job.
package services
