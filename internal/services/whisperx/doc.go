// Package whisperx runs the WhisperX CLI (via uvx) as a transcription provider.
//
// Each chunk is written to a private temporary directory, transcribed with
// sentence-level segments, and the JSON output is decoded into chunk-relative
// segments. Model, CUDA, VAD method, and Hugging Face token come from the
// [transcription] config section.
package whisperx
