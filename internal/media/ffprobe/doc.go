// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual stream properties, including disposition flags
//   - Prober: runs ffprobe through a command.Runner
//
// Helper methods on Result answer the questions audio preparation asks:
// whether there is audio, whether there is real (non cover-art) video, and
// how long the media is.
package ffprobe
