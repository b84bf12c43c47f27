// Package audio turns a source reference into normalized mono PCM and serves
// it back as fixed-length WAV chunks.
//
// A Preparer resolves the source, probes it with ffprobe, extracts the first
// audio track from video containers, and normalizes to signed 16-bit mono at
// the configured sample rate. The resulting Prepared value owns a private
// workspace directory; callers must Close it.
package audio
