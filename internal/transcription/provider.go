package transcription

import "context"

// Segment is one timed piece of provider output. StartSeconds is relative to
// the start of the chunk that was submitted.
type Segment struct {
	StartSeconds float64
	Text         string
}

// ChunkResult is a provider's transcription of one chunk.
type ChunkResult struct {
	Text     string
	Segments []Segment
}

// Provider transcribes a single WAV-encoded chunk. Implementations perform one
// attempt per call; the stage owns retries and deadlines.
type Provider interface {
	TranscribeChunk(ctx context.Context, wav []byte, sampleRate int) (ChunkResult, error)
}
