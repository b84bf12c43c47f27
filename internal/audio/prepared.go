package audio

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"math"
	"os"
	"sync"
)

// Chunk is one WAV-encoded slice of the normalized audio.
type Chunk struct {
	Index        int
	StartSeconds float64
	EndSeconds   float64
	SampleRate   int
	Data         []byte
}

// Bounds returns the chunk's position on the source timeline.
func (c Chunk) Bounds() Bounds {
	return Bounds{Index: c.Index, StartSeconds: c.StartSeconds, EndSeconds: c.EndSeconds}
}

// Prepared is normalized audio ready for chunked transcription. Chunk is safe
// for concurrent use.
type Prepared struct {
	dir        string
	pcm        *os.File
	samples    int64
	sampleRate int
	plan       []Bounds

	closeOnce sync.Once
	closeErr  error
}

// Len returns the number of chunks.
func (p *Prepared) Len() int {
	return len(p.plan)
}

// Plan returns a copy of the chunk boundaries.
func (p *Prepared) Plan() []Bounds {
	return append([]Bounds(nil), p.plan...)
}

// DurationSeconds is derived from the normalized sample count.
func (p *Prepared) DurationSeconds() float64 {
	return float64(p.samples) / float64(p.sampleRate)
}

// SampleRate reports the normalization rate.
func (p *Prepared) SampleRate() int {
	return p.sampleRate
}

// Dir returns the private workspace directory.
func (p *Prepared) Dir() string {
	return p.dir
}

// Chunk reads chunk i from disk and wraps it in a WAV header.
func (p *Prepared) Chunk(i int) (Chunk, error) {
	if i < 0 || i >= len(p.plan) {
		return Chunk{}, fmt.Errorf("chunk %d out of range [0,%d)", i, len(p.plan))
	}
	b := p.plan[i]
	start := p.sampleAt(b.StartSeconds)
	end := p.sampleAt(b.EndSeconds)
	if i == len(p.plan)-1 {
		end = p.samples
	}
	if end < start {
		end = start
	}
	buf := make([]byte, (end-start)*bytesPerSample)
	if len(buf) > 0 {
		n, err := p.pcm.ReadAt(buf, start*bytesPerSample)
		if err != nil && !errors.Is(err, io.EOF) {
			return Chunk{}, fmt.Errorf("read chunk %d: %w", i, err)
		}
		buf = buf[:n-n%bytesPerSample]
	}
	return Chunk{
		Index:        b.Index,
		StartSeconds: b.StartSeconds,
		EndSeconds:   b.EndSeconds,
		SampleRate:   p.sampleRate,
		Data:         encodeWAV(buf, p.sampleRate),
	}, nil
}

// Chunks yields every chunk in index order. It may be ranged more than once.
func (p *Prepared) Chunks() iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		for i := range p.plan {
			chunk, err := p.Chunk(i)
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// Close removes the workspace. It is safe to call more than once.
func (p *Prepared) Close() error {
	if p == nil {
		return nil
	}
	p.closeOnce.Do(func() {
		var errs []error
		if p.pcm != nil {
			errs = append(errs, p.pcm.Close())
		}
		if p.dir != "" {
			errs = append(errs, os.RemoveAll(p.dir))
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}

func (p *Prepared) sampleAt(seconds float64) int64 {
	s := int64(math.Round(seconds * float64(p.sampleRate)))
	if s < 0 {
		return 0
	}
	if s > p.samples {
		return p.samples
	}
	return s
}
