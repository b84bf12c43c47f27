package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scribe/internal/media/command"
	"scribe/internal/transcription"
)

// Torch 2.6 changed torch.load to weights_only=true, which breaks
// WhisperX/pyannote checkpoints.
const torchLegacyLoadEnv = "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1"

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg    Config
	runner command.Runner
}

// NewService creates a WhisperX service. A nil runner executes uvx directly.
func NewService(cfg Config, runner command.Runner) *Service {
	if runner == nil {
		var env []string
		if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
			env = []string{torchLegacyLoadEnv}
		}
		runner = command.Exec{Env: env}
	}
	return &Service{cfg: cfg, runner: runner}
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

// TranscribeChunk writes wav to a temporary directory and transcribes it.
func (s *Service) TranscribeChunk(ctx context.Context, wav []byte, _ int) (transcription.ChunkResult, error) {
	var result transcription.ChunkResult
	if len(wav) == 0 {
		return result, fmt.Errorf("whisperx: empty chunk")
	}
	if s.cfg.WorkDir != "" {
		if err := os.MkdirAll(s.cfg.WorkDir, 0o755); err != nil {
			return result, fmt.Errorf("whisperx: ensure work dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(s.cfg.WorkDir, "whisperx-")
	if err != nil {
		return result, fmt.Errorf("whisperx: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	source := filepath.Join(dir, "chunk.wav")
	if err := os.WriteFile(source, wav, 0o644); err != nil {
		return result, fmt.Errorf("whisperx: write chunk: %w", err)
	}
	res, err := s.runner.Run(ctx, UVXCommand, s.buildArgs(source, dir)...)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("whisperx: %w: %s", err, res.Diagnostic())
	}

	segments, err := LoadSegments(filepath.Join(dir, "chunk.json"))
	if err != nil {
		return result, fmt.Errorf("whisperx: %w", err)
	}
	texts := make([]string, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		texts = append(texts, text)
		result.Segments = append(result.Segments, transcription.Segment{StartSeconds: seg.Start, Text: text})
	}
	result.Text = strings.Join(texts, " ")
	return result, nil
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir string) []string {
	args := make([]string, 0, 40)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
		"--vad_onset", VADOnset,
		"--vad_offset", VADOffset,
		"--beam_size", BeamSize,
		"--best_of", BestOf,
		"--temperature", Temperature,
		"--patience", Patience,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := strings.TrimSpace(s.cfg.Language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}
	return args
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
}

// LoadSegments loads segments from a WhisperX JSON file.
func LoadSegments(jsonPath string) ([]Segment, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload.Segments, nil
}
