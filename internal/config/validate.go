package config

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is structurally usable. Provider credentials are
// checked when the provider is constructed so read-only commands work without them.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "sqlite":
	case "firestore":
		if c.Store.FirestoreProject == "" {
			return errors.New("store.firestore_project is required when store.backend is firestore (or set GOOGLE_CLOUD_PROJECT)")
		}
	default:
		return fmt.Errorf("store.backend: unsupported value %q (want sqlite or firestore)", c.Store.Backend)
	}
	return nil
}

func (c *Config) validateAudio() error {
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 48000 {
		return errors.New("audio.sample_rate must be between 8000 and 48000")
	}
	if c.Audio.ChunkSeconds <= 0 {
		return errors.New("audio.chunk_seconds must be positive")
	}
	if c.Audio.MinFreeMiB < 0 {
		return errors.New("audio.min_free_mib must be >= 0")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	switch t.Provider {
	case "whisperx", "api":
	default:
		return fmt.Errorf("transcription.provider: unsupported value %q (want whisperx or api)", t.Provider)
	}
	if t.Workers < 1 {
		return errors.New("transcription.workers must be >= 1")
	}
	if t.Language != "" {
		if _, err := language.Parse(t.Language); err != nil {
			return fmt.Errorf("transcription.language: %w", err)
		}
	}
	switch t.WhisperXVADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.whisperx_vad_method: unsupported value %q", t.WhisperXVADMethod)
	}
	return validateRetry("transcription", t.Retry)
}

func (c *Config) validateGeneration() error {
	switch c.Generation.Provider {
	case "llm":
	case "vertex":
		if c.Vertex.Project == "" {
			return errors.New("vertex.project is required when generation.provider is vertex (or set GOOGLE_CLOUD_PROJECT)")
		}
	default:
		return fmt.Errorf("generation.provider: unsupported value %q (want llm or vertex)", c.Generation.Provider)
	}
	if c.Generation.MaxInputChars < 1000 {
		return errors.New("generation.max_input_chars must be >= 1000")
	}
	return validateRetry("generation", c.Generation.Retry)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func validateRetry(section string, r Retry) error {
	switch {
	case r.MaxAttempts < 1:
		return fmt.Errorf("%s.max_attempts must be >= 1", section)
	case r.TimeoutSeconds <= 0:
		return fmt.Errorf("%s.timeout_seconds must be positive", section)
	case r.BackoffInitialMS < 0 || r.BackoffMaxMS < 0:
		return fmt.Errorf("%s backoff values must be >= 0", section)
	case r.BackoffMaxMS > 0 && r.BackoffMaxMS < r.BackoffInitialMS:
		return fmt.Errorf("%s.backoff_max_ms must be >= backoff_initial_ms", section)
	}
	return nil
}

// TranscriptionLanguage returns the ISO 639-1 base code for the configured language,
// or an empty string when detection is left to the provider.
func (c *Config) TranscriptionLanguage() string {
	raw := strings.TrimSpace(c.Transcription.Language)
	if raw == "" || strings.EqualFold(raw, "auto") {
		return ""
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}
