package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeAudio()
	c.normalizeTranscription()
	c.normalizeGeneration()
	c.normalizeLLM()
	c.normalizeVertex()
	c.normalizeAPI()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(valueOr(c.Paths.DataDir, defaultDataDir)); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.WorkDir, err = expandPath(valueOr(c.Paths.WorkDir, defaultWorkDir)); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(valueOr(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	var err error
	if root := strings.TrimSpace(c.Storage.LocalRoot); root != "" {
		if c.Storage.LocalRoot, err = expandPath(root); err != nil {
			return fmt.Errorf("storage.local_root: %w", err)
		}
	}
	if creds := strings.TrimSpace(c.Storage.GCSCredentialsFile); creds != "" {
		if c.Storage.GCSCredentialsFile, err = expandPath(creds); err != nil {
			return fmt.Errorf("storage.gcs_credentials_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(valueOr(c.Store.Backend, defaultStoreBackend))
	c.Store.FirestoreCollection = valueOr(c.Store.FirestoreCollection, defaultFirestoreCollection)
	if strings.TrimSpace(c.Store.FirestoreProject) == "" {
		c.Store.FirestoreProject = envOr("GOOGLE_CLOUD_PROJECT")
	}
}

func (c *Config) normalizeAudio() {
	c.Audio.FFmpegBinary = valueOr(c.Audio.FFmpegBinary, defaultFFmpegBinary)
	c.Audio.FFprobeBinary = valueOr(c.Audio.FFprobeBinary, defaultFFprobeBinary)
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Provider = strings.ToLower(valueOr(t.Provider, defaultTranscriber))
	t.Language = strings.TrimSpace(t.Language)
	t.WhisperXModel = valueOr(t.WhisperXModel, defaultWhisperXModel)
	t.WhisperXVADMethod = strings.ToLower(valueOr(t.WhisperXVADMethod, defaultWhisperXVADMethod))
	t.APIBaseURL = strings.TrimRight(valueOr(t.APIBaseURL, defaultSpeechAPIBaseURL), "/")
	t.APIModel = valueOr(t.APIModel, defaultSpeechAPIModel)
	if strings.TrimSpace(t.APIKey) == "" {
		t.APIKey = envOr("SCRIBE_TRANSCRIPTION_API_KEY", "OPENAI_API_KEY")
	}
	if strings.TrimSpace(t.WhisperXHFToken) == "" {
		t.WhisperXHFToken = envOr("HF_TOKEN")
	}
}

func (c *Config) normalizeGeneration() {
	c.Generation.Provider = strings.ToLower(valueOr(c.Generation.Provider, defaultGenerator))
}

func (c *Config) normalizeLLM() {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		c.LLM.APIKey = envOr("SCRIBE_LLM_API_KEY", "OPENROUTER_API_KEY")
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.BaseURL = valueOr(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = valueOr(c.LLM.Model, defaultLLMModel)
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
}

func (c *Config) normalizeVertex() {
	if strings.TrimSpace(c.Vertex.Project) == "" {
		c.Vertex.Project = envOr("GOOGLE_CLOUD_PROJECT")
	}
	c.Vertex.Region = valueOr(c.Vertex.Region, defaultVertexRegion)
	c.Vertex.Model = valueOr(c.Vertex.Model, defaultVertexModel)
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if strings.TrimSpace(c.API.Token) == "" {
		c.API.Token = envOr("SCRIBE_API_TOKEN")
	}
	c.API.Token = strings.TrimSpace(c.API.Token)
}

func (c *Config) normalizeNotifications() {
	if strings.TrimSpace(c.Notifications.NtfyTopic) == "" {
		c.Notifications.NtfyTopic = envOr("SCRIBE_NTFY_TOPIC")
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(valueOr(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(valueOr(c.Logging.Level, defaultLogLevel))
}

func valueOr(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func envOr(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
