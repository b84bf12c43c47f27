package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Store selects and configures the job store backend.
type Store struct {
	Backend             string `toml:"backend"`
	FirestoreProject    string `toml:"firestore_project"`
	FirestoreCollection string `toml:"firestore_collection"`
}

// Storage configures how source references are resolved.
type Storage struct {
	LocalRoot          string `toml:"local_root"`
	GCSEnabled         bool   `toml:"gcs_enabled"`
	GCSCredentialsFile string `toml:"gcs_credentials_file"`
}

// Audio configures media probing, normalization, and chunking.
type Audio struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	SampleRate    int    `toml:"sample_rate"`
	ChunkSeconds  int    `toml:"chunk_seconds"`
	MinFreeMiB    int    `toml:"min_free_mib"`
}

// Retry holds the bounded backoff policy shared by provider-backed stages.
type Retry struct {
	MaxAttempts      int `toml:"max_attempts"`
	TimeoutSeconds   int `toml:"timeout_seconds"`
	BackoffInitialMS int `toml:"backoff_initial_ms"`
	BackoffMaxMS     int `toml:"backoff_max_ms"`
}

// Transcription configures the transcription stage and its provider.
type Transcription struct {
	Provider string `toml:"provider"`
	Workers  int    `toml:"workers"`
	Language string `toml:"language"`
	Retry

	WhisperXModel     string `toml:"whisperx_model"`
	WhisperXCUDA      bool   `toml:"whisperx_cuda_enabled"`
	WhisperXVADMethod string `toml:"whisperx_vad_method"`
	WhisperXHFToken   string `toml:"whisperx_hf_token"`

	APIBaseURL string `toml:"api_base_url"`
	APIKey     string `toml:"api_key"`
	APIModel   string `toml:"api_model"`
}

// Generation configures the summarization and article stages.
type Generation struct {
	Provider          string `toml:"provider"`
	MaxInputChars     int    `toml:"max_input_chars"`
	EmbedTimestamps   bool   `toml:"embed_timestamps"`
	IncludeTranscript bool   `toml:"include_transcript"`
	Retry
}

// LLM contains OpenRouter-compatible chat completion settings.
type LLM struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	Referer string `toml:"referer"`
	Title   string `toml:"title"`
}

// Vertex contains Vertex AI Gemini settings.
type Vertex struct {
	Project string `toml:"project"`
	Region  string `toml:"region"`
	Model   string `toml:"model"`
}

// API configures the daemon's HTTP trigger surface.
type API struct {
	Bind  string `toml:"bind"`
	Token string `toml:"token"`
}

// Notifications configures ntfy job outcome messages.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifyOnSuccess       bool   `toml:"notify_on_success"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for scribe.
//
// Configuration sections by subsystem:
//   - Paths: database, scratch, and log directories
//   - Store: job store backend (sqlite or firestore)
//   - Storage: source reference resolution (local paths, gs://)
//   - Audio: ffmpeg/ffprobe binaries, normalization rate, chunk length
//   - Transcription: provider selection, worker pool, retry policy
//   - Generation: summary/article provider, truncation, retry policy
//   - LLM / Vertex: generative provider connection settings
//   - API: daemon bind address and token
//   - Notifications: ntfy topic for job outcomes
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Storage       Storage       `toml:"storage"`
	Audio         Audio         `toml:"audio"`
	Transcription Transcription `toml:"transcription"`
	Generation    Generation    `toml:"generation"`
	LLM           LLM           `toml:"llm"`
	Vertex        Vertex        `toml:"vertex"`
	API           API           `toml:"api"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("scribe.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the data, work, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.WorkDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite job database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "scribed.lock")
}

// RunLockPath returns the lock file pipeline runs hold shared across processes.
func (c *Config) RunLockPath() string {
	return filepath.Join(c.Paths.DataDir, "runs.lock")
}

// ChunkDuration returns the target audio chunk length.
func (c *Config) ChunkDuration() time.Duration {
	return time.Duration(c.Audio.ChunkSeconds) * time.Second
}

// AttemptTimeout converts the per-attempt timeout into a duration.
func (r Retry) AttemptTimeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// InitialBackoff converts the initial backoff into a duration.
func (r Retry) InitialBackoff() time.Duration {
	return time.Duration(r.BackoffInitialMS) * time.Millisecond
}

// MaxBackoff converts the backoff ceiling into a duration.
func (r Retry) MaxBackoff() time.Duration {
	return time.Duration(r.BackoffMaxMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
