package config

const (
	defaultConfigPath          = "~/.config/scribe/config.toml"
	defaultDataDir             = "~/.local/share/scribe"
	defaultWorkDir             = "~/.cache/scribe/work"
	defaultLogDir              = "~/.local/share/scribe/logs"
	defaultStoreBackend        = "sqlite"
	defaultFirestoreCollection = "jobs"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultSampleRate          = 16000
	defaultChunkSeconds        = 300
	defaultMinFreeMiB          = 512
	defaultTranscriber         = "whisperx"
	defaultTranscribeWorkers   = 3
	defaultTranscribeLanguage  = "en"
	defaultWhisperXModel       = "large-v3"
	defaultWhisperXVADMethod   = "silero"
	defaultSpeechAPIBaseURL    = "https://api.openai.com/v1"
	defaultSpeechAPIModel      = "whisper-1"
	defaultGenerator           = "llm"
	defaultMaxInputChars       = 120000
	defaultLLMBaseURL          = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel            = "google/gemini-3-flash-preview"
	defaultLLMReferer          = "https://github.com/scribe-media/scribe"
	defaultLLMTitle            = "scribe"
	defaultVertexRegion        = "us-central1"
	defaultVertexModel         = "gemini-2.5-flash"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultNtfyTimeoutSeconds  = 10
	defaultLogFormat           = "auto"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Store: Store{
			Backend:             defaultStoreBackend,
			FirestoreCollection: defaultFirestoreCollection,
		},
		Audio: Audio{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			SampleRate:    defaultSampleRate,
			ChunkSeconds:  defaultChunkSeconds,
			MinFreeMiB:    defaultMinFreeMiB,
		},
		Transcription: Transcription{
			Provider: defaultTranscriber,
			Workers:  defaultTranscribeWorkers,
			Language: defaultTranscribeLanguage,
			Retry: Retry{
				MaxAttempts:      4,
				TimeoutSeconds:   600,
				BackoffInitialMS: 1000,
				BackoffMaxMS:     15000,
			},
			WhisperXModel:     defaultWhisperXModel,
			WhisperXVADMethod: defaultWhisperXVADMethod,
			APIBaseURL:        defaultSpeechAPIBaseURL,
			APIModel:          defaultSpeechAPIModel,
		},
		Generation: Generation{
			Provider:        defaultGenerator,
			MaxInputChars:   defaultMaxInputChars,
			EmbedTimestamps: true,
			Retry: Retry{
				MaxAttempts:      4,
				TimeoutSeconds:   180,
				BackoffInitialMS: 1000,
				BackoffMaxMS:     10000,
			},
		},
		LLM: LLM{
			BaseURL: defaultLLMBaseURL,
			Model:   defaultLLMModel,
			Referer: defaultLLMReferer,
			Title:   defaultLLMTitle,
		},
		Vertex: Vertex{
			Region: defaultVertexRegion,
			Model:  defaultVertexModel,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
