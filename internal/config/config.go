// Package config loads voiceflow configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full application configuration.
type Config struct {
	App          AppConfig
	Audio        AudioConfig
	Inference    InferenceConfig
	Orchestrator OrchestratorConfig
}

// AppConfig holds process-level settings.
type AppConfig struct {
	Environment string `validate:"required,oneof=development production test"`
	LogLevel    string `validate:"required,oneof=debug info warn error"`
	LogFile     string
	HTTPPort    string `validate:"required,numeric"`
	StaticDir   string
}

// AudioConfig selects the capture/playback backend.
type AudioConfig struct {
	Backend       string `validate:"required,oneof=auto command mock"`
	SampleRate    int    `validate:"gt=0"`
	Channels      int    `validate:"gte=1,lte=2"`
	Device        string
	PlayerCommand string
}

// InferenceConfig holds credentials and models for the inference backends.
type InferenceConfig struct {
	// Providers is the fallback order, e.g. ["gemini", "openai"].
	Providers []string `validate:"min=1,dive,oneof=gemini openai google mock"`

	GeminiAPIKey string
	GeminiModel  string `validate:"required"`

	OpenAIAPIKey   string
	OpenAIBaseURL  string `validate:"omitempty,url"`
	OpenAIModel    string
	OpenAITTSVoice string

	GoogleAPIKey string
	GoogleUseADC bool

	Language       string        `validate:"required"`
	SpeechCacheTTL time.Duration `validate:"gte=0"`
}

// OrchestratorConfig bounds each pipeline stage.
type OrchestratorConfig struct {
	StageTimeout time.Duration `validate:"gt=0"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getEnv("GO_ENV", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFile:     getEnv("LOG_FILE", ""),
			HTTPPort:    getEnv("HTTP_PORT", "8080"),
			StaticDir:   getEnv("WEB_STATIC_DIR", ""),
		},
		Audio: AudioConfig{
			Backend:       getEnv("AUDIO_BACKEND", "auto"),
			SampleRate:    getEnvAsInt("AUDIO_SAMPLE_RATE", 16000),
			Channels:      getEnvAsInt("AUDIO_CHANNELS", 1),
			Device:        getEnv("AUDIO_DEVICE", ""),
			PlayerCommand: getEnv("PLAYER_COMMAND", "ffplay"),
		},
		Inference: InferenceConfig{
			Providers:      getEnvAsList("INFERENCE_PROVIDERS", []string{"gemini"}),
			GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
			GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAITTSVoice: getEnv("OPENAI_TTS_VOICE", "shimmer"),
			GoogleAPIKey:   getEnv("GOOGLE_API_KEY", ""),
			GoogleUseADC:   getEnvAsBool("GOOGLE_USE_ADC", false),
			Language:       getEnv("SPEECH_LANGUAGE", "en-US"),
			SpeechCacheTTL: getEnvAsDuration("SPEECH_CACHE_TTL", 10*time.Minute),
		},
		Orchestrator: OrchestratorConfig{
			StageTimeout: getEnvAsDuration("STAGE_TIMEOUT", 30*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field credential requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	for _, p := range c.Inference.Providers {
		switch p {
		case "gemini":
			if c.Inference.GeminiAPIKey == "" {
				return fmt.Errorf("config: GEMINI_API_KEY is required for provider %q", p)
			}
		case "openai":
			if c.Inference.OpenAIAPIKey == "" {
				return fmt.Errorf("config: OPENAI_API_KEY is required for provider %q", p)
			}
		case "google":
			if c.Inference.GoogleAPIKey == "" && !c.Inference.GoogleUseADC {
				return fmt.Errorf("config: GOOGLE_API_KEY or GOOGLE_USE_ADC is required for provider %q", p)
			}
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
