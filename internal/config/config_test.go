package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("INFERENCE_PROVIDERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.App.HTTPPort)
	assert.Equal(t, []string{"gemini"}, cfg.Inference.Providers)
	assert.Equal(t, "gemini-2.0-flash", cfg.Inference.GeminiModel)
	assert.Equal(t, 30*time.Second, cfg.Orchestrator.StageTimeout)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("INFERENCE_PROVIDERS", "OpenAI, google")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("GOOGLE_USE_ADC", "true")
	t.Setenv("STAGE_TIMEOUT", "5s")
	t.Setenv("AUDIO_BACKEND", "mock")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"openai", "google"}, cfg.Inference.Providers)
	assert.True(t, cfg.Inference.GoogleUseADC)
	assert.Equal(t, 5*time.Second, cfg.Orchestrator.StageTimeout)
	assert.Equal(t, "mock", cfg.Audio.Backend)
}

func TestLoad_MissingCredentials(t *testing.T) {
	t.Setenv("INFERENCE_PROVIDERS", "gemini")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown provider", "INFERENCE_PROVIDERS", "bogus"},
		{"unknown backend", "AUDIO_BACKEND", "alsa-direct"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad port", "HTTP_PORT", "eighty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GEMINI_API_KEY", "test-key")
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
