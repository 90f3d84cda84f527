package inference

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds provider configuration. Each backend starts from
// DefaultConfig and overrides its own defaults before applying options.
type Config struct {
	// Connection
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	// Models
	Model           string // response model
	TranscribeModel string
	SpeechModel     string
	Voice           string

	// Speech
	Language   string // BCP-47, e.g. "en-US"
	SampleRate int    // capture rate hint for recognizers

	// Request defaults
	MaxTokens   int
	Temperature float64

	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration

	Logger *slog.Logger
}

// Option is a functional option for configuring providers.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithModel sets the response model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithTranscribeModel sets the speech-to-text model.
func WithTranscribeModel(model string) Option {
	return func(c *Config) { c.TranscribeModel = model }
}

// WithSpeechModel sets the text-to-speech model.
func WithSpeechModel(model string) Option {
	return func(c *Config) { c.SpeechModel = model }
}

// WithVoice sets the synthesis voice.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

// WithLanguage sets the speech language code.
func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

// WithSampleRate sets the capture sample rate hint.
func WithSampleRate(rate int) Option {
	return func(c *Config) { c.SampleRate = rate }
}

// WithMaxTokens sets the reply token limit.
func WithMaxTokens(n int) Option {
	return func(c *Config) { c.MaxTokens = n }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *Config) { c.Temperature = t }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns provider-neutral defaults.
func DefaultConfig() *Config {
	return &Config{
		Language:    "en-US",
		SampleRate:  16000,
		MaxTokens:   1024,
		Temperature: 0.7,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		RetryDelay:  200 * time.Millisecond,
		Logger:      slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
