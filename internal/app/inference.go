package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teslashibe/voiceflow/internal/config"
	"github.com/teslashibe/voiceflow/pkg/inference"
)

// ErrNoResponder is returned when no configured provider generates replies.
var ErrNoResponder = errors.New("app: no configured provider can generate replies")

// BuildInference assembles fallback chains in the configured provider
// order. Google Cloud speech serves transcription and synthesis only.
func BuildInference(ctx context.Context, cfg config.InferenceConfig, logger *slog.Logger) (*inference.Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		transcribers []inference.Transcriber
		responders   []inference.Responder
		synthesizers []inference.Synthesizer
	)

	for _, name := range cfg.Providers {
		switch name {
		case "gemini":
			g, err := inference.NewGemini(ctx,
				inference.WithAPIKey(cfg.GeminiAPIKey),
				inference.WithModel(cfg.GeminiModel),
				inference.WithLanguage(cfg.Language),
				inference.WithLogger(logger),
			)
			if err != nil {
				return nil, err
			}
			transcribers = append(transcribers, g)
			responders = append(responders, g)
			synthesizers = append(synthesizers, g)

		case "openai":
			opts := []inference.Option{
				inference.WithAPIKey(cfg.OpenAIAPIKey),
				inference.WithLanguage(cfg.Language),
				inference.WithLogger(logger),
			}
			if cfg.OpenAIBaseURL != "" {
				opts = append(opts, inference.WithBaseURL(cfg.OpenAIBaseURL))
			}
			if cfg.OpenAIModel != "" {
				opts = append(opts, inference.WithModel(cfg.OpenAIModel))
			}
			if cfg.OpenAITTSVoice != "" {
				opts = append(opts, inference.WithVoice(cfg.OpenAITTSVoice))
			}
			o, err := inference.NewOpenAI(opts...)
			if err != nil {
				return nil, err
			}
			transcribers = append(transcribers, o)
			responders = append(responders, o)
			synthesizers = append(synthesizers, o)

		case "google":
			opts := []inference.Option{
				inference.WithLanguage(cfg.Language),
				inference.WithLogger(logger),
			}
			if cfg.GoogleAPIKey != "" {
				opts = append(opts, inference.WithAPIKey(cfg.GoogleAPIKey))
			}
			g, err := inference.NewGoogleSpeech(ctx, opts...)
			if err != nil {
				return nil, err
			}
			transcribers = append(transcribers, g)
			synthesizers = append(synthesizers, g)

		case "mock":
			m := inference.NewMock()
			transcribers = append(transcribers, m)
			responders = append(responders, m)
			synthesizers = append(synthesizers, m)

		default:
			return nil, fmt.Errorf("app: unknown inference provider %q", name)
		}
	}

	if len(responders) == 0 {
		return nil, ErrNoResponder
	}

	t, err := inference.NewTranscriberChain(logger, transcribers...)
	if err != nil {
		return nil, err
	}
	r, err := inference.NewResponderChain(logger, responders...)
	if err != nil {
		return nil, err
	}
	s, err := inference.NewSynthesizerChain(logger, synthesizers...)
	if err != nil {
		return nil, err
	}

	return inference.NewService(t, r, inference.NewCachedSynthesizer(s, cfg.SpeechCacheTTL))
}
