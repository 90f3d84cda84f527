package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/teslashibe/voiceflow/internal/httpc"
	"github.com/teslashibe/voiceflow/pkg/media"
)

const providerGemini = "gemini"

// Gemini serves all three capabilities through the Gemini API. Audio and
// PDF grounding are sent as inline parts.
type Gemini struct {
	client *genai.Client
	config *Config
	logger *slog.Logger
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, opts ...Option) (*Gemini, error) {
	cfg := DefaultConfig()
	cfg.Model = "gemini-2.0-flash"
	cfg.TranscribeModel = "gemini-2.0-flash"
	cfg.SpeechModel = "gemini-2.5-flash-preview-tts"
	cfg.Voice = "Algenib"
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerGemini, ErrNoAPIKey)
	}
	if cfg.TranscribeModel == "" {
		cfg.TranscribeModel = cfg.Model
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = httpc.NewClient(cfg.Timeout)
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, WrapError(providerGemini, fmt.Errorf("create client: %w", err))
	}

	return &Gemini{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "inference.gemini"),
	}, nil
}

// Name returns "gemini".
func (g *Gemini) Name() string { return providerGemini }

// Transcribe sends the recording with a transcription instruction.
func (g *Gemini) Transcribe(ctx context.Context, audio media.Audio) (string, error) {
	start := time.Now()

	parts := []*genai.Part{
		genai.NewPartFromText(TranscribeInstruction),
		genai.NewPartFromBytes(audio.Data, media.BaseType(audio.MediaType)),
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.config.TranscribeModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{Temperature: g.temperature(0)},
	)
	if err != nil {
		return "", g.wrap(err)
	}

	text := resp.Text()
	g.logger.Debug("transcribed", "chars", len(text), "latency_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Respond renders the prompt and generates the reply.
func (g *Gemini) Respond(ctx context.Context, req *RespondRequest) (string, error) {
	start := time.Now()

	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", WrapError(providerGemini, err)
	}

	parts := []*genai.Part{genai.NewPartFromText(prompt.Text)}
	if prompt.Document != "" {
		doc, err := media.ParseDataURI(prompt.Document)
		if err != nil {
			return "", WrapError(providerGemini, fmt.Errorf("%w: %v", ErrInvalidRequest, err))
		}
		parts = append(parts, genai.NewPartFromBytes(doc.Data, doc.MediaType))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.config.Model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:     g.temperature(g.config.Temperature),
			MaxOutputTokens: int32(g.config.MaxTokens),
		},
	)
	if err != nil {
		return "", g.wrap(err)
	}

	reply := resp.Text()
	g.logger.Debug("responded", "kind", req.Kind, "chars", len(reply), "latency_ms", time.Since(start).Milliseconds())
	return reply, nil
}

// Synthesize generates speech with a TTS model. The API returns 24 kHz
// PCM, labelled audio/L16.
func (g *Gemini) Synthesize(ctx context.Context, text string) (media.Audio, error) {
	start := time.Now()

	resp, err := g.client.Models.GenerateContent(ctx, g.config.SpeechModel,
		genai.Text(text),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.config.Voice},
				},
			},
		},
	)
	if err != nil {
		return media.Audio{}, g.wrap(err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mediaType := part.InlineData.MIMEType
			if mediaType == "" || strings.HasPrefix(strings.ToLower(mediaType), "audio/l16") && !strings.Contains(mediaType, "rate=") {
				mediaType = "audio/L16;rate=24000"
			}
			g.logger.Debug("synthesized", "bytes", len(part.InlineData.Data), "latency_ms", time.Since(start).Milliseconds())
			return media.Audio{MediaType: mediaType, Data: part.InlineData.Data}, nil
		}
	}
	return media.Audio{}, WrapError(providerGemini, ErrEmptyResult)
}

func (g *Gemini) temperature(t float64) *float32 {
	v := float32(t)
	return &v
}

// wrap converts genai API errors into APIError.
func (g *Gemini) wrap(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Code:       apiErr.Status,
			Provider:   providerGemini,
		}
	}
	return WrapError(providerGemini, err)
}

var (
	_ Transcriber = (*Gemini)(nil)
	_ Responder   = (*Gemini)(nil)
	_ Synthesizer = (*Gemini)(nil)
)
