package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	speech "google.golang.org/api/speech/v1"
	"google.golang.org/api/texttospeech/v1"

	"github.com/teslashibe/voiceflow/pkg/media"
)

const (
	providerGoogle   = "google"
	cloudPlatformURL = "https://www.googleapis.com/auth/cloud-platform"
)

// GoogleSpeech transcribes with Cloud Speech-to-Text and synthesizes with
// Cloud Text-to-Speech. It does not generate replies.
type GoogleSpeech struct {
	stt    *speech.Service
	tts    *texttospeech.Service
	config *Config
	logger *slog.Logger
}

// NewGoogleSpeech creates the Cloud speech provider. Without an API key it
// authenticates with Application Default Credentials.
func NewGoogleSpeech(ctx context.Context, opts ...Option) (*GoogleSpeech, error) {
	cfg := DefaultConfig()
	cfg.Voice = "en-US-Neural2-F"
	cfg.Apply(opts...)

	var clientOpts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.APIKey != "":
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	default:
		ts, err := google.DefaultTokenSource(ctx, cloudPlatformURL)
		if err != nil {
			return nil, WrapError(providerGoogle, fmt.Errorf("default credentials: %w", err))
		}
		clientOpts = append(clientOpts, option.WithTokenSource(ts))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(strings.TrimSuffix(cfg.BaseURL, "/")+"/"))
	}

	stt, err := speech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("speech service: %w", err))
	}
	tts, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("text-to-speech service: %w", err))
	}

	return &GoogleSpeech{
		stt:    stt,
		tts:    tts,
		config: cfg,
		logger: cfg.Logger.With("component", "inference.google"),
	}, nil
}

// Name returns "google".
func (g *GoogleSpeech) Name() string { return providerGoogle }

// Transcribe runs synchronous recognition on the recording.
func (g *GoogleSpeech) Transcribe(ctx context.Context, audio media.Audio) (string, error) {
	start := time.Now()

	rc := &speech.RecognitionConfig{
		LanguageCode:               g.config.Language,
		EnableAutomaticPunctuation: true,
	}
	// WAV and FLAC headers carry their own encoding and rate.
	switch media.FormatFromMediaType(audio.MediaType) {
	case "webm":
		rc.Encoding = "WEBM_OPUS"
		rc.SampleRateHertz = 48000
	case "ogg":
		rc.Encoding = "OGG_OPUS"
		rc.SampleRateHertz = 48000
	case "pcm":
		rc.Encoding = "LINEAR16"
		rc.SampleRateHertz = int64(g.config.SampleRate)
	}

	resp, err := g.stt.Speech.Recognize(&speech.RecognizeRequest{
		Config: rc,
		Audio:  &speech.RecognitionAudio{Content: base64.StdEncoding.EncodeToString(audio.Data)},
	}).Context(ctx).Do()
	if err != nil {
		return "", g.wrap(err)
	}

	var parts []string
	for _, result := range resp.Results {
		if len(result.Alternatives) > 0 {
			parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
		}
	}
	text := strings.Join(parts, " ")

	g.logger.Debug("transcribed", "results", len(resp.Results), "latency_ms", time.Since(start).Milliseconds())
	return text, nil
}

// Synthesize returns 24 kHz LINEAR16 speech, which the API frames as WAV.
func (g *GoogleSpeech) Synthesize(ctx context.Context, text string) (media.Audio, error) {
	start := time.Now()

	resp, err := g.tts.Text.Synthesize(&texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: g.config.Language,
			Name:         g.config.Voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: 24000,
		},
	}).Context(ctx).Do()
	if err != nil {
		return media.Audio{}, g.wrap(err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return media.Audio{}, WrapError(providerGoogle, fmt.Errorf("decode audio: %w", err))
	}

	g.logger.Debug("synthesized", "bytes", len(data), "latency_ms", time.Since(start).Milliseconds())
	return media.Audio{MediaType: media.AudioWAV, Data: data}, nil
}

func (g *GoogleSpeech) wrap(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return &APIError{
			StatusCode: gerr.Code,
			Message:    gerr.Message,
			Provider:   providerGoogle,
		}
	}
	return WrapError(providerGoogle, err)
}

var (
	_ Transcriber = (*GoogleSpeech)(nil)
	_ Synthesizer = (*GoogleSpeech)(nil)
)
