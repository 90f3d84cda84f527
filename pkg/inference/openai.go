package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/voiceflow/internal/httpc"
	"github.com/teslashibe/voiceflow/pkg/media"
)

const providerOpenAI = "openai"

// OpenAI voices.
const (
	VoiceAlloy   = "alloy"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// OpenAI talks to any OpenAI-compatible API (OpenAI, Groq, vLLM, LocalAI...).
type OpenAI struct {
	baseURL string
	apiKey  string
	config  *Config
	http    *http.Client
	logger  *slog.Logger
}

// NewOpenAI creates an OpenAI-compatible provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://api.openai.com/v1"
	cfg.Model = "gpt-4o-mini"
	cfg.TranscribeModel = "whisper-1"
	cfg.SpeechModel = "tts-1"
	cfg.Voice = VoiceShimmer
	cfg.Apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerOpenAI, ErrNoAPIKey)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = httpc.NewClient(cfg.Timeout)
	}

	return &OpenAI{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		config:  cfg,
		http:    client,
		logger:  cfg.Logger.With("component", "inference.openai"),
	}, nil
}

// Name returns "openai".
func (o *OpenAI) Name() string { return providerOpenAI }

// Transcribe posts the recording to /audio/transcriptions.
func (o *OpenAI) Transcribe(ctx context.Context, audio media.Audio) (string, error) {
	start := time.Now()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("model", o.config.TranscribeModel)
	_ = w.WriteField("response_format", "json")
	if lang, _, _ := strings.Cut(o.config.Language, "-"); lang != "" {
		_ = w.WriteField("language", lang)
	}
	part, err := w.CreateFormFile("file", "speech."+media.FormatFromMediaType(audio.MediaType))
	if err != nil {
		return "", WrapError(providerOpenAI, err)
	}
	if _, err := part.Write(audio.Data); err != nil {
		return "", WrapError(providerOpenAI, err)
	}
	if err := w.Close(); err != nil {
		return "", WrapError(providerOpenAI, err)
	}

	resp, err := o.do(ctx, "/audio/transcriptions", w.FormDataContentType(), body.Bytes())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(providerOpenAI, fmt.Errorf("decode response: %w", err))
	}

	o.logger.Debug("transcribed", "chars", len(result.Text), "latency_ms", time.Since(start).Milliseconds())
	return result.Text, nil
}

// Respond sends the rendered prompt to /chat/completions. Document grounding
// is attached as a file content part.
func (o *OpenAI) Respond(ctx context.Context, req *RespondRequest) (string, error) {
	start := time.Now()

	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", WrapError(providerOpenAI, err)
	}

	content := []map[string]any{{"type": "text", "text": prompt.Text}}
	if prompt.Document != "" {
		content = append(content, map[string]any{
			"type": "file",
			"file": map[string]string{
				"filename":  "grounding.pdf",
				"file_data": prompt.Document,
			},
		})
	}

	payload := map[string]any{
		"model":       o.config.Model,
		"messages":    []map[string]any{{"role": "user", "content": content}},
		"max_tokens":  o.config.MaxTokens,
		"temperature": o.config.Temperature,
	}

	resp, err := o.postJSON(ctx, "/chat/completions", payload)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", WrapError(providerOpenAI, fmt.Errorf("decode response: %w", err))
	}
	if len(result.Choices) == 0 {
		return "", WrapError(providerOpenAI, fmt.Errorf("no choices returned"))
	}

	o.logger.Debug("responded",
		"kind", req.Kind,
		"model", result.Model,
		"total_tokens", result.Usage.TotalTokens,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return result.Choices[0].Message.Content, nil
}

// Synthesize requests MP3 speech from /audio/speech.
func (o *OpenAI) Synthesize(ctx context.Context, text string) (media.Audio, error) {
	start := time.Now()

	payload := map[string]any{
		"model":           o.config.SpeechModel,
		"voice":           o.config.Voice,
		"input":           text,
		"response_format": "mp3",
	}

	resp, err := o.postJSON(ctx, "/audio/speech", payload)
	if err != nil {
		return media.Audio{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return media.Audio{}, WrapError(providerOpenAI, fmt.Errorf("read audio: %w", err))
	}

	mediaType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(mediaType, "audio/") {
		mediaType = media.AudioMPEG
	}

	o.logger.Debug("synthesized", "bytes", len(data), "latency_ms", time.Since(start).Milliseconds())
	return media.Audio{MediaType: mediaType, Data: data}, nil
}

func (o *OpenAI) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, WrapError(providerOpenAI, fmt.Errorf("marshal request: %w", err))
	}
	return o.do(ctx, path, "application/json", body)
}

// do sends a POST and returns the response only for HTTP 200.
func (o *OpenAI) do(ctx context.Context, path, contentType string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.doWithRetry(ctx, req, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, o.parseError(resp)
	}
	return resp, nil
}

// doWithRetry performs the request, retrying transport errors, 429 and 5xx.
func (o *OpenAI) doWithRetry(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.config.RetryDelay * time.Duration(attempt)):
			}
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := o.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = WrapError(providerOpenAI, err)
			o.logger.Warn("request failed, retrying", "attempt", attempt+1, "error", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = o.parseError(resp)
			resp.Body.Close()
			o.logger.Warn("retrying request", "attempt", attempt+1, "status", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

// parseError reads an OpenAI-style error body.
func (o *OpenAI) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := strings.TrimSpace(string(body))
	code := ""
	if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
		code = errResp.Error.Code
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    message,
		Code:       code,
		Provider:   providerOpenAI,
	}
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

var (
	_ Transcriber = (*OpenAI)(nil)
	_ Responder   = (*OpenAI)(nil)
	_ Synthesizer = (*OpenAI)(nil)
)
