// Package inference provides the speech and language capabilities the voice
// pipeline consumes: transcribe, respond and synthesize.
//
// Supported backends:
//   - Gemini (google.golang.org/genai): all three capabilities
//   - OpenAI-compatible HTTP APIs: all three capabilities
//   - Google Cloud Speech-to-Text and Text-to-Speech: transcribe, synthesize
//
// Backends are combined into fallback chains and exposed through Service,
// which maps failures onto TranscriptionError, InferenceError and
// SynthesisError.
package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/media"
)

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio media.Audio) (string, error)
	Name() string
}

// Responder generates an agent reply.
type Responder interface {
	Respond(ctx context.Context, req *RespondRequest) (string, error)
	Name() string
}

// Synthesizer turns reply text into playable speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (media.Audio, error)
	Name() string
}

// RespondRequest is one agent reply request. Grounding is nil exactly when
// Kind needs none.
type RespondRequest struct {
	Kind      agent.Kind
	Grounding *agent.Payload
	Query     string
}

// Validate checks the request against the grounding rule of its kind.
func (r *RespondRequest) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, r.Kind)
	}
	if strings.TrimSpace(r.Query) == "" {
		return fmt.Errorf("%w: empty query", ErrInvalidRequest)
	}
	if r.Kind.RequiresGrounding() && r.Grounding == nil {
		return fmt.Errorf("%w: kind %s requires grounding", ErrInvalidRequest, r.Kind)
	}
	return nil
}

// Service bundles one implementation of each capability and maps their
// failures onto the pipeline error kinds.
type Service struct {
	transcriber Transcriber
	responder   Responder
	synthesizer Synthesizer
}

// NewService creates a Service. All three capabilities are required.
func NewService(t Transcriber, r Responder, s Synthesizer) (*Service, error) {
	if t == nil || r == nil || s == nil {
		return nil, ErrProviderUnavailable
	}
	return &Service{transcriber: t, responder: r, synthesizer: s}, nil
}

// Transcribe returns the trimmed transcription of audio.
func (s *Service) Transcribe(ctx context.Context, audio media.Audio) (string, error) {
	if audio.Empty() {
		return "", &TranscriptionError{Err: fmt.Errorf("%w: empty audio", ErrInvalidRequest)}
	}
	text, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return "", &TranscriptionError{Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &TranscriptionError{Err: ErrEmptyResult}
	}
	return text, nil
}

// Respond returns the agent reply for req.
func (s *Service) Respond(ctx context.Context, req *RespondRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", &InferenceError{Err: err}
	}
	reply, err := s.responder.Respond(ctx, req)
	if err != nil {
		return "", &InferenceError{Err: err}
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", &InferenceError{Err: ErrEmptyResult}
	}
	return reply, nil
}

// Synthesize returns speech audio for text.
func (s *Service) Synthesize(ctx context.Context, text string) (media.Audio, error) {
	if strings.TrimSpace(text) == "" {
		return media.Audio{}, &SynthesisError{Err: fmt.Errorf("%w: empty text", ErrInvalidRequest)}
	}
	audio, err := s.synthesizer.Synthesize(ctx, text)
	if err != nil {
		return media.Audio{}, &SynthesisError{Err: err}
	}
	if audio.Empty() {
		return media.Audio{}, &SynthesisError{Err: ErrEmptyResult}
	}
	return audio, nil
}

// Providers describes which backend serves each capability.
func (s *Service) Providers() map[string]string {
	return map[string]string{
		"transcribe": s.transcriber.Name(),
		"respond":    s.responder.Name(),
		"synthesize": s.synthesizer.Name(),
	}
}
