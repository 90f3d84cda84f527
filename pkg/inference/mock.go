package inference

import (
	"context"
	"sync"

	"github.com/teslashibe/voiceflow/pkg/media"
)

// Mock implements all three capabilities for testing. Nil funcs return
// canned results. Calls are recorded.
type Mock struct {
	TranscribeFunc func(ctx context.Context, audio media.Audio) (string, error)
	RespondFunc    func(ctx context.Context, req *RespondRequest) (string, error)
	SynthesizeFunc func(ctx context.Context, text string) (media.Audio, error)

	mu          sync.Mutex
	transcribes []media.Audio
	responds    []RespondRequest
	synthesizes []string
}

// NewMock creates a mock with default behaviour.
func NewMock() *Mock {
	return &Mock{}
}

// Name returns "mock".
func (m *Mock) Name() string { return "mock" }

// Transcribe implements Transcriber.
func (m *Mock) Transcribe(ctx context.Context, audio media.Audio) (string, error) {
	m.mu.Lock()
	m.transcribes = append(m.transcribes, audio)
	fn := m.TranscribeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, audio)
	}
	return "Hello, how are you?", nil
}

// Respond implements Responder.
func (m *Mock) Respond(ctx context.Context, req *RespondRequest) (string, error) {
	m.mu.Lock()
	m.responds = append(m.responds, *req)
	fn := m.RespondFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return "I'm doing well, thank you!", nil
}

// Synthesize implements Synthesizer.
func (m *Mock) Synthesize(ctx context.Context, text string) (media.Audio, error) {
	m.mu.Lock()
	m.synthesizes = append(m.synthesizes, text)
	fn := m.SynthesizeFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return media.Audio{MediaType: media.AudioMPEG, Data: []byte("mock-speech:" + text)}, nil
}

// TranscribeCalls returns the recorded Transcribe inputs.
func (m *Mock) TranscribeCalls() []media.Audio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]media.Audio(nil), m.transcribes...)
}

// RespondCalls returns the recorded Respond requests.
func (m *Mock) RespondCalls() []RespondRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RespondRequest(nil), m.responds...)
}

// SynthesizeCalls returns the recorded Synthesize inputs.
func (m *Mock) SynthesizeCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.synthesizes...)
}

// Calls returns the total number of calls across capabilities.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transcribes) + len(m.responds) + len(m.synthesizes)
}

var (
	_ Transcriber = (*Mock)(nil)
	_ Responder   = (*Mock)(nil)
	_ Synthesizer = (*Mock)(nil)
)
