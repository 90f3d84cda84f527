package playback

import (
	"context"
	"sync"

	"github.com/teslashibe/voiceflow/pkg/media"
)

// MockPlayer is a Player for tests. Each Play blocks until Finish is
// called or its context is cancelled.
type MockPlayer struct {
	mu      sync.Mutex
	played  []media.Audio
	release chan error
	started chan media.Audio

	// IgnoreCancel keeps Play blocked after cancellation, like a device that
	// reports completion late.
	IgnoreCancel bool
}

// NewMockPlayer creates a blocking mock player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{
		release: make(chan error),
		started: make(chan media.Audio, 16),
	}
}

// Name returns "mock".
func (m *MockPlayer) Name() string { return "mock" }

// Play records the payload and waits.
func (m *MockPlayer) Play(ctx context.Context, audio media.Audio) error {
	m.mu.Lock()
	m.played = append(m.played, audio)
	m.mu.Unlock()

	select {
	case m.started <- audio:
	default:
	}

	if m.IgnoreCancel {
		return <-m.release
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case err := <-m.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish ends the blocked Play with err. It blocks until a Play receives it.
func (m *MockPlayer) Finish(err error) {
	m.release <- err
}

// Started delivers each payload as its playback begins.
func (m *MockPlayer) Started() <-chan media.Audio {
	return m.started
}

// Played returns every payload passed to Play.
func (m *MockPlayer) Played() []media.Audio {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]media.Audio(nil), m.played...)
}
