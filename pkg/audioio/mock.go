package audioio

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MockSource is a mock audio source for testing.
// It generates synthetic audio (silence or sine wave).
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	startErr error
	streamCh chan AudioChunk
	stopCh   chan struct{}
	done     chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	starts      atomic.Int64

	phase     float64
	frequency float64 // Hz, 0 = silence
	amplitude float64 // 0.0 to 1.0
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave configures the mock to generate a sine wave.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.frequency = frequency
		m.amplitude = amplitude
	}
}

// WithStartError makes every Start fail with err, as a missing or denied
// microphone would.
func WithStartError(err error) MockSourceOption {
	return func(m *MockSource) {
		m.startErr = err
	}
}

// NewMockSource creates a new mock audio source.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSource{
		cfg:       cfg,
		logger:    logger,
		streamCh:  make(chan AudioChunk),
		amplitude: 0.5,
	}
	close(m.streamCh)

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if m.startErr != nil {
		return m.startErr
	}
	if m.running {
		return nil
	}

	m.running = true
	m.starts.Add(1)
	m.stopCh = make(chan struct{})
	m.done = make(chan struct{})
	m.streamCh = make(chan AudioChunk, 64)

	go m.generateLoop(ctx, m.streamCh, m.stopCh, m.done)

	m.logger.Debug("mock audio source started", "sample_rate", m.cfg.SampleRate, "frequency", m.frequency)
	return nil
}

// generateLoop is the only writer of out and closes it on exit.
func (m *MockSource) generateLoop(ctx context.Context, out chan<- AudioChunk, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			chunk := m.generateChunk()
			select {
			case out <- chunk:
				m.chunksRead.Add(1)
				m.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				m.logger.Debug("mock source: buffer full, dropping chunk")
			}
		}
	}
}

func (m *MockSource) generateChunk() AudioChunk {
	frames := m.cfg.BufferSize()
	samples := make([]int16, frames*m.cfg.Channels)

	if m.frequency > 0 {
		for i := 0; i < frames; i++ {
			v := int16(m.amplitude * 32767 * math.Sin(2*math.Pi*m.frequency*m.phase/float64(m.cfg.SampleRate)))
			for ch := 0; ch < m.cfg.Channels; ch++ {
				samples[i*m.cfg.Channels+ch] = v
			}
			m.phase++
			if m.phase >= float64(m.cfg.SampleRate) {
				m.phase = 0
			}
		}
	}

	return AudioChunk{Samples: samples, SampleRate: m.cfg.SampleRate, Channels: m.cfg.Channels}
}

// Stop halts audio generation and waits for the stream to close.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	close(m.stopCh)
	done := m.done
	m.mu.Unlock()

	<-done
	m.logger.Debug("mock audio source stopped")
	return nil
}

// Stream returns the chunk channel of the current run.
func (m *MockSource) Stream() <-chan AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSource) Name() string { return string(BackendMock) }

// Close releases resources.
func (m *MockSource) Close() error {
	err := m.Stop()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return err
}

// Running reports whether the device is held.
func (m *MockSource) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts returns how many times capture was started.
func (m *MockSource) Starts() int {
	return int(m.starts.Load())
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Running:     m.Running(),
		Backend:     m.Name(),
	}
}

var _ SourceWithStats = (*MockSource)(nil)

// MockSink is a mock audio sink for testing.
// It records written audio and can simulate playback time.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	running    bool
	closed     bool
	buffer     []int16
	written    []int16
	clears     int
	clearCh    chan struct{}
	flushDelay time.Duration
}

// MockSinkOption configures a MockSink.
type MockSinkOption func(*MockSink)

// WithFlushDelay makes Flush block for d, as if audio were playing.
func WithFlushDelay(d time.Duration) MockSinkOption {
	return func(m *MockSink) {
		m.flushDelay = d
	}
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger, opts ...MockSinkOption) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSink{cfg: cfg, logger: logger, clearCh: make(chan struct{})}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}
	if !m.running {
		m.running = true
		m.clearCh = make(chan struct{})
	}
	return nil
}

// Stop halts audio acceptance.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	return nil
}

// Write accepts an audio chunk.
func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || !m.running {
		return io.ErrClosedPipe
	}
	m.buffer = append(m.buffer, chunk.Samples...)
	m.written = append(m.written, chunk.Samples...)
	return nil
}

// Flush simulates waiting for playback. It returns early on Clear.
func (m *MockSink) Flush(ctx context.Context) error {
	m.mu.Lock()
	delay := m.flushDelay
	clearCh := m.clearCh
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clearCh:
		case <-time.After(delay):
		}
	}

	m.mu.Lock()
	m.buffer = m.buffer[:0]
	m.mu.Unlock()
	return nil
}

// Clear discards buffered audio and releases a pending Flush.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buffer = m.buffer[:0]
	m.clears++
	select {
	case <-m.clearCh:
	default:
		close(m.clearCh)
	}
	return nil
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config { return m.cfg }

// Name returns "mock".
func (m *MockSink) Name() string { return string(BackendMock) }

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.running = false
	m.mu.Unlock()
	return nil
}

// Written returns a copy of every sample written since creation.
func (m *MockSink) Written() []int16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int16(nil), m.written...)
}

// Clears returns how many times Clear was called.
func (m *MockSink) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}
