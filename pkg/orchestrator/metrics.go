package orchestrator

import (
	"sync"
	"time"

	"github.com/teslashibe/voiceflow/pkg/agent"
)

// historyLimit bounds the number of archived passes.
const historyLimit = 100

// Outcome is how a pass ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Metrics tracks stage latencies of one pass. FirstAudio and Total are
// measured from the moment the pass started.
type Metrics struct {
	PassID    uint64    `json:"pass_id"`
	Agent     agent.ID  `json:"agent,omitempty"`
	Speak     bool      `json:"speak,omitempty"`
	StartedAt time.Time `json:"started_at"`
	Outcome   Outcome   `json:"outcome,omitempty"`

	Capture    time.Duration `json:"capture"`
	Transcribe time.Duration `json:"transcribe"`
	Respond    time.Duration `json:"respond"`
	Synthesize time.Duration `json:"synthesize"`
	Playback   time.Duration `json:"playback"`
	FirstAudio time.Duration `json:"first_audio"`
	Total      time.Duration `json:"total"`
}

// MetricsCollector collects latency metrics across passes.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, historyLimit),
	}
}

// OnUpdate sets a callback that fires whenever a pass is archived.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Begin resets the current pass.
func (m *MetricsCollector) Begin(passID uint64, id agent.ID, speak bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{
		PassID:    passID,
		Agent:     id,
		Speak:     speak,
		StartedAt: time.Now(),
	}
}

// Mark records the latency of one stage.
func (m *MetricsCollector) Mark(stage Stage, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch stage {
	case StageCapture:
		m.current.Capture = d
	case StageTranscribe:
		m.current.Transcribe = d
	case StageRespond:
		m.current.Respond = d
	case StageSynthesize:
		m.current.Synthesize = d
	case StagePlayback:
		m.current.Playback = d
	}
}

// MarkFirstAudio records when playback started.
func (m *MetricsCollector) MarkFirstAudio() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current.FirstAudio == 0 && !m.current.StartedAt.IsZero() {
		m.current.FirstAudio = time.Since(m.current.StartedAt)
	}
}

// Finish archives the current pass with its outcome.
func (m *MetricsCollector) Finish(outcome Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.StartedAt.IsZero() || m.current.Outcome != "" {
		return
	}
	m.current.Outcome = outcome
	m.current.Total = time.Since(m.current.StartedAt)

	m.history = append(m.history, m.current)
	if len(m.history) > historyLimit {
		m.history = m.history[1:]
	}
	if m.onUpdate != nil {
		metrics := m.current
		go m.onUpdate(metrics)
	}
}

// Current returns the current metrics snapshot.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Recent returns up to n archived passes, newest last.
func (m *MetricsCollector) Recent(n int) []Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 || n > len(m.history) {
		n = len(m.history)
	}
	return append([]Metrics(nil), m.history[len(m.history)-n:]...)
}

// Average returns average latencies over completed passes.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg Metrics
	var n time.Duration
	for _, h := range m.history {
		if h.Outcome != OutcomeCompleted {
			continue
		}
		avg.Capture += h.Capture
		avg.Transcribe += h.Transcribe
		avg.Respond += h.Respond
		avg.Synthesize += h.Synthesize
		avg.Playback += h.Playback
		avg.FirstAudio += h.FirstAudio
		avg.Total += h.Total
		n++
	}
	if n == 0 {
		return Metrics{}
	}

	avg.Capture /= n
	avg.Transcribe /= n
	avg.Respond /= n
	avg.Synthesize /= n
	avg.Playback /= n
	avg.FirstAudio /= n
	avg.Total /= n
	avg.Outcome = OutcomeCompleted
	return avg
}

// FormatLatency returns a formatted string of the stage latencies.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.Capture) + " CAP | " +
		formatDuration(m.Transcribe) + " STT | " +
		formatDuration(m.Respond) + " LLM | " +
		formatDuration(m.Synthesize) + " TTS | " +
		formatDuration(m.FirstAudio) + " FIRST | " +
		formatDuration(m.Total) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
