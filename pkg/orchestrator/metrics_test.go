package orchestrator

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/capture"
	"github.com/teslashibe/voiceflow/pkg/inference"
)

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector()
	assert.Equal(t, Metrics{}, m.Average())

	m.Begin(1, agent.Generic, false)
	m.Mark(StageTranscribe, 100*time.Millisecond)
	m.Mark(StageRespond, 300*time.Millisecond)
	m.MarkFirstAudio()
	m.Finish(OutcomeCompleted)

	m.Begin(2, agent.Generic, false)
	m.Mark(StageTranscribe, 300*time.Millisecond)
	m.Mark(StageRespond, 500*time.Millisecond)
	m.Finish(OutcomeCompleted)

	m.Begin(3, agent.Generic, false)
	m.Mark(StageTranscribe, time.Hour)
	m.Finish(OutcomeFailed)
	m.Finish(OutcomeCompleted)

	recent := m.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, OutcomeFailed, recent[2].Outcome, "finish archives once")

	avg := m.Average()
	assert.Equal(t, 200*time.Millisecond, avg.Transcribe, "failed passes are not averaged")
	assert.Equal(t, 400*time.Millisecond, avg.Respond)
}

func TestMetricsCollector_HistoryLimit(t *testing.T) {
	m := NewMetricsCollector()
	for i := 1; i <= historyLimit+10; i++ {
		m.Begin(uint64(i), agent.Generic, false)
		m.Finish(OutcomeCompleted)
	}

	recent := m.Recent(0)
	require.Len(t, recent, historyLimit)
	assert.Equal(t, uint64(11), recent[0].PassID)
	assert.Len(t, m.Recent(5), 5)
}

func TestMetricsCollector_OnUpdate(t *testing.T) {
	m := NewMetricsCollector()
	got := make(chan Metrics, 1)
	m.OnUpdate(func(x Metrics) { got <- x })

	m.Begin(7, agent.ElderCare, true)
	m.Finish(OutcomeCancelled)

	select {
	case x := <-got:
		assert.Equal(t, uint64(7), x.PassID)
		assert.Equal(t, OutcomeCancelled, x.Outcome)
	case <-time.After(time.Second):
		t.Fatal("no update")
	}
}

func TestFormatLatency(t *testing.T) {
	m := Metrics{Transcribe: 1234 * time.Microsecond}
	s := m.FormatLatency()
	assert.Contains(t, s, "1ms STT")
	assert.Contains(t, s, "---ms TOTAL")
}

func TestClassify(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		err  error
		want ErrorKind
	}{
		{&capture.DeviceUnavailableError{Err: boom}, KindDeviceUnavailable},
		{&CaptureError{Err: &capture.NotRecordingError{}}, KindNotRecording},
		{&CaptureError{Err: boom}, KindCapture},
		{&agent.MissingGroundingError{Agent: agent.ElderCare, Kind: agent.KindDocument}, KindMissingGrounding},
		{&inference.TranscriptionError{Err: boom}, KindTranscription},
		{&inference.InferenceError{Err: boom}, KindInference},
		{&inference.SynthesisError{Err: boom}, KindSynthesis},
		{&PlaybackError{Err: boom}, KindPlayback},
		{&TimeoutError{Stage: StageRespond, Err: &inference.InferenceError{Err: boom}}, KindTimeout},
		{fmt.Errorf("wrapped: %w", &PlaybackError{Err: boom}), KindPlayback},
		{boom, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestNotify_Messages(t *testing.T) {
	elder := agent.Profile{ID: agent.ElderCare, Label: "Elder Care Assistant", Kind: agent.KindDocument}

	n := notify(StageResolve, &agent.MissingGroundingError{Agent: elder.ID, Kind: elder.Kind}, elder)
	assert.Equal(t, KindMissingGrounding, n.Kind)
	assert.Equal(t, "Elder Care Assistant needs a text or PDF medical report before it can answer.", n.Message)

	n = notify(StageSynthesize, &inference.SynthesisError{Err: errors.New("quota")}, elder)
	assert.Equal(t, "speech synthesis failed: quota", n.Message)

	n = notify(StageTranscribe, &TimeoutError{Stage: StageTranscribe, After: 30 * time.Second}, elder)
	assert.Equal(t, "The transcribe step took longer than 30s. Please try again.", n.Message)

	invalid := &InvalidTransitionError{From: StatusSpeaking, Event: "start"}
	assert.Equal(t, "cannot start while speaking", invalid.Error())
}
