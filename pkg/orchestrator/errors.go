package orchestrator

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/capture"
	"github.com/teslashibe/voiceflow/pkg/inference"
)

var (
	// ErrNotRunning is returned when the event loop has exited.
	ErrNotRunning = errors.New("orchestrator: not running")

	// ErrAlreadyRunning is returned by a second call to Run.
	ErrAlreadyRunning = errors.New("orchestrator: already running")

	// ErrEmptyText is returned by Speak for blank text.
	ErrEmptyText = errors.New("orchestrator: text is empty")

	// ErrNoGrounding is returned when grounding is set on an agent that
	// takes none.
	ErrNoGrounding = errors.New("orchestrator: agent does not accept grounding")
)

// InvalidTransitionError is returned for an event the current status does
// not allow. Nothing changes when it is returned.
type InvalidTransitionError struct {
	From  Status
	Event string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Event, e.From)
}

// CaptureError is returned when the recording cannot be finalized.
type CaptureError struct{ Err error }

func (e *CaptureError) Error() string { return "capture failed: " + e.Err.Error() }
func (e *CaptureError) Unwrap() error { return e.Err }

// PlaybackError is returned when synthesized speech cannot be played.
type PlaybackError struct{ Err error }

func (e *PlaybackError) Error() string { return "playback failed: " + e.Err.Error() }
func (e *PlaybackError) Unwrap() error { return e.Err }

// TimeoutError is returned when a stage exceeds its deadline.
type TimeoutError struct {
	Stage Stage
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Stage, e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ErrorKind is the machine-readable class of a pipeline failure.
type ErrorKind string

const (
	KindDeviceUnavailable ErrorKind = "device_unavailable"
	KindNotRecording      ErrorKind = "not_recording"
	KindCapture           ErrorKind = "capture"
	KindMissingGrounding  ErrorKind = "missing_grounding"
	KindTranscription     ErrorKind = "transcription"
	KindInference         ErrorKind = "inference"
	KindSynthesis         ErrorKind = "synthesis"
	KindPlayback          ErrorKind = "playback"
	KindTimeout           ErrorKind = "timeout"
	KindUnknown           ErrorKind = "unknown"
)

// Classify maps an error onto its kind. Timeouts win over the stage error
// they wrap.
func Classify(err error) ErrorKind {
	var (
		timeout *TimeoutError
		missing *agent.MissingGroundingError
		device  *capture.DeviceUnavailableError
		notRec  *capture.NotRecordingError
		capErr  *CaptureError
		trErr   *inference.TranscriptionError
		infErr  *inference.InferenceError
		synErr  *inference.SynthesisError
		playErr *PlaybackError
	)
	switch {
	case errors.As(err, &timeout):
		return KindTimeout
	case errors.As(err, &missing):
		return KindMissingGrounding
	case errors.As(err, &device):
		return KindDeviceUnavailable
	case errors.As(err, &notRec):
		return KindNotRecording
	case errors.As(err, &capErr):
		return KindCapture
	case errors.As(err, &trErr):
		return KindTranscription
	case errors.As(err, &infErr):
		return KindInference
	case errors.As(err, &synErr):
		return KindSynthesis
	case errors.As(err, &playErr):
		return KindPlayback
	default:
		return KindUnknown
	}
}

// Notification is the user-facing form of a failure.
type Notification struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Stage   Stage     `json:"stage,omitempty"`
}

func notify(stage Stage, err error, profile agent.Profile) Notification {
	kind := Classify(err)
	msg := err.Error()

	switch kind {
	case KindMissingGrounding:
		msg = fmt.Sprintf("%s needs a text or PDF %s before it can answer.", profile.Label, groundingNoun(profile.Kind))
	case KindDeviceUnavailable:
		msg = "Microphone access denied or no microphone found."
	case KindNotRecording:
		msg = "There is no recording to process."
	case KindTimeout:
		var te *TimeoutError
		errors.As(err, &te)
		msg = fmt.Sprintf("The %s step took longer than %s. Please try again.", te.Stage, te.After)
	}
	return Notification{Kind: kind, Message: msg, Stage: stage}
}

func groundingNoun(k agent.Kind) string {
	switch k {
	case agent.KindKnowledgeBase:
		return "knowledge base"
	case agent.KindDocument:
		return "medical report"
	case agent.KindPersona:
		return "persona description"
	default:
		return "grounding"
	}
}
