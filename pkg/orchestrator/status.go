package orchestrator

// Status is the session state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRecording  Status = "recording"
	StatusProcessing Status = "processing"
	StatusSpeaking   Status = "speaking"
)

// Stage names one suspension point of a pipeline pass.
type Stage string

const (
	StageCapture    Stage = "capture"
	StageTranscribe Stage = "transcribe"
	StageResolve    Stage = "resolve_grounding"
	StageRespond    Stage = "respond"
	StageSynthesize Stage = "synthesize"
	StagePlayback   Stage = "playback"
)
