// Package orchestrator sequences one voice conversation: capture,
// transcription, agent dispatch, synthesis and playback.
//
// All session state is owned by a single event loop started with Run.
// Public methods and pipeline stage completions are delivered to that loop
// one at a time, so the session is never observed mid-transition.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/inference"
	"github.com/teslashibe/voiceflow/pkg/media"
)

// DefaultStageTimeout bounds each inference and capture stage.
const DefaultStageTimeout = 30 * time.Second

const tracerName = "github.com/teslashibe/voiceflow/pkg/orchestrator"

// Capture records microphone audio. capture.Recorder implements it.
type Capture interface {
	Record(ctx context.Context) error
	Stop(ctx context.Context) (media.Audio, error)
	Discard()
}

// Playback plays one payload at a time. playback.Controller implements it.
type Playback interface {
	Play(audio media.Audio, onDone func(error)) error
	Halt()
}

// Inference is the model boundary. inference.Service implements it.
type Inference interface {
	Transcribe(ctx context.Context, audio media.Audio) (string, error)
	Respond(ctx context.Context, req *inference.RespondRequest) (string, error)
	Synthesize(ctx context.Context, text string) (media.Audio, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStageTimeout sets the per-stage deadline.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.stageTimeout = d
		}
	}
}

// WithTracerProvider sets the provider for pipeline spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Orchestrator) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMetrics sets the latency collector.
func WithMetrics(m *MetricsCollector) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// Orchestrator is the conversation state machine.
type Orchestrator struct {
	capture   Capture
	playback  Playback
	inference Inference
	registry  *agent.Registry

	logger       *slog.Logger
	tracer       trace.Tracer
	stageTimeout time.Duration
	metrics      *MetricsCollector

	cmds      chan func()
	events    chan Event
	listeners listeners
	running   atomic.Bool
	done      chan struct{}

	// Owned by the loop.
	sess   *session
	pass   *pass
	passID uint64
}

// pass is one traversal of the pipeline.
type pass struct {
	id      uint64
	speak   bool
	ctx     context.Context
	cancel  context.CancelFunc
	span    trace.Span
	play    trace.Span
	playAt  time.Time
	profile agent.Profile
}

// New creates an orchestrator. Call Run to start processing.
func New(capture Capture, playback Playback, inf Inference, registry *agent.Registry, opts ...Option) (*Orchestrator, error) {
	if capture == nil || playback == nil || inf == nil {
		return nil, errors.New("orchestrator: capture, playback and inference are required")
	}
	if registry == nil || registry.Count() == 0 {
		return nil, errors.New("orchestrator: registry has no agents")
	}

	o := &Orchestrator{
		capture:      capture,
		playback:     playback,
		inference:    inf,
		registry:     registry,
		logger:       slog.Default(),
		tracer:       otel.GetTracerProvider().Tracer(tracerName),
		stageTimeout: DefaultStageTimeout,
		metrics:      NewMetricsCollector(),
		cmds:         make(chan func()),
		events:       make(chan Event, 256),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "orchestrator")
	o.sess = newSession(registry)
	return o, nil
}

// Run processes events until ctx is cancelled. On exit any recording is
// discarded and playback halted.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for ev := range o.events {
			o.listeners.dispatch(ev)
		}
	}()

	o.logger.Info("orchestrator started", "session", o.sess.id, "agent", o.sess.active.ID)

	for {
		select {
		case fn := <-o.cmds:
			fn()
		case <-ctx.Done():
			o.shutdown()
			close(o.done)
			close(o.events)
			<-dispatched
			o.logger.Info("orchestrator stopped")
			return nil
		}
	}
}

func (o *Orchestrator) shutdown() {
	switch o.sess.status {
	case StatusRecording:
		o.capture.Discard()
	case StatusSpeaking:
		o.playback.Halt()
	}
	o.endPass(OutcomeCancelled, nil)
	o.sess.status = StatusIdle
}

// OnEvent registers fn for every session event and returns a function that
// removes it. fn runs on a dispatcher goroutine in event order and must not
// block: once the event buffer fills, the loop waits on the slowest listener.
func (o *Orchestrator) OnEvent(fn func(Event)) func() {
	return o.listeners.add(fn)
}

// Metrics returns the latency collector.
func (o *Orchestrator) Metrics() *MetricsCollector {
	return o.metrics
}

// do runs fn on the loop and waits for its result.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	select {
	case o.cmds <- func() { reply <- fn() }:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrNotRunning
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post delivers a stage completion to the loop.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.cmds <- fn:
	case <-o.done:
	}
}

// Start begins recording. Only valid while idle.
func (o *Orchestrator) Start(ctx context.Context) error {
	return o.do(ctx, func() error {
		if o.sess.status != StatusIdle {
			return &InvalidTransitionError{From: o.sess.status, Event: "start"}
		}
		if err := o.capture.Record(ctx); err != nil {
			o.report(StageCapture, err)
			return err
		}
		o.setStatus(StatusRecording, "start")
		return nil
	})
}

// Stop processes the recording when recording, and interrupts playback
// when speaking.
func (o *Orchestrator) Stop(ctx context.Context) error {
	return o.do(ctx, func() error {
		switch o.sess.status {
		case StatusRecording:
			o.beginPass(false)
			o.setStatus(StatusProcessing, "stop")
			o.runCapture(o.pass)
			return nil
		case StatusSpeaking:
			o.interrupt("stop")
			return nil
		default:
			return &InvalidTransitionError{From: o.sess.status, Event: "stop"}
		}
	})
}

// Cancel abandons whatever is in progress. In-flight stage results are
// discarded and no further turns are appended. Cancel while idle does
// nothing.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	return o.do(ctx, func() error {
		switch o.sess.status {
		case StatusRecording:
			o.capture.Discard()
			o.setStatus(StatusIdle, "cancel")
		case StatusProcessing:
			o.endPass(OutcomeCancelled, nil)
			o.setStatus(StatusIdle, "cancel")
		case StatusSpeaking:
			o.interrupt("cancel")
		}
		return nil
	})
}

func (o *Orchestrator) interrupt(event string) {
	o.playback.Halt()
	o.endPass(OutcomeCancelled, nil)
	o.setStatus(StatusIdle, event)
}

// Speak synthesizes text and plays it without touching the transcript.
func (o *Orchestrator) Speak(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}
	return o.do(ctx, func() error {
		if o.sess.status != StatusIdle {
			return &InvalidTransitionError{From: o.sess.status, Event: "speak"}
		}
		o.beginPass(true)
		o.setStatus(StatusProcessing, "speak")
		o.runSynthesize(o.pass, text)
		return nil
	})
}

// SelectAgent makes id the active agent. The transcript is kept.
func (o *Orchestrator) SelectAgent(ctx context.Context, id agent.ID) error {
	return o.do(ctx, func() error {
		if o.sess.status != StatusIdle {
			return &InvalidTransitionError{From: o.sess.status, Event: "select agent"}
		}
		p, err := o.registry.Get(id)
		if err != nil {
			return err
		}
		if p.ID == o.sess.active.ID {
			return nil
		}
		o.sess.active = p
		o.logger.Debug("agent selected", "agent", p.ID, "kind", p.Kind)
		o.emit(Event{Type: EventAgent, Agent: &p, AgentID: p.ID})
		return nil
	})
}

// SetGrounding stores value in the slot its prefix selects: document data
// URIs go to the document slot, anything else to the text slot.
func (o *Orchestrator) SetGrounding(ctx context.Context, id agent.ID, value string) error {
	return o.editGrounding(ctx, id, func(g agent.Grounding) (agent.Grounding, error) {
		return g.Set(value), nil
	})
}

// SetTextGrounding replaces the text slot of id.
func (o *Orchestrator) SetTextGrounding(ctx context.Context, id agent.ID, text string) error {
	return o.editGrounding(ctx, id, func(g agent.Grounding) (agent.Grounding, error) {
		return g.WithText(text), nil
	})
}

// SetDocumentGrounding replaces the document slot of id. uri must be a PDF
// data URI.
func (o *Orchestrator) SetDocumentGrounding(ctx context.Context, id agent.ID, uri string) error {
	return o.editGrounding(ctx, id, func(g agent.Grounding) (agent.Grounding, error) {
		return g.WithDocument(uri)
	})
}

// ClearGrounding empties one slot of id.
func (o *Orchestrator) ClearGrounding(ctx context.Context, id agent.ID, kind agent.PayloadKind) error {
	return o.editGrounding(ctx, id, func(g agent.Grounding) (agent.Grounding, error) {
		return g.Clear(kind), nil
	})
}

func (o *Orchestrator) editGrounding(ctx context.Context, id agent.ID, edit func(agent.Grounding) (agent.Grounding, error)) error {
	return o.do(ctx, func() error {
		if o.sess.status != StatusIdle {
			return &InvalidTransitionError{From: o.sess.status, Event: "edit grounding"}
		}
		p, err := o.registry.Get(id)
		if err != nil {
			return err
		}
		if !p.RequiresGrounding() {
			return fmt.Errorf("%w: %s", ErrNoGrounding, id)
		}
		g, err := edit(o.sess.grounding[id])
		if err != nil {
			return err
		}
		o.sess.grounding[id] = g

		st := o.sess.snapshot(o.registry).Grounding[id]
		o.logger.Debug("grounding updated", "agent", id, "active", st.Active)
		o.emit(Event{Type: EventGrounding, AgentID: id, Grounding: &st})
		return nil
	})
}

// NewConversation empties the transcript. Agent selection and grounding
// are kept.
func (o *Orchestrator) NewConversation(ctx context.Context) error {
	return o.do(ctx, func() error {
		if o.sess.status != StatusIdle {
			return &InvalidTransitionError{From: o.sess.status, Event: "start new conversation"}
		}
		o.sess.transcript = nil
		o.sess.lastError = nil
		o.emit(Event{Type: EventConversation, SessionID: o.sess.id})
		return nil
	})
}

// Snapshot returns a copy of the session.
func (o *Orchestrator) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := o.do(ctx, func() error {
		snap = o.sess.snapshot(o.registry)
		return nil
	})
	return snap, err
}

func (o *Orchestrator) setStatus(s Status, event string) {
	from := o.sess.status
	if from == s {
		return
	}
	o.sess.status = s
	o.logger.Debug("transition", "from", from, "to", s, "event", event, "pass", o.passID)
	o.emit(Event{Type: EventStatus, Status: s})
}

func (o *Orchestrator) emit(ev Event) {
	ev.At = time.Now()
	o.events <- ev
}

// report surfaces a failure to the user.
func (o *Orchestrator) report(stage Stage, err error) {
	n := notify(stage, err, o.sess.active)
	o.sess.lastError = &n
	o.logger.Warn("stage failed", "stage", stage, "kind", n.Kind, "error", err)
	o.emit(Event{Type: EventError, Error: &n})
}
