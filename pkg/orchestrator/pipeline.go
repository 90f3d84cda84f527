package orchestrator

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/inference"
	"github.com/teslashibe/voiceflow/pkg/media"
)

func (o *Orchestrator) beginPass(speak bool) {
	o.passID++
	profile := o.sess.active

	ctx, span := o.tracer.Start(context.Background(), "voiceflow.pass",
		trace.WithAttributes(
			attribute.Int64("voiceflow.pass", int64(o.passID)),
			attribute.String("voiceflow.agent", string(profile.ID)),
			attribute.Bool("voiceflow.speak", speak),
		))
	ctx, cancel := context.WithCancel(ctx)

	o.pass = &pass{
		id:      o.passID,
		speak:   speak,
		ctx:     ctx,
		cancel:  cancel,
		span:    span,
		profile: profile,
	}
	o.metrics.Begin(o.passID, profile.ID, speak)
}

// endPass releases the current pass. Completions still in flight for it
// are dropped by current.
func (o *Orchestrator) endPass(outcome Outcome, err error) {
	p := o.pass
	if p == nil {
		return
	}
	o.pass = nil
	p.cancel()

	if p.play != nil {
		o.metrics.Mark(StagePlayback, time.Since(p.playAt))
		p.play.End()
	}
	p.span.SetAttributes(attribute.String("voiceflow.outcome", string(outcome)))
	if err != nil {
		p.span.RecordError(err)
		p.span.SetStatus(codes.Error, err.Error())
	}
	p.span.End()
	o.metrics.Finish(outcome)
}

func (o *Orchestrator) current(p *pass) bool {
	return o.pass != nil && o.pass == p
}

// fail ends the pass on a stage failure. Turns already appended stay.
func (o *Orchestrator) fail(p *pass, stage Stage, err error) {
	o.endPass(OutcomeFailed, err)
	o.report(stage, err)
	o.setStatus(StatusIdle, "fail")
}

// runStage runs fn off the loop with the stage deadline and hands its
// result back to the loop. Results for a pass that has ended are dropped.
func (o *Orchestrator) runStage(p *pass, stage Stage, fn func(ctx context.Context) error, done func(err error)) {
	timeout := o.stageTimeout
	go func() {
		ctx, span := o.tracer.Start(p.ctx, "voiceflow."+string(stage))
		ctx, cancel := context.WithTimeout(ctx, timeout)

		start := time.Now()
		err := fn(ctx)
		if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) && p.ctx.Err() == nil {
			err = &TimeoutError{Stage: stage, After: timeout, Err: err}
		}
		cancel()
		elapsed := time.Since(start)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		o.post(func() {
			if !o.current(p) {
				o.logger.Debug("dropped stale stage result", "stage", stage, "pass", p.id)
				return
			}
			o.metrics.Mark(stage, elapsed)
			done(err)
		})
	}()
}

func (o *Orchestrator) runCapture(p *pass) {
	var audio media.Audio
	o.runStage(p, StageCapture, func(ctx context.Context) error {
		var err error
		audio, err = o.capture.Stop(ctx)
		return err
	}, func(err error) {
		if err != nil {
			var te *TimeoutError
			if !errors.As(err, &te) {
				err = &CaptureError{Err: err}
			}
			o.fail(p, StageCapture, err)
			return
		}
		o.runTranscribe(p, audio)
	})
}

func (o *Orchestrator) runTranscribe(p *pass, audio media.Audio) {
	var text string
	o.runStage(p, StageTranscribe, func(ctx context.Context) error {
		var err error
		text, err = o.inference.Transcribe(ctx, audio)
		return err
	}, func(err error) {
		if err != nil {
			o.fail(p, StageTranscribe, err)
			return
		}

		turn := o.sess.appendTurn(SpeakerUser, text)
		o.emit(Event{Type: EventTurn, Turn: &turn})

		// Grounding is resolved against the agent active when the pass
		// began, before any call is made.
		payload, err := agent.Resolve(p.profile, o.sess.grounding[p.profile.ID])
		if err != nil {
			o.fail(p, StageResolve, err)
			return
		}
		o.runRespond(p, &inference.RespondRequest{
			Kind:      p.profile.Kind,
			Grounding: payload,
			Query:     text,
		})
	})
}

func (o *Orchestrator) runRespond(p *pass, req *inference.RespondRequest) {
	var reply string
	o.runStage(p, StageRespond, func(ctx context.Context) error {
		var err error
		reply, err = o.inference.Respond(ctx, req)
		return err
	}, func(err error) {
		if err != nil {
			o.fail(p, StageRespond, err)
			return
		}

		turn := o.sess.appendTurn(SpeakerAgent, reply)
		o.emit(Event{Type: EventTurn, Turn: &turn})
		o.runSynthesize(p, reply)
	})
}

func (o *Orchestrator) runSynthesize(p *pass, text string) {
	var speech media.Audio
	o.runStage(p, StageSynthesize, func(ctx context.Context) error {
		var err error
		speech, err = o.inference.Synthesize(ctx, text)
		return err
	}, func(err error) {
		if err != nil {
			o.fail(p, StageSynthesize, err)
			return
		}
		o.startPlayback(p, speech)
	})
}

func (o *Orchestrator) startPlayback(p *pass, speech media.Audio) {
	_, p.play = o.tracer.Start(p.ctx, "voiceflow."+string(StagePlayback))
	p.playAt = time.Now()

	err := o.playback.Play(speech, func(err error) {
		o.post(func() { o.playbackDone(p, err) })
	})
	if err != nil {
		o.fail(p, StagePlayback, &PlaybackError{Err: err})
		return
	}
	o.metrics.MarkFirstAudio()
	o.setStatus(StatusSpeaking, "synthesized")
}

// playbackDone handles natural completion. Completions of halted payloads
// never reach here while speaking a newer pass.
func (o *Orchestrator) playbackDone(p *pass, err error) {
	if !o.current(p) || o.sess.status != StatusSpeaking {
		o.logger.Debug("dropped stale playback completion", "pass", p.id)
		return
	}
	if err != nil {
		o.fail(p, StagePlayback, &PlaybackError{Err: err})
		return
	}
	o.endPass(OutcomeCompleted, nil)
	o.setStatus(StatusIdle, "playback done")
}
