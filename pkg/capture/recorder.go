// Package capture records one utterance at a time from an audio source and
// hands it back as a WAV payload.
package capture

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/voiceflow/pkg/audioio"
	"github.com/teslashibe/voiceflow/pkg/media"
)

// Recorder owns the microphone for the duration of a single recording.
// The device is held only between Record and Stop or Discard.
type Recorder struct {
	source      audioio.Source
	logger      *slog.Logger
	maxDuration time.Duration

	mu     sync.Mutex
	active *recording
}

type recording struct {
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	// written only by collect until done is closed
	samples []int16
	dropped int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMaxDuration caps how much audio one recording keeps. Zero is no cap.
func WithMaxDuration(d time.Duration) Option {
	return func(r *Recorder) {
		r.maxDuration = d
	}
}

// NewRecorder creates a recorder over source.
func NewRecorder(source audioio.Source, opts ...Option) *Recorder {
	r := &Recorder{
		source:      source,
		logger:      slog.Default(),
		maxDuration: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record acquires the device and starts buffering audio.
func (r *Recorder) Record(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		return ErrAlreadyRecording
	}

	// The recording outlives the caller's request.
	recCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if err := r.source.Start(recCtx); err != nil {
		cancel()
		_ = r.source.Stop()
		return &DeviceUnavailableError{Err: err}
	}

	rec := &recording{
		cancel:  cancel,
		done:    make(chan struct{}),
		started: time.Now(),
	}
	r.active = rec
	go r.collect(rec, r.source.Stream())

	r.logger.Info("recording started", "backend", r.source.Name())
	return nil
}

func (r *Recorder) collect(rec *recording, stream <-chan audioio.AudioChunk) {
	defer close(rec.done)

	cfg := r.source.Config()
	limit := 0
	if r.maxDuration > 0 {
		limit = int(r.maxDuration.Seconds() * float64(cfg.SampleRate*cfg.Channels))
	}

	for chunk := range stream {
		if limit > 0 && len(rec.samples)+len(chunk.Samples) > limit {
			rec.dropped += len(chunk.Samples)
			continue
		}
		rec.samples = append(rec.samples, chunk.Samples...)
	}
}

// release stops the device and waits for the collector. Callers hold r.mu.
func (r *Recorder) release(ctx context.Context) (*recording, error) {
	rec := r.active
	r.active = nil

	stopErr := r.source.Stop()
	rec.cancel()

	select {
	case <-rec.done:
		return rec, stopErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop finalizes the recording into a WAV payload and releases the device.
func (r *Recorder) Stop(ctx context.Context) (media.Audio, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return media.Audio{}, &NotRecordingError{}
	}

	rec, err := r.release(ctx)
	if rec == nil {
		return media.Audio{}, err
	}
	if err != nil {
		r.logger.Warn("audio source stop failed", "error", err)
	}

	cfg := r.source.Config()
	audio := media.Audio{
		MediaType: media.AudioWAV,
		Data: media.EncodeWAV(media.PCM{
			Samples:    rec.samples,
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
		}),
	}

	r.logger.Info("recording stopped",
		"duration", time.Since(rec.started).Round(time.Millisecond),
		"samples", len(rec.samples),
		"dropped", rec.dropped,
		"level", audioio.RMS(rec.samples),
	)
	return audio, nil
}

// Discard releases the device and drops buffered audio. It is a no-op when
// nothing is recording.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil {
		return
	}
	if _, err := r.release(context.Background()); err != nil {
		r.logger.Warn("discard: audio source stop failed", "error", err)
	}
	r.logger.Info("recording discarded")
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Close discards any recording and closes the source.
func (r *Recorder) Close() error {
	r.Discard()
	return r.source.Close()
}
