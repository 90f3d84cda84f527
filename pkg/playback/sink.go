package playback

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strconv"

	"github.com/teslashibe/voiceflow/pkg/audioio"
	"github.com/teslashibe/voiceflow/pkg/media"
)

// SinkPlayer plays PCM payloads (WAV or audio/L16) through an audioio.Sink,
// resampling to the sink's rate.
type SinkPlayer struct {
	sink   audioio.Sink
	logger *slog.Logger
}

// NewSinkPlayer creates a player writing to sink.
func NewSinkPlayer(sink audioio.Sink, logger *slog.Logger) *SinkPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SinkPlayer{sink: sink, logger: logger}
}

// Name returns the sink backend name.
func (p *SinkPlayer) Name() string { return "sink/" + p.sink.Name() }

// CanPlay reports whether the payload is raw or WAV-framed PCM.
func (p *SinkPlayer) CanPlay(audio media.Audio) bool {
	switch media.FormatFromMediaType(audio.MediaType) {
	case "wav", "pcm":
		return true
	}
	return false
}

// Play decodes the payload and streams it to the sink.
func (p *SinkPlayer) Play(ctx context.Context, audio media.Audio) error {
	pcm, err := decodePCM(audio)
	if err != nil {
		return err
	}

	cfg := p.sink.Config()
	samples := audioio.Resample(audioio.Downmix(pcm.Samples, pcm.Channels), pcm.SampleRate, cfg.SampleRate)

	if err := p.sink.Start(ctx); err != nil {
		return fmt.Errorf("start sink: %w", err)
	}
	defer p.sink.Stop()

	step := cfg.BufferSize()
	if step <= 0 {
		step = len(samples)
	}
	for off := 0; off < len(samples); off += step {
		if ctx.Err() != nil {
			p.sink.Clear()
			return ctx.Err()
		}
		end := min(off+step, len(samples))
		chunk := audioio.AudioChunk{Samples: samples[off:end], SampleRate: cfg.SampleRate, Channels: 1}
		if err := p.sink.Write(ctx, chunk); err != nil {
			p.sink.Clear()
			return fmt.Errorf("write sink: %w", err)
		}
	}

	flushDone := make(chan error, 1)
	go func() { flushDone <- p.sink.Flush(ctx) }()

	select {
	case err := <-flushDone:
		if ctx.Err() != nil {
			p.sink.Clear()
			return ctx.Err()
		}
		return err
	case <-ctx.Done():
		p.sink.Clear()
		<-flushDone
		return ctx.Err()
	}
}

func decodePCM(audio media.Audio) (media.PCM, error) {
	switch media.FormatFromMediaType(audio.MediaType) {
	case "wav":
		return media.DecodeWAV(audio.Data)
	case "pcm":
		// audio/L16 is big-endian per RFC 2586; most TTS APIs send
		// little-endian and say so with no parameter, so honour only rate
		// and channels.
		rate, channels := 24000, 1
		if _, params, err := mime.ParseMediaType(audio.MediaType); err == nil {
			if v, err := strconv.Atoi(params["rate"]); err == nil && v > 0 {
				rate = v
			}
			if v, err := strconv.Atoi(params["channels"]); err == nil && v > 0 {
				channels = v
			}
		}
		return media.PCM{Samples: audioio.BytesToSamples(audio.Data), SampleRate: rate, Channels: channels}, nil
	default:
		return media.PCM{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, audio.MediaType)
	}
}
