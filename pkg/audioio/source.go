package audioio

import (
	"context"
	"io"
)

// AudioChunk represents a chunk of interleaved PCM16 audio.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Bytes returns the chunk as little-endian PCM16 bytes.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// FromBytes populates the chunk from raw PCM16 bytes.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = BytesToSamples(data)
}

// Duration returns the duration of the chunk in seconds.
func (c *AudioChunk) Duration() float64 {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate*c.Channels)
}

// Source captures audio from a microphone.
type Source interface {
	// Start opens the device and begins capture. It fails with
	// ErrDeviceUnavailable when no input device can be opened.
	Start(ctx context.Context) error

	// Stop halts capture and releases the device. The Stream channel is
	// closed once the last chunk has been delivered. Safe to call repeatedly.
	Stop() error

	// Stream returns the channel of captured chunks for the current run.
	Stream() <-chan AudioChunk

	// Config returns the audio configuration.
	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}

// SourceStats contains statistics about an audio source.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"`
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
