// Package audioio provides microphone capture and speaker output.
//
// Backends:
//   - command: pipes raw PCM through arecord/aplay (Linux) or sox rec/play (macOS)
//   - mock: synthetic audio for tests and CI
//
// BackendAuto picks command when the platform tools are installed.
package audioio

import (
	"fmt"
	"time"
)

// Backend represents the audio backend type.
type Backend string

const (
	BackendAuto    Backend = "auto"
	BackendCommand Backend = "command"
	BackendMock    Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	Backend Backend `json:"backend"`

	// SampleRate is the capture rate in Hz. Default: 16000 (speech models).
	SampleRate int `json:"sample_rate"`

	// Channels is the number of audio channels. Default: 1.
	Channels int `json:"channels"`

	// BufferDuration is the size of each captured chunk. Default: 20ms.
	BufferDuration time.Duration `json:"buffer_duration"`

	// Device is the platform device name ("default", "hw:1,0"). Empty uses
	// the system default.
	Device string `json:"device"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendAuto,
		SampleRate:     16000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	return nil
}

// BufferSize returns the number of frames per buffer.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}

// BufferBytes returns the size of a buffer in bytes.
func (c *Config) BufferBytes() int {
	return c.BufferSize() * c.Channels * 2
}
