package audioio

import (
	"context"
	"io"
)

// Sink plays PCM audio to a speaker.
type Sink interface {
	// Start opens the output device.
	Start(ctx context.Context) error

	// Stop closes the output device. Safe to call repeatedly.
	Stop() error

	// Write queues a chunk for playback. It may block on a full buffer.
	Write(ctx context.Context, chunk AudioChunk) error

	// Flush waits for queued audio to finish playing.
	Flush(ctx context.Context) error

	// Clear drops queued audio immediately.
	Clear() error

	Config() Config
	Name() string
	io.Closer
}
