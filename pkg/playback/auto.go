package playback

import (
	"context"
	"fmt"

	"github.com/teslashibe/voiceflow/pkg/media"
)

// AutoPlayer routes PCM payloads to a sink and everything else to an
// external command player.
type AutoPlayer struct {
	sink    *SinkPlayer
	command *CommandPlayer
}

// NewAutoPlayer combines the two players. Either may be nil.
func NewAutoPlayer(sink *SinkPlayer, command *CommandPlayer) *AutoPlayer {
	return &AutoPlayer{sink: sink, command: command}
}

// Name returns "auto".
func (p *AutoPlayer) Name() string { return "auto" }

// Play dispatches on the payload's media type.
func (p *AutoPlayer) Play(ctx context.Context, audio media.Audio) error {
	if p.sink != nil && p.sink.CanPlay(audio) {
		return p.sink.Play(ctx, audio)
	}
	if p.command != nil {
		return p.command.Play(ctx, audio)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, audio.MediaType)
}
