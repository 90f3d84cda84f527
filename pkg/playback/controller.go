// Package playback plays synthesized speech and reports when it ends.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/voiceflow/pkg/media"
)

// Player renders one payload to the speaker. Play blocks until playback
// ends naturally or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio media.Audio) error
	Name() string
}

// Controller runs at most one payload at a time on a Player. A payload that
// is halted never reports completion, even if its player finishes later.
type Controller struct {
	player Player
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64
	playing bool
	cancel  context.CancelFunc
	started time.Time
}

// NewController creates a controller over player.
func NewController(player Player, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{player: player, logger: logger}
}

// Play starts audio in the background. onDone runs once with the player's
// result when playback ends naturally; it never runs after Halt.
func (c *Controller) Play(audio media.Audio, onDone func(error)) error {
	if audio.Empty() {
		return ErrEmptyPayload
	}

	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return ErrAlreadyPlaying
	}
	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.playing = true
	c.cancel = cancel
	c.started = time.Now()
	c.mu.Unlock()

	c.logger.Debug("playback started", "player", c.player.Name(), "media_type", audio.MediaType, "bytes", len(audio.Data))

	go func() {
		err := c.player.Play(ctx, audio)
		cancel()

		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			c.logger.Debug("suppressed completion of halted playback")
			return
		}
		c.playing = false
		c.cancel = nil
		elapsed := time.Since(c.started)
		c.mu.Unlock()

		c.logger.Debug("playback finished", "duration", elapsed.Round(time.Millisecond), "error", err)
		if onDone != nil {
			onDone(err)
		}
	}()
	return nil
}

// Halt stops the current payload immediately and drops its completion.
// Halting with nothing playing has no effect.
func (c *Controller) Halt() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing {
		return
	}
	c.gen++
	c.playing = false
	c.cancel()
	c.cancel = nil
	c.logger.Debug("playback halted")
}

// Playing reports whether a payload is playing.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}
