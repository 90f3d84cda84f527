package playback

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/teslashibe/voiceflow/pkg/media"
)

// CommandPlayer plays any container format by piping it into an external
// player such as ffplay or mpv.
type CommandPlayer struct {
	name   string
	args   []string
	logger *slog.Logger
}

// NewCommandPlayer parses a player command line. A bare ffplay or mpv gets
// the flags needed to read stdin and exit at end of stream.
func NewCommandPlayer(command string, logger *slog.Logger) (*CommandPlayer, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("playback: empty player command")
	}
	if logger == nil {
		logger = slog.Default()
	}

	name, args := fields[0], fields[1:]
	if len(args) == 0 {
		switch filepath.Base(name) {
		case "ffplay":
			args = []string{"-nodisp", "-autoexit", "-loglevel", "error", "-i", "-"}
		case "mpv":
			args = []string{"--no-video", "--really-quiet", "-"}
		default:
			args = []string{"-"}
		}
	}
	return &CommandPlayer{name: name, args: args, logger: logger}, nil
}

// Available reports whether the player binary is on PATH.
func (p *CommandPlayer) Available() bool {
	_, err := exec.LookPath(p.name)
	return err == nil
}

// Name returns the player binary name.
func (p *CommandPlayer) Name() string { return "command/" + filepath.Base(p.name) }

// Play runs the player to completion. Cancelling ctx kills it.
func (p *CommandPlayer) Play(ctx context.Context, audio media.Audio) error {
	cmd := exec.CommandContext(ctx, p.name, p.args...)
	cmd.Stdin = bytes.NewReader(audio.Data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", p.name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
