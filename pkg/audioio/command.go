package audioio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// stopGrace is how long a capture process gets to flush after SIGINT.
const stopGrace = 500 * time.Millisecond

// captureCommand returns the recorder invocation for raw PCM16 on stdout.
func captureCommand(cfg Config) (string, []string) {
	rate := strconv.Itoa(cfg.SampleRate)
	ch := strconv.Itoa(cfg.Channels)
	if runtime.GOOS == "linux" {
		args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch}
		if cfg.Device != "" {
			args = append(args, "-D", cfg.Device)
		}
		return "arecord", args
	}
	return "rec", []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-r", rate, "-c", ch, "-"}
}

// playbackCommand returns the player invocation reading raw PCM16 on stdin.
func playbackCommand(cfg Config) (string, []string) {
	rate := strconv.Itoa(cfg.SampleRate)
	ch := strconv.Itoa(cfg.Channels)
	if runtime.GOOS == "linux" {
		args := []string{"-q", "-t", "raw", "-f", "S16_LE", "-r", rate, "-c", ch}
		if cfg.Device != "" {
			args = append(args, "-D", cfg.Device)
		}
		return "aplay", args
	}
	return "play", []string{"-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-r", rate, "-c", ch, "-"}
}

// CommandAvailable reports whether the platform capture and playback tools
// are on PATH.
func CommandAvailable() bool {
	cfg := DefaultConfig()
	rec, _ := captureCommand(cfg)
	play, _ := playbackCommand(cfg)
	if _, err := exec.LookPath(rec); err != nil {
		return false
	}
	_, err := exec.LookPath(play)
	return err == nil
}

func newDeviceCommand(cfg Config, name string, args []string) *exec.Cmd {
	cmd := exec.Command(name, args...)
	if cfg.Device != "" && runtime.GOOS != "linux" {
		// sox selects its device from the environment.
		cmd.Env = append(os.Environ(), "AUDIODEV="+cfg.Device)
	}
	return cmd
}

// CommandSource captures audio by reading a recorder process's stdout.
type CommandSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	cmd      *exec.Cmd
	stderr   bytes.Buffer
	streamCh chan AudioChunk
	done     chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewCommandSource creates a source backed by arecord or sox rec.
func NewCommandSource(cfg Config, logger *slog.Logger) *CommandSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk),
	}
}

// Start launches the recorder process.
func (s *CommandSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	name, args := captureCommand(s.cfg)
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	cmd := newDeviceCommand(s.cfg, name, args)
	s.stderr.Reset()
	cmd.Stderr = &s.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	s.cmd = cmd
	s.running = true
	s.streamCh = make(chan AudioChunk, 64)
	s.done = make(chan struct{})
	go s.readLoop(stdout, s.streamCh, s.done)

	s.logger.Info("command audio source started", "command", name, "sample_rate", s.cfg.SampleRate)
	return nil
}

func (s *CommandSource) readLoop(r io.Reader, out chan<- AudioChunk, done chan<- struct{}) {
	defer close(done)
	defer close(out)

	buf := make([]byte, s.cfg.BufferBytes())
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			var chunk AudioChunk
			chunk.FromBytes(buf[:n-n%2], s.cfg.SampleRate, s.cfg.Channels)
			select {
			case out <- chunk:
				s.chunksRead.Add(1)
				s.samplesRead.Add(int64(len(chunk.Samples)))
			default:
				s.overruns.Add(1)
			}
		}
		if err != nil {
			return
		}
	}
}

// Stop interrupts the recorder, waits for the remaining output and reaps
// the process.
func (s *CommandSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		_ = s.cmd.Process.Kill()
	}
	select {
	case <-s.done:
	case <-time.After(stopGrace):
		_ = s.cmd.Process.Kill()
		<-s.done
	}

	err := s.cmd.Wait()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		s.logger.Warn("recorder wait failed", "error", err)
	}
	if s.chunksRead.Load() == 0 && s.stderr.Len() > 0 {
		s.logger.Warn("recorder produced no audio", "stderr", s.stderr.String())
	}

	s.logger.Info("command audio source stopped")
	return nil
}

// Stream returns the chunk channel of the current run.
func (s *CommandSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *CommandSource) Config() Config { return s.cfg }

// Name returns "command".
func (s *CommandSource) Name() string { return string(BackendCommand) }

// Close stops capture and prevents restarts.
func (s *CommandSource) Close() error {
	err := s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

// Stats returns source statistics.
func (s *CommandSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     s.Name(),
	}
}

var _ SourceWithStats = (*CommandSource)(nil)

// CommandSink plays audio by writing raw PCM to a player process's stdin.
type CommandSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	exited  chan struct{}
	exitErr error
}

// NewCommandSink creates a sink backed by aplay or sox play.
func NewCommandSink(cfg Config, logger *slog.Logger) *CommandSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CommandSink{cfg: cfg, logger: logger}
}

// Start launches the player process.
func (s *CommandSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	name, args := playbackCommand(s.cfg)
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	cmd := newDeviceCommand(s.cfg, name, args)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	exited := make(chan struct{})
	s.cmd = cmd
	s.stdin = stdin
	s.exited = exited
	s.running = true

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.exitErr = err
		if s.cmd == cmd {
			s.running = false
		}
		s.mu.Unlock()
		close(exited)
	}()
	return nil
}

// Write sends a chunk to the player.
func (s *CommandSink) Write(ctx context.Context, chunk AudioChunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	stdin := s.stdin
	running := s.running
	s.mu.Unlock()

	if !running {
		return io.ErrClosedPipe
	}
	_, err := stdin.Write(chunk.Bytes())
	return err
}

// Flush closes the player's input and waits for it to drain.
func (s *CommandSink) Flush(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cmd, exited := s.cmd, s.exited
	_ = s.stdin.Close()
	s.mu.Unlock()

	select {
	case <-exited:
		s.mu.Lock()
		err := s.exitErr
		s.mu.Unlock()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// Killed by Clear or Stop.
			return nil
		}
		return err
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-exited
		return ctx.Err()
	}
}

// Clear kills the player, dropping whatever it has buffered.
func (s *CommandSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		_ = s.stdin.Close()
		_ = s.cmd.Process.Kill()
	}
	return nil
}

// Stop kills the player if it is still running.
func (s *CommandSink) Stop() error {
	return s.Clear()
}

// Config returns the audio configuration.
func (s *CommandSink) Config() Config { return s.cfg }

// Name returns "command".
func (s *CommandSink) Name() string { return string(BackendCommand) }

// Close stops playback and prevents restarts.
func (s *CommandSink) Close() error {
	err := s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}
