// Package app wires voiceflow's components together and manages their
// lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/voiceflow/internal/config"
	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/audioio"
	"github.com/teslashibe/voiceflow/pkg/capture"
	"github.com/teslashibe/voiceflow/pkg/inference"
	"github.com/teslashibe/voiceflow/pkg/orchestrator"
	"github.com/teslashibe/voiceflow/pkg/playback"
	"github.com/teslashibe/voiceflow/pkg/web"
)

// App owns every component of one voiceflow process.
type App struct {
	config *config.Config
	logger *slog.Logger

	registry     *agent.Registry
	sink         audioio.Sink
	recorder     *capture.Recorder
	player       *playback.Controller
	inference    *inference.Service
	orchestrator *orchestrator.Orchestrator
	webServer    *web.Server

	shutdownOnce sync.Once
}

// New creates an application for cfg.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		config:   cfg,
		logger:   logger,
		registry: agent.DefaultRegistry(),
	}, nil
}

// Init builds every component. Call it after New and before Run.
func (a *App) Init(ctx context.Context) error {
	if err := a.initAudio(); err != nil {
		return fmt.Errorf("audio init: %w", err)
	}

	svc, err := BuildInference(ctx, a.config.Inference, a.logger)
	if err != nil {
		return fmt.Errorf("inference init: %w", err)
	}
	a.inference = svc
	a.logger.Info("inference ready", "providers", svc.Providers())

	a.orchestrator, err = orchestrator.New(a.recorder, a.player, a.inference, a.registry,
		orchestrator.WithLogger(a.logger),
		orchestrator.WithStageTimeout(a.config.Orchestrator.StageTimeout),
	)
	if err != nil {
		return fmt.Errorf("orchestrator init: %w", err)
	}

	a.webServer = web.NewServer(a.orchestrator, a.registry, web.Config{
		Port:      a.config.App.HTTPPort,
		StaticDir: a.config.App.StaticDir,
	}, a.logger)
	return nil
}

func (a *App) initAudio() error {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.Backend(a.config.Audio.Backend)
	cfg.SampleRate = a.config.Audio.SampleRate
	cfg.Channels = a.config.Audio.Channels
	cfg.Device = a.config.Audio.Device

	source, err := audioio.NewSource(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	a.recorder = capture.NewRecorder(source, capture.WithLogger(a.logger))
	a.logger.Info("audio ready", "backend", cfg.Backend, "available", audioio.AvailableBackends())

	// Speech is resampled to the sink rate on playback.
	sink, err := audioio.NewSink(cfg, a.logger)
	if err != nil {
		return fmt.Errorf("sink: %w", err)
	}
	a.sink = sink

	var command *playback.CommandPlayer
	if a.config.Audio.PlayerCommand != "" {
		command, err = playback.NewCommandPlayer(a.config.Audio.PlayerCommand, a.logger)
		if err != nil {
			return fmt.Errorf("player: %w", err)
		}
		if !command.Available() {
			a.logger.Warn("player command not found, compressed speech cannot play", "command", a.config.Audio.PlayerCommand)
		}
	}

	a.player = playback.NewController(
		playback.NewAutoPlayer(playback.NewSinkPlayer(sink, a.logger), command),
		a.logger,
	)
	return nil
}

// Run serves the web UI and processes the conversation until ctx is
// cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- a.orchestrator.Run(ctx) }()
	go func() { errCh <- a.webServer.Start(ctx) }()

	a.logger.Info("voiceflow ready", "url", "http://localhost:"+a.config.App.HTTPPort)

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
			cancel()
		}
	}
	return firstErr
}

// Shutdown releases the audio devices.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		if a.recorder != nil {
			if err := a.recorder.Close(); err != nil {
				a.logger.Warn("close recorder", "error", err)
			}
		}
		if a.sink != nil {
			if err := a.sink.Close(); err != nil {
				a.logger.Warn("close sink", "error", err)
			}
		}
		a.logger.Info("voiceflow stopped")
	})
}
