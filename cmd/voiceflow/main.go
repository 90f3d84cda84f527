// voiceflow - spoken conversations with configurable AI agents.
// Record, transcribe, dispatch to the selected agent, synthesize and play,
// driven from the web UI.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/teslashibe/voiceflow/internal/app"
	"github.com/teslashibe/voiceflow/internal/config"
	"github.com/teslashibe/voiceflow/internal/log"
)

func main() {
	debug := flag.Bool("debug", false, "Enable debug logging (overrides LOG_LEVEL)")
	port := flag.String("port", "", "HTTP port (overrides HTTP_PORT)")
	backend := flag.String("audio", "", "Audio backend: auto, command, mock (overrides AUDIO_BACKEND)")
	flag.Parse()

	if *port != "" {
		os.Setenv("HTTP_PORT", *port)
	}
	if *backend != "" {
		os.Setenv("AUDIO_BACKEND", *backend)
	}
	if *debug {
		os.Setenv("LOG_LEVEL", "debug")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	log.Init(cfg.App.LogLevel, cfg.App.LogFile)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg, log.L())
	if err != nil {
		log.Error("configuration error", "error", err)
		os.Exit(1)
	}
	if err := a.Init(ctx); err != nil {
		log.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer a.Shutdown()

	if err := a.Run(ctx); err != nil {
		log.Error("runtime error", "error", err)
		a.Shutdown()
		os.Exit(1)
	}
}
