// Package web hosts the interactive UI: an HTTP control API for the
// conversation and a websocket stream of session events.
package web

import (
	"context"
	"log/slog"
	"net"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/hub"
	"github.com/teslashibe/voiceflow/pkg/orchestrator"
)

// maxBodySize admits base64 PDF grounding in JSON bodies.
const maxBodySize = 20 * 1024 * 1024

// Orchestrator is the conversation surface the server drives.
// *orchestrator.Orchestrator implements it.
type Orchestrator interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Cancel(ctx context.Context) error
	Speak(ctx context.Context, text string) error
	SelectAgent(ctx context.Context, id agent.ID) error
	SetTextGrounding(ctx context.Context, id agent.ID, text string) error
	SetDocumentGrounding(ctx context.Context, id agent.ID, uri string) error
	ClearGrounding(ctx context.Context, id agent.ID, kind agent.PayloadKind) error
	NewConversation(ctx context.Context) error
	Snapshot(ctx context.Context) (orchestrator.Snapshot, error)
	OnEvent(fn func(orchestrator.Event)) func()
	Metrics() *orchestrator.MetricsCollector
}

// Config configures the server.
type Config struct {
	Port string

	// StaticDir, when set, is served at "/".
	StaticDir string
}

// Server is the web UI host.
type Server struct {
	app      *fiber.App
	cfg      Config
	orch     Orchestrator
	registry *agent.Registry
	events   *hub.Hub
	validate *validator.Validate
	logger   *slog.Logger
}

// NewServer creates a server over orch.
func NewServer(orch Orchestrator, registry *agent.Registry, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		orch:     orch,
		registry: registry,
		events:   hub.New("events", logger),
		validate: validator.New(),
		logger:   logger.With("component", "web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "voiceflow",
		DisableStartupMessage: true,
		BodyLimit:             maxBodySize,
		ErrorHandler:          s.handleError,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/agents", s.handleListAgents)
	api.Put("/agent", s.handleSelectAgent)
	api.Put("/agents/:id/grounding", s.handleSetGrounding)
	api.Post("/agents/:id/document", s.handleUploadDocument)
	api.Delete("/agents/:id/grounding/:kind", s.handleClearGrounding)
	api.Post("/record/start", s.handleStart)
	api.Post("/record/stop", s.handleStop)
	api.Post("/cancel", s.handleCancel)
	api.Post("/speak", s.handleSpeak)
	api.Post("/conversation/new", s.handleNewConversation)
	api.Get("/metrics", s.handleMetrics)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Hub returns the event hub.
func (s *Server) Hub() *hub.Hub {
	return s.events
}

// Start serves on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled. Orchestrator events and pass
// metrics are forwarded to websocket clients meanwhile.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.events.Run(ctx)

	unsubscribe := s.orch.OnEvent(func(ev orchestrator.Event) {
		if err := s.events.BroadcastJSON(ev); err != nil {
			s.logger.Warn("event encode failed", "type", ev.Type, "error", err)
		}
	})
	defer unsubscribe()

	s.orch.Metrics().OnUpdate(func(m orchestrator.Metrics) {
		_ = s.events.BroadcastJSON(metricsEvent{Type: "metrics", Metrics: m})
	})

	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("shutdown failed", "error", err)
		}
	}()

	s.logger.Info("web server listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

type metricsEvent struct {
	Type    string               `json:"type"`
	Metrics orchestrator.Metrics `json:"metrics"`
}

type snapshotEvent struct {
	Type     string                `json:"type"`
	Snapshot orchestrator.Snapshot `json:"snapshot"`
}
