package web

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/capture"
	"github.com/teslashibe/voiceflow/pkg/hub"
	"github.com/teslashibe/voiceflow/pkg/media"
	"github.com/teslashibe/voiceflow/pkg/orchestrator"
)

// maxDocumentSize bounds uploaded PDFs before encoding.
const maxDocumentSize = 10 * 1024 * 1024

// SelectAgentRequest is the body of PUT /api/agent.
type SelectAgentRequest struct {
	ID string `json:"id" validate:"required"`
}

// GroundingRequest is the body of PUT /api/agents/:id/grounding. Content
// for kind "document" is a PDF data URI.
type GroundingRequest struct {
	Kind    string `json:"kind" validate:"required,oneof=text document"`
	Content string `json:"content" validate:"required"`
}

// SpeakRequest is the body of POST /api/speak.
type SpeakRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// bind parses and validates a JSON body.
func (s *Server) bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// handleError maps errors onto status codes.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	resp := errorResponse{Error: err.Error()}

	var (
		fe      *fiber.Error
		invalid *orchestrator.InvalidTransitionError
		device  *capture.DeviceUnavailableError
	)
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		resp.Error = fe.Message
	case errors.As(err, &invalid):
		code = fiber.StatusConflict
		resp.Kind = "invalid_transition"
	case errors.As(err, &device):
		code = fiber.StatusServiceUnavailable
		resp.Kind = string(orchestrator.KindDeviceUnavailable)
	case errors.Is(err, agent.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, orchestrator.ErrEmptyText),
		errors.Is(err, orchestrator.ErrNoGrounding),
		errors.Is(err, agent.ErrInvalidDocument),
		errors.Is(err, agent.ErrInvalidPayloadKind):
		code = fiber.StatusBadRequest
	case errors.Is(err, orchestrator.ErrNotRunning):
		code = fiber.StatusServiceUnavailable
	}

	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(resp)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap, err := s.orch.Snapshot(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(snap)
}

func (s *Server) handleListAgents(c *fiber.Ctx) error {
	return c.JSON(s.registry.List())
}

func (s *Server) handleSelectAgent(c *fiber.Ctx) error {
	var req SelectAgentRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := s.orch.SelectAgent(c.UserContext(), agent.ID(req.ID)); err != nil {
		return err
	}
	return s.handleStatus(c)
}

func (s *Server) handleSetGrounding(c *fiber.Ctx) error {
	var req GroundingRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	id := agent.ID(c.Params("id"))
	var err error
	switch agent.PayloadKind(req.Kind) {
	case agent.PayloadDocument:
		err = s.orch.SetDocumentGrounding(c.UserContext(), id, req.Content)
	default:
		err = s.orch.SetTextGrounding(c.UserContext(), id, req.Content)
	}
	if err != nil {
		return err
	}
	return s.handleStatus(c)
}

// handleUploadDocument accepts a multipart PDF in field "file" and stores
// it as the agent's document grounding.
func (s *Server) handleUploadDocument(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "missing file")
	}
	if fh.Size > maxDocumentSize {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "document too large")
	}
	if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, media.DocumentMediaType) {
		return fiber.NewError(fiber.StatusUnsupportedMediaType, "only PDF documents are accepted")
	}

	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return err
	}

	if err := s.orch.SetDocumentGrounding(c.UserContext(), agent.ID(c.Params("id")), media.EncodeDocument(data)); err != nil {
		return err
	}
	return s.handleStatus(c)
}

func (s *Server) handleClearGrounding(c *fiber.Ctx) error {
	kind, err := agent.ParsePayloadKind(c.Params("kind"))
	if err != nil {
		return err
	}
	if err := s.orch.ClearGrounding(c.UserContext(), agent.ID(c.Params("id")), kind); err != nil {
		return err
	}
	return s.handleStatus(c)
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.orch.Start(c.UserContext()); err != nil {
		return err
	}
	return s.handleStatus(c)
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if err := s.orch.Stop(c.UserContext()); err != nil {
		return err
	}
	return s.handleStatus(c)
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	if err := s.orch.Cancel(c.UserContext()); err != nil {
		return err
	}
	return s.handleStatus(c)
}

func (s *Server) handleSpeak(c *fiber.Ctx) error {
	var req SpeakRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := s.orch.Speak(c.UserContext(), req.Text); err != nil {
		return err
	}
	return s.handleStatus(c)
}

func (s *Server) handleNewConversation(c *fiber.Ctx) error {
	if err := s.orch.NewConversation(c.UserContext()); err != nil {
		return err
	}
	return s.handleStatus(c)
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	m := s.orch.Metrics()
	return c.JSON(fiber.Map{
		"current": m.Current(),
		"average": m.Average(),
		"recent":  m.Recent(20),
	})
}

// handleEventsWS streams session events, starting with a snapshot.
func (s *Server) handleEventsWS(conn *websocket.Conn) {
	snap, err := s.orch.Snapshot(context.Background())
	if err != nil {
		s.logger.Warn("snapshot for new client failed", "error", err)
		return
	}
	greeting, err := hub.EncodeJSON(snapshotEvent{Type: "snapshot", Snapshot: snap})
	if err != nil {
		return
	}

	client := hub.NewClient(s.events, conn, greeting)
	if client == nil {
		return
	}
	client.Run()
}
