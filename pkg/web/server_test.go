package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/audioio"
	"github.com/teslashibe/voiceflow/pkg/capture"
	"github.com/teslashibe/voiceflow/pkg/inference"
	"github.com/teslashibe/voiceflow/pkg/orchestrator"
	"github.com/teslashibe/voiceflow/pkg/playback"
)

func newTestServer(t *testing.T) (*Server, *orchestrator.Orchestrator) {
	t.Helper()

	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	rec := capture.NewRecorder(audioio.NewMockSource(cfg, nil))

	inf := inference.NewMock()
	svc, err := inference.NewService(inf, inf, inf)
	require.NoError(t, err)

	registry := agent.DefaultRegistry()
	orch, err := orchestrator.New(rec, playback.NewController(playback.NewMockPlayer(), nil), svc, registry)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = orch.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return NewServer(orch, registry, Config{Port: "0"}, nil), orch
}

func doJSON(t *testing.T, s *Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, out
}

func decodeSnapshot(t *testing.T, data []byte) orchestrator.Snapshot {
	t.Helper()
	var snap orchestrator.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func TestStatusAndAgents(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, body)
	assert.Equal(t, orchestrator.StatusIdle, snap.Status)
	assert.Equal(t, agent.Generic, snap.ActiveAgent.ID)

	resp, body = doJSON(t, s, http.MethodGet, "/api/agents", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var agents []agent.Profile
	require.NoError(t, json.Unmarshal(body, &agents))
	require.Len(t, agents, 4)
	assert.Equal(t, "Customer Service Bot", agents[1].Label)
	assert.NotContains(t, string(body), "9 AM", "default grounding stays server-side")
}

func TestSelectAgent(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"valid", SelectAgentRequest{ID: string(agent.ElderCare)}, http.StatusOK},
		{"missing id", map[string]string{}, http.StatusBadRequest},
		{"unknown", SelectAgentRequest{ID: "nobody"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := doJSON(t, s, http.MethodPut, "/api/agent", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	_, body := doJSON(t, s, http.MethodGet, "/api/status", nil)
	assert.Equal(t, agent.ElderCare, decodeSnapshot(t, body).ActiveAgent.ID)
}

func TestTransitions(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPost, "/api/record/stop", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "invalid_transition")

	resp, _ = doJSON(t, s, http.MethodPost, "/api/cancel", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "cancel while idle is a no-op")

	resp, body = doJSON(t, s, http.MethodPost, "/api/record/start", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, orchestrator.StatusRecording, decodeSnapshot(t, body).Status)

	resp, _ = doJSON(t, s, http.MethodPut, "/api/agent", SelectAgentRequest{ID: string(agent.ElderCare)})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, s, http.MethodPost, "/api/cancel", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, orchestrator.StatusIdle, decodeSnapshot(t, body).Status)
}

func TestGrounding(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodPut, "/api/agents/customPersona/grounding", GroundingRequest{Kind: "text", Content: "a pirate"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeSnapshot(t, body).Grounding[agent.CustomPersona]
	assert.Equal(t, "a pirate", st.Text)
	assert.Equal(t, agent.PayloadText, st.Active)

	resp, _ = doJSON(t, s, http.MethodPut, "/api/agents/customPersona/grounding", GroundingRequest{Kind: "document", Content: "not a pdf"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPut, "/api/agents/customPersona/grounding", GroundingRequest{Kind: "audio", Content: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPut, "/api/agents/generic/grounding", GroundingRequest{Kind: "text", Content: "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodDelete, "/api/agents/customPersona/grounding/bogus", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, s, http.MethodDelete, "/api/agents/customPersona/grounding/text", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeSnapshot(t, body).Grounding[agent.CustomPersona].Active)
}

func TestUploadDocument(t *testing.T) {
	s, _ := newTestServer(t)

	upload := func(contentType string) *http.Response {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="report.pdf"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4 report"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/agents/elderCare/document", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		resp, err := s.App().Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := upload("image/png")
	resp.Body.Close()
	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	resp = upload("application/pdf")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	st := decodeSnapshot(t, body).Grounding[agent.ElderCare]
	assert.True(t, st.HasDocument)
	assert.Equal(t, agent.PayloadDocument, st.Active)
}

func TestSpeakValidation(t *testing.T) {
	s, _ := newTestServer(t)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/speak", SpeakRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, s, http.MethodPost, "/api/speak", SpeakRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := doJSON(t, s, http.MethodPost, "/api/speak", SpeakRequest{Text: "Hello there"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, orchestrator.StatusIdle, decodeSnapshot(t, body).Status)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	resp, body := doJSON(t, s, http.MethodGet, "/api/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Contains(t, out, "current")
	assert.Contains(t, out, "average")
	assert.Contains(t, out, "recent")
}

func TestEventsWebsocket(t *testing.T) {
	s, _ := newTestServer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		<-served
	})

	url := "ws://" + ln.Addr().String() + "/ws/events"
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
	defer conn.Close()

	var greeting snapshotEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, "snapshot", greeting.Type)
	assert.Equal(t, orchestrator.StatusIdle, greeting.Snapshot.Status)

	require.Eventually(t, func() bool { return s.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, _ := doJSON(t, s, http.MethodPost, "/api/record/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ev orchestrator.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, orchestrator.EventStatus, ev.Type)
	assert.Equal(t, orchestrator.StatusRecording, ev.Status)

	// Plain HTTP on the websocket path is refused.
	httpResp, err := http.Get("http://" + ln.Addr().String() + "/ws/events")
	require.NoError(t, err)
	httpResp.Body.Close()
	assert.Equal(t, http.StatusUpgradeRequired, httpResp.StatusCode)
}
