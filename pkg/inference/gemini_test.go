package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/voiceflow/pkg/agent"
)

func TestNewGemini_RequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background())
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGemini_RespondSendsInlinePDF(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.0-flash:generateContent"), r.URL.Path)

		var body struct {
			Contents []struct {
				Parts []struct {
					Text       string `json:"text"`
					InlineData *struct {
						MIMEType string `json:"mimeType"`
						Data     string `json:"data"`
					} `json:"inlineData"`
				} `json:"parts"`
			} `json:"contents"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Contents, 1)
		parts := body.Contents[0].Parts
		require.Len(t, parts, 2)
		assert.Contains(t, parts[0].Text, "Persona Description (from the attached PDF).")
		require.NotNil(t, parts[1].InlineData)
		assert.Equal(t, "application/pdf", parts[1].InlineData.MIMEType)
		assert.Equal(t, "JVBERi0xLjQ=", parts[1].InlineData.Data)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Arr, matey!"}]}}]}`))
	}))
	defer srv.Close()

	g, err := NewGemini(context.Background(),
		WithAPIKey("test-key"),
		WithBaseURL(srv.URL),
		WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	payload := agent.Payload{Kind: agent.PayloadDocument, Content: testPDF}
	reply, err := g.Respond(context.Background(), &RespondRequest{Kind: agent.KindPersona, Grounding: &payload, Query: "Who are you?"})
	require.NoError(t, err)
	assert.Equal(t, "Arr, matey!", reply)
}
