package inference

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/media"
)

func newTestOpenAI(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	o, err := NewOpenAI(
		WithBaseURL(srv.URL+"/v1/"),
		WithAPIKey("test-key"),
		WithRetry(1, time.Millisecond),
	)
	require.NoError(t, err)
	return o
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI()
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestOpenAI_Transcribe(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "speech.wav", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, []byte("RIFF"), data)

		w.Write([]byte(`{"text":"Hello, how are you?"}`))
	})

	text, err := o.Transcribe(context.Background(), testAudio)
	require.NoError(t, err)
	assert.Equal(t, "Hello, how are you?", text)
}

func TestOpenAI_RespondAttachesDocument(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content []map[string]any `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body.Model)
		require.Len(t, body.Messages, 1)
		parts := body.Messages[0].Content
		require.Len(t, parts, 2)
		assert.Equal(t, "text", parts[0]["type"])
		assert.Equal(t, "file", parts[1]["type"])
		file := parts[1]["file"].(map[string]any)
		assert.Equal(t, testPDF, file["file_data"])

		w.Write([]byte(`{"model":"gpt-4o-mini","choices":[{"message":{"content":"Take it with food."},"finish_reason":"stop"}]}`))
	})

	payload := agent.Payload{Kind: agent.PayloadDocument, Content: testPDF}
	reply, err := o.Respond(context.Background(), &RespondRequest{Kind: agent.KindDocument, Grounding: &payload, Query: "When do I take my pills?"})
	require.NoError(t, err)
	assert.Equal(t, "Take it with food.", reply)
}

func TestOpenAI_Synthesize(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "shimmer", body["voice"])
		assert.Equal(t, "Hi!", body["input"])

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte{0xff, 0xfb})
	})

	audio, err := o.Synthesize(context.Background(), "Hi!")
	require.NoError(t, err)
	assert.Equal(t, media.AudioMPEG, audio.MediaType)
	assert.Equal(t, []byte{0xff, 0xfb}, audio.Data)
}

func TestOpenAI_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	})

	reply, err := o.Respond(context.Background(), &RespondRequest{Kind: agent.KindGeneric, Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAI_ParsesAPIError(t *testing.T) {
	o := newTestOpenAI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key","code":"invalid_api_key"}}`))
	})

	_, err := o.Synthesize(context.Background(), "hi")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "invalid_api_key", apiErr.Code)
	assert.True(t, apiErr.IsUnauthorized())
}
