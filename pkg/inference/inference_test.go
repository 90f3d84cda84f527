package inference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/voiceflow/pkg/agent"
	"github.com/teslashibe/voiceflow/pkg/media"
)

var testAudio = media.Audio{MediaType: media.AudioWAV, Data: []byte("RIFF")}

func newTestService(t *testing.T, m *Mock) *Service {
	t.Helper()
	s, err := NewService(m, m, m)
	require.NoError(t, err)
	return s
}

func TestNewService_RequiresAll(t *testing.T) {
	_, err := NewService(NewMock(), nil, NewMock())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestService_Transcribe(t *testing.T) {
	m := NewMock()
	m.TranscribeFunc = func(context.Context, media.Audio) (string, error) { return "  hi there \n", nil }
	s := newTestService(t, m)

	text, err := s.Transcribe(context.Background(), testAudio)
	require.NoError(t, err)
	assert.Equal(t, "hi there", text)
}

func TestService_ErrorKinds(t *testing.T) {
	boom := errors.New("boom")
	m := NewMock()
	m.TranscribeFunc = func(context.Context, media.Audio) (string, error) { return "", boom }
	m.RespondFunc = func(context.Context, *RespondRequest) (string, error) { return "", boom }
	m.SynthesizeFunc = func(context.Context, string) (media.Audio, error) { return media.Audio{}, boom }
	s := newTestService(t, m)
	ctx := context.Background()

	_, err := s.Transcribe(ctx, testAudio)
	var te *TranscriptionError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, boom)

	_, err = s.Respond(ctx, &RespondRequest{Kind: agent.KindGeneric, Query: "q"})
	var ie *InferenceError
	require.ErrorAs(t, err, &ie)

	_, err = s.Synthesize(ctx, "reply")
	var se *SynthesisError
	require.ErrorAs(t, err, &se)
}

func TestService_EmptyResults(t *testing.T) {
	m := NewMock()
	m.TranscribeFunc = func(context.Context, media.Audio) (string, error) { return " ", nil }
	m.RespondFunc = func(context.Context, *RespondRequest) (string, error) { return "", nil }
	m.SynthesizeFunc = func(context.Context, string) (media.Audio, error) { return media.Audio{MediaType: media.AudioMPEG}, nil }
	s := newTestService(t, m)
	ctx := context.Background()

	_, err := s.Transcribe(ctx, testAudio)
	assert.ErrorIs(t, err, ErrEmptyResult)

	_, err = s.Respond(ctx, &RespondRequest{Kind: agent.KindGeneric, Query: "q"})
	assert.ErrorIs(t, err, ErrEmptyResult)

	_, err = s.Synthesize(ctx, "reply")
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestService_RejectsBeforeCalling(t *testing.T) {
	m := NewMock()
	s := newTestService(t, m)
	ctx := context.Background()

	_, err := s.Transcribe(ctx, media.Audio{MediaType: media.AudioWAV})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Respond(ctx, &RespondRequest{Kind: agent.KindKnowledgeBase, Query: "q"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = s.Synthesize(ctx, "\t")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	assert.Zero(t, m.Calls())
}

func TestChain_Fallback(t *testing.T) {
	failing := NewMock()
	failing.RespondFunc = func(context.Context, *RespondRequest) (string, error) {
		return "", &APIError{StatusCode: 503, Message: "overloaded", Provider: "first"}
	}
	working := NewMock()
	working.RespondFunc = func(context.Context, *RespondRequest) (string, error) { return "from second", nil }

	chain, err := NewResponderChain(nil, failing, working)
	require.NoError(t, err)

	reply, err := chain.Respond(context.Background(), &RespondRequest{Kind: agent.KindGeneric, Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, "from second", reply)
	assert.Equal(t, "chain(mock,mock)", chain.Name())
}

func TestChain_AllFail(t *testing.T) {
	e1, e2 := errors.New("first failed"), errors.New("second failed")
	p1, p2 := NewMock(), NewMock()
	p1.TranscribeFunc = func(context.Context, media.Audio) (string, error) { return "", e1 }
	p2.TranscribeFunc = func(context.Context, media.Audio) (string, error) { return "", e2 }

	chain, err := NewTranscriberChain(nil, p1, p2)
	require.NoError(t, err)

	_, err = chain.Transcribe(context.Background(), testAudio)
	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.Errors, 2)
	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
}

func TestChain_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p1, p2 := NewMock(), NewMock()
	p1.SynthesizeFunc = func(context.Context, string) (media.Audio, error) {
		cancel()
		return media.Audio{}, context.Canceled
	}

	chain, err := NewSynthesizerChain(nil, p1, p2)
	require.NoError(t, err)

	_, err = chain.Synthesize(ctx, "hi")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, p2.SynthesizeCalls())
}

func TestChain_RequiresProvider(t *testing.T) {
	_, err := NewSynthesizerChain(nil)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestCachedSynthesizer(t *testing.T) {
	m := NewMock()
	c := NewCachedSynthesizer(m, time.Minute)
	ctx := context.Background()

	a1, err := c.Synthesize(ctx, "Hello")
	require.NoError(t, err)
	a2, err := c.Synthesize(ctx, "Hello")
	require.NoError(t, err)
	_, err = c.Synthesize(ctx, "Goodbye")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, []string{"Hello", "Goodbye"}, m.SynthesizeCalls())
	assert.Equal(t, 2, c.(*CachedSynthesizer).Len())
}

func TestCachedSynthesizer_SkipsErrors(t *testing.T) {
	calls := 0
	m := NewMock()
	m.SynthesizeFunc = func(context.Context, string) (media.Audio, error) {
		calls++
		return media.Audio{}, errors.New("quota")
	}
	c := NewCachedSynthesizer(m, time.Minute)

	_, err := c.Synthesize(context.Background(), "x")
	assert.Error(t, err)
	_, err = c.Synthesize(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestCachedSynthesizer_ZeroTTL(t *testing.T) {
	m := NewMock()
	assert.Same(t, Synthesizer(m), NewCachedSynthesizer(m, 0))
}

func TestAPIError(t *testing.T) {
	assert.True(t, (&APIError{StatusCode: 429}).IsRetryable())
	assert.True(t, (&APIError{StatusCode: 502}).IsRetryable())
	assert.False(t, (&APIError{StatusCode: 400}).IsRetryable())
	assert.True(t, (&APIError{StatusCode: 403}).IsUnauthorized())
	assert.Contains(t, (&APIError{StatusCode: 400, Code: "bad", Message: "m", Provider: "p"}).Error(), "(bad)")
}
