package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeJSON(t *testing.T) {
	msg, err := EncodeJSON(map[string]string{"type": "status"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"status"}`, string(msg.Data))

	_, err = EncodeJSON(make(chan int))
	assert.Error(t, err)
}

func TestBroadcast_DropsWhenFull(t *testing.T) {
	h := New("test", nil)

	for i := 0; i < cap(h.broadcast)+3; i++ {
		h.Broadcast(NewJSONMessage([]byte(`{}`)))
	}
	assert.Equal(t, int64(3), h.Dropped())
}

func TestRun_Lifecycle(t *testing.T) {
	h := New("test", nil)
	assert.False(t, h.IsRunning())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()

	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	require.NoError(t, h.BroadcastJSON(map[string]int{"n": 1}))
	assert.Zero(t, h.ClientCount())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	assert.False(t, h.IsRunning())

	// Registration after shutdown does not block.
	assert.Nil(t, NewClient(h, nil))
}
