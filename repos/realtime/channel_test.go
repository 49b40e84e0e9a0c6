package realtime

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyPayload struct {
	Key string `json:"key"`
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newPair(t *testing.T) (*Bus, *Bus) {
	t.Helper()
	log := discardLogger()
	pubSub := NewGoChannel(log)
	t.Cleanup(func() { _ = pubSub.Close() })

	a := NewInProcess(pubSub, "test", "session-a", log)
	b := NewInProcess(pubSub, "test", "session-b", log)
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return a, b
}

func TestBus_EmitReachesOtherSession(t *testing.T) {
	a, b := newPair(t)

	received := make(chan Event, 1)
	require.NoError(t, b.On("SEND_KEY", func(ctx context.Context, event Event) {
		received <- event
	}))

	acked := make(chan struct{})
	require.NoError(t, a.Emit(context.Background(), "SEND_KEY", keyPayload{Key: "K3X9ZQ"}, func() { close(acked) }))

	select {
	case event := <-received:
		assert.Equal(t, "SEND_KEY", event.Action)
		assert.Equal(t, "session-a", event.Origin)
		payload, err := Decode[keyPayload](event)
		require.NoError(t, err)
		assert.Equal(t, "K3X9ZQ", payload.Key)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("ack not called")
	}
}

func TestBus_PreservesEmissionOrder(t *testing.T) {
	a, b := newPair(t)

	var (
		mu   sync.Mutex
		keys []string
	)
	done := make(chan struct{})
	require.NoError(t, b.On("SEND_KEY", func(ctx context.Context, event Event) {
		payload, _ := Decode[keyPayload](event)
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, payload.Key)
		if len(keys) == 5 {
			close(done)
		}
	}))

	for _, key := range []string{"A", "B", "C", "D", "E"} {
		require.NoError(t, a.Emit(context.Background(), "SEND_KEY", keyPayload{Key: key}, nil))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, keys)
}

func TestBus_HandlerPanicDoesNotStopSubscription(t *testing.T) {
	a, b := newPair(t)

	received := make(chan string, 2)
	require.NoError(t, b.On("SEND_KEY", func(ctx context.Context, event Event) {
		payload, _ := Decode[keyPayload](event)
		if payload.Key == "BOOM" {
			panic("boom")
		}
		received <- payload.Key
	}))

	require.NoError(t, a.Emit(context.Background(), "SEND_KEY", keyPayload{Key: "BOOM"}, nil))
	require.NoError(t, a.Emit(context.Background(), "SEND_KEY", keyPayload{Key: "OK"}, nil))

	select {
	case key := <-received:
		assert.Equal(t, "OK", key)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription stopped after panic")
	}
}

func TestBus_EmitAfterClose(t *testing.T) {
	a, _ := newPair(t)
	require.NoError(t, a.Close())

	err := a.Emit(context.Background(), "SEND_KEY", keyPayload{Key: "K"}, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, a.On("SEND_KEY", func(context.Context, Event) {}), ErrClosed)
	assert.NoError(t, a.Close(), "closing twice is a no-op")
}
