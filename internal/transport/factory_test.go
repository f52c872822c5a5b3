package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/config"
)

func TestNewBinding_FallbackOrder(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.TransportConfig{
		Types:            []string{"websocket", "redis"},
		HandshakeTimeout: time.Second,
		Redis:            config.RedisConfig{Addr: mr.Addr()},
	}

	b, err := NewBinding(zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	assert.IsType(t, &RedisBinding{}, b)
}

func TestNewBinding_FirstUsableWins(t *testing.T) {
	cfg := config.TransportConfig{
		Types:    []string{"websocket", "memory"},
		Endpoint: "ws://localhost:5000",
	}
	b, err := NewBinding(zap.NewNop(), cfg)
	require.NoError(t, err)
	require.IsType(t, &FallbackBinding{}, b)
	assert.Equal(t, cnst.TransportWebSocket, b.(*FallbackBinding).Active())

	b, err = NewFactory(zap.NewNop(), config.TransportConfig{Types: []string{"memory"}})()
	require.NoError(t, err)
	assert.IsType(t, &MemoryBinding{}, b)
}

func TestNewBinding_NoTransport(t *testing.T) {
	_, err := NewBinding(zap.NewNop(), config.TransportConfig{Types: []string{"carrier-pigeon", "websocket"}})
	assert.ErrorIs(t, err, cnst.ErrNoTransport)
	assert.ErrorIs(t, err, cnst.ErrUnsupportedTransport)
	assert.ErrorIs(t, err, cnst.ErrEmptyEndpoint)

	_, err = NewBinding(zap.NewNop(), config.TransportConfig{})
	assert.ErrorIs(t, err, cnst.ErrNoTransport)
}

// unreachableEndpoint returns the address of a server that is already gone.
func unreachableEndpoint(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func TestNewBinding_FallsBackWhenFirstNeverConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.TransportConfig{
		Types:            []string{"websocket", "redis"},
		Endpoint:         unreachableEndpoint(t),
		ReconnectDelay:   10 * time.Millisecond,
		PingInterval:     time.Second,
		HandshakeTimeout: time.Second,
		Redis:            config.RedisConfig{Addr: mr.Addr(), Prefix: "rt"},
	}
	b, err := NewBinding(zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	fb, ok := b.(*FallbackBinding)
	require.True(t, ok)

	events := recordEvents(b)
	failed := recordEvents(b, cnst.EventReconnectFailed)
	got := recordEvents(b, "message")
	b.SetAuth("tok")
	require.NoError(t, b.Connect(context.Background()))

	waitEvent(t, events, cnst.EventConnect)
	assert.Equal(t, cnst.TransportRedis, fb.Active())
	assert.True(t, b.Connected())
	assert.Empty(t, drain(failed))

	// listeners registered before the switch receive from the new transport
	frame, err := Envelope("message", "hi")
	require.NoError(t, err)
	mr.Publish("rt:broadcast", string(frame))
	ev := waitEvent(t, got, "message")
	assert.JSONEq(t, `"hi"`, string(ev.Data))
	require.NoError(t, b.Emit("join", nil))
}

func TestNewBinding_ReportsGiveUpWhenNoCandidateLeft(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.TransportConfig{
		Types:            []string{"websocket", "redis"},
		Endpoint:         unreachableEndpoint(t),
		ReconnectDelay:   10 * time.Millisecond,
		PingInterval:     time.Second,
		HandshakeTimeout: 200 * time.Millisecond,
		Redis:            config.RedisConfig{Addr: addr},
	}
	b, err := NewBinding(zap.NewNop(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	events := recordEvents(b)
	require.NoError(t, b.Connect(context.Background()))
	ev := waitEvent(t, events, cnst.EventReconnectFailed)
	assert.Error(t, ev.Err)
	assert.Equal(t, cnst.TransportWebSocket, b.(*FallbackBinding).Active())
	assert.False(t, b.Connected())
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}
