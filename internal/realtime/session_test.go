package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/amoylab/hublink/internal/auth"
	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/dto"
	"github.com/amoylab/hublink/internal/transport"
)

type testSession struct {
	*Manager
	binding *transport.MemoryBinding
	built   int
}

func newTestSession(t *testing.T, opts ...Option) *testSession {
	t.Helper()
	s := &testSession{binding: transport.NewMemoryBinding(zap.NewNop())}
	factory := func() (transport.Binding, error) {
		s.built++
		return s.binding, nil
	}
	s.Manager = NewManager(zap.NewNop(), factory, opts...)
	return s
}

// connect opens the session and completes the handshake.
func (s *testSession) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, s.Connect(context.Background(), ""))
	s.binding.Accept()
	require.Equal(t, StateConnected, s.State())
}

func authPayloads(t *testing.T, b *transport.MemoryBinding) []dto.AuthPayload {
	t.Helper()
	var out []dto.AuthPayload
	for _, e := range b.Emitted(cnst.ChannelAuth) {
		var p dto.AuthPayload
		require.NoError(t, json.Unmarshal(e.Data, &p))
		out = append(out, p)
	}
	return out
}

func TestManager_SingletonBinding(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Initialize())
	require.NoError(t, s.Connect(context.Background(), ""))
	s.Join(dto.StringID("c1"))

	assert.Equal(t, 1, s.built)
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.EventConnect))
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.EventDisconnect))
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.EventConnectError))
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.EventReconnectFailed))
}

func TestManager_InitializeError(t *testing.T) {
	boom := errors.New("no transport")
	m := NewManager(zap.NewNop(), func() (transport.Binding, error) { return nil, boom })

	assert.ErrorIs(t, m.Initialize(), boom)
	assert.ErrorIs(t, m.Connect(context.Background(), ""), boom)
	assert.Zero(t, m.OnMessage(func(dto.Message) {}))
	m.Join(dto.StringID("c1"))
	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestManager_ConnectIsIdempotent(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.Connect(ctx, "tok"))
	require.NoError(t, s.Connect(ctx, ""))
	assert.Equal(t, StateConnecting, s.State())
	assert.Equal(t, 1, s.binding.ConnectCalls())
	assert.Equal(t, "tok", s.binding.Auth())

	s.binding.Accept()
	require.NoError(t, s.Connect(ctx, ""))
	assert.Equal(t, 1, s.binding.ConnectCalls())
	assert.Equal(t, StateConnected, s.State())
}

func TestManager_ConnectFallsBackToTokenSource(t *testing.T) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "from-source"})
	s := newTestSession(t, WithTokenSource(ts))

	require.NoError(t, s.Connect(context.Background(), ""))
	assert.Equal(t, "from-source", s.binding.Auth())
}

func TestManager_DisconnectThenReconnect(t *testing.T) {
	s := newTestSession(t)
	s.connect(t)

	s.Disconnect()
	assert.Equal(t, StateDisconnected, s.State())
	assert.False(t, s.Connected())

	s.connect(t)
	assert.Equal(t, 2, s.binding.ConnectCalls())
	assert.Equal(t, 1, s.built)
}

func TestManager_ReauthenticatesOncePerReconnect(t *testing.T) {
	s := newTestSession(t)
	s.connect(t)

	require.NoError(t, s.AuthenticateUser(context.Background(), auth.Identity{UserID: dto.NumericID(42)}))
	require.Len(t, authPayloads(t, s.binding), 1)

	s.binding.SimulateDisconnect(cnst.ReasonTransportClose)
	assert.Equal(t, StateConnecting, s.State())
	s.binding.Accept()
	assert.Equal(t, StateConnected, s.State())

	payloads := authPayloads(t, s.binding)
	require.Len(t, payloads, 2)
	assert.Equal(t, dto.NumericID(42), payloads[1].UserID)

	s.binding.SimulateDisconnect(cnst.ReasonPingTimeout)
	s.binding.Accept()
	assert.Len(t, authPayloads(t, s.binding), 3)
}

func TestManager_DeferredAuthenticateFiresOnce(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.AuthenticateUser(ctx, auth.Identity{UserID: dto.StringID("u1"), Credential: "cred"}))
	assert.Equal(t, StateConnecting, s.State())
	assert.Equal(t, "cred", s.binding.Auth())
	assert.Equal(t, 1, s.binding.ConnectCalls())
	assert.Empty(t, authPayloads(t, s.binding))
	// baseline handler plus the one-shot hook
	assert.Equal(t, 2, s.binding.ListenerCount(cnst.EventConnect))

	s.binding.Accept()
	payloads := authPayloads(t, s.binding)
	require.Len(t, payloads, 1)
	assert.Equal(t, dto.StringID("u1"), payloads[0].UserID)
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.EventConnect))

	identity, ok := s.Identity()
	assert.True(t, ok)
	assert.Equal(t, dto.StringID("u1"), identity.UserID)
}

func TestManager_RepeatedDeferredAuthenticateUsesLatestIdentity(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.AuthenticateUser(ctx, auth.Identity{UserID: dto.StringID("first")}))
	require.NoError(t, s.AuthenticateUser(ctx, auth.Identity{UserID: dto.StringID("second")}))
	s.binding.Accept()

	payloads := authPayloads(t, s.binding)
	require.Len(t, payloads, 1)
	assert.Equal(t, dto.StringID("second"), payloads[0].UserID)
}

func TestManager_AuthenticateRejectsEmptyIdentity(t *testing.T) {
	s := newTestSession(t)
	assert.ErrorIs(t, s.AuthenticateUser(context.Background(), auth.Identity{}), cnst.ErrEmptyIdentity)
	_, ok := s.Identity()
	assert.False(t, ok)
}

func TestManager_AuthenticateWithAutoAccept(t *testing.T) {
	b := transport.NewMemoryBinding(zap.NewNop(), transport.WithAutoAccept())
	m := NewManager(zap.NewNop(), func() (transport.Binding, error) { return b, nil })

	require.NoError(t, m.AuthenticateUser(context.Background(), auth.Identity{UserID: dto.NumericID(1)}))
	assert.Len(t, b.Emitted(cnst.ChannelAuth), 1)
	assert.Equal(t, 1, b.ListenerCount(cnst.EventConnect))
}

func TestManager_ServerDisconnectReconnects(t *testing.T) {
	s := newTestSession(t)
	s.connect(t)
	require.NoError(t, s.AuthenticateUser(context.Background(), auth.Identity{UserID: dto.NumericID(7)}))

	s.binding.SimulateDisconnect(cnst.ReasonServerDisconnect)
	assert.Equal(t, 2, s.binding.ConnectCalls())
	assert.Equal(t, StateConnecting, s.State())

	s.binding.Accept()
	assert.Len(t, authPayloads(t, s.binding), 2)
}

func TestManager_ClientDisconnectDoesNotReconnect(t *testing.T) {
	s := newTestSession(t)
	s.connect(t)

	s.binding.SimulateDisconnect(cnst.ReasonClientDisconnect)
	assert.Equal(t, 1, s.binding.ConnectCalls())
	assert.Equal(t, StateDisconnected, s.State())
}

func TestManager_ConnectErrorsAndGiveUp(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Connect(context.Background(), ""))

	s.binding.Reject(errors.New("refused"))
	assert.Equal(t, StateConnecting, s.State())

	s.binding.GiveUp(errors.New("exhausted"))
	assert.Equal(t, StateDisconnected, s.State())
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "ConnectionState(9)", ConnectionState(9).String())
}

func TestManager_OnConnectedRunsAfterAuth(t *testing.T) {
	s := newTestSession(t)
	var order []string
	sub := s.OnConnected(func() {
		order = append(order, "caller")
		s.Join(dto.StringID("c1"))
	})
	require.NoError(t, s.AuthenticateUser(context.Background(), auth.Identity{UserID: dto.NumericID(3)}))
	s.binding.Accept()

	emitted := s.binding.Emitted(cnst.ChannelAuth, cnst.ChannelJoin)
	require.Len(t, emitted, 2)
	assert.Equal(t, cnst.ChannelAuth, emitted[0].Event)
	assert.Equal(t, cnst.ChannelJoin, emitted[1].Event)
	assert.Equal(t, []string{"caller"}, order)

	// rooms are restored by the caller on every reconnect
	s.binding.SimulateDisconnect(cnst.ReasonTransportClose)
	s.binding.Accept()
	assert.Len(t, s.binding.Emitted(cnst.ChannelJoin), 2)

	s.OffConnected(sub)
	s.binding.SimulateDisconnect(cnst.ReasonTransportClose)
	s.binding.Accept()
	assert.Len(t, s.binding.Emitted(cnst.ChannelJoin), 2)
}
