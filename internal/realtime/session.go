package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/amoylab/hublink/internal/auth"
	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/dto"
	"github.com/amoylab/hublink/internal/transport"
	"github.com/amoylab/hublink/pkg/metrics"
)

// ConnectionState is the session's view of its transport.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// Manager owns exactly one transport binding and keeps the session
// authenticated across reconnects. Emit-style operations never block and
// never fail: while disconnected they are dropped, except authentication,
// toggle typing and deferred listener attachment, which wait for the next
// connect.
//
// Binding methods that may raise events synchronously are never called
// with mu held.
type Manager struct {
	logger   *zap.Logger
	factory  transport.Factory
	metrics  *metrics.Metrics
	tokens   oauth2.TokenSource
	policies map[string]Policy

	mu          sync.Mutex
	binding     transport.Binding
	state       ConnectionState
	identity    auth.Identity
	hasIdentity bool
	authHook    transport.ListenerID

	pendingTyping *dto.TypingToggle
	typingHook    transport.ListenerID

	subs    map[Subscription]*registration
	nextSub Subscription
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records session activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithTokenSource supplies the credential when Connect or SendMessage get
// none.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(mgr *Manager) { mgr.tokens = ts }
}

// WithPolicy overrides the listener policy of channel.
func WithPolicy(channel string, p Policy) Option {
	return func(mgr *Manager) { mgr.policies[channel] = p }
}

// WithDeferredChannels makes exactly the given channels attach on connect.
// A nil list keeps the defaults.
func WithDeferredChannels(channels []string) Option {
	return func(mgr *Manager) {
		if channels == nil {
			return
		}
		mgr.policies = make(map[string]Policy, len(channels))
		for _, ch := range channels {
			mgr.policies[ch] = AttachOnConnect
		}
	}
}

// NewManager creates a session manager. The binding is built by factory on
// the first Initialize.
func NewManager(logger *zap.Logger, factory transport.Factory, opts ...Option) *Manager {
	m := &Manager{
		logger:   logger.Named("realtime.session"),
		factory:  factory,
		policies: DefaultPolicies(),
		subs:     make(map[Subscription]*registration),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize builds the binding and wires the lifecycle handlers. Further
// calls are no-ops.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.bindingLocked()
	return err
}

func (m *Manager) bindingLocked() (transport.Binding, error) {
	if m.binding != nil {
		return m.binding, nil
	}
	b, err := m.factory()
	if err != nil {
		m.logger.Error("failed to create transport binding", zap.Error(err))
		return nil, fmt.Errorf("failed to create transport binding: %w", err)
	}
	b.On(cnst.EventConnect, m.handleConnect)
	b.On(cnst.EventDisconnect, m.handleDisconnect)
	b.On(cnst.EventConnectError, m.handleConnectError)
	b.On(cnst.EventReconnectFailed, m.handleReconnectFailed)
	m.binding = b
	m.logger.Debug("transport binding initialized")
	return b, nil
}

// Connect opens the connection, presenting credential on the handshake.
// An empty credential falls back to the token source. Calling Connect on
// an open or opening session is a no-op.
func (m *Manager) Connect(ctx context.Context, credential string) error {
	if credential == "" {
		credential = m.fallbackCredential()
	}

	m.mu.Lock()
	b, err := m.bindingLocked()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state == StateDisconnected {
		m.setStateLocked(StateConnecting)
	}
	m.mu.Unlock()

	if credential != "" {
		b.SetAuth(credential)
	}
	if b.Connected() {
		return nil
	}
	if err := b.Connect(ctx); err != nil {
		m.logger.Error("failed to connect", zap.Error(err))
		return fmt.Errorf("failed to connect: %w", err)
	}
	return nil
}

// Disconnect closes the connection. Pending connect hooks stay registered
// and fire on the next Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	b := m.binding
	m.mu.Unlock()
	if b == nil {
		return
	}

	b.Disconnect()
	m.mu.Lock()
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
}

// Close disconnects and releases the binding.
func (m *Manager) Close() error {
	m.mu.Lock()
	b := m.binding
	m.mu.Unlock()
	if b == nil {
		return nil
	}
	err := b.Close()
	m.mu.Lock()
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	return err
}

// AuthenticateUser records identity and joins the user's personal room.
// When connected the auth event goes out now; otherwise the connection is
// opened and auth is emitted once on the next connect.
func (m *Manager) AuthenticateUser(ctx context.Context, identity auth.Identity) error {
	if identity.IsZero() {
		return cnst.ErrEmptyIdentity
	}

	m.mu.Lock()
	b, err := m.bindingLocked()
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.identity = identity
	m.hasIdentity = true
	// handleConnect flips the state and claims the hook under mu, so exactly
	// one of the two paths below emits for this connect
	connected := m.state == StateConnected
	if !connected && m.authHook == 0 {
		m.authHook = b.Once(cnst.EventConnect, func(transport.Event) { m.flushPendingAuth() })
	}
	m.mu.Unlock()

	if connected {
		m.emitAuth(identity)
		return nil
	}

	m.logger.Debug("deferring auth until connected", zap.Stringer("user", identity.UserID))
	m.metrics.Emit(cnst.ChannelAuth, metrics.EmitDeferred)
	return m.Connect(ctx, identity.Credential)
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Identity returns the last authenticated identity.
func (m *Manager) Identity() (auth.Identity, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identity, m.hasIdentity
}

// Connected reports whether the session has completed its connect
// handling.
func (m *Manager) Connected() bool {
	return m.State() == StateConnected
}

// handleConnect runs before any caller listener. It claims the deferred
// auth and typing slots in the same critical section that marks the
// session connected.
func (m *Manager) handleConnect(transport.Event) {
	m.mu.Lock()
	m.setStateLocked(StateConnected)
	identity, ok := m.identity, m.hasIdentity
	authHook, typingHook := m.authHook, m.typingHook
	typing := m.pendingTyping
	m.authHook, m.typingHook, m.pendingTyping = 0, 0, nil
	b := m.binding
	m.mu.Unlock()

	if authHook != 0 {
		b.Off(cnst.EventConnect, authHook)
	}
	if typingHook != 0 {
		b.Off(cnst.EventConnect, typingHook)
	}

	m.metrics.Connected()
	m.logger.Info("session connected")
	if ok {
		m.emitAuth(identity)
	}
	if typing != nil {
		m.emit(cnst.ChannelTyping, *typing)
	}
}

func (m *Manager) handleDisconnect(ev transport.Event) {
	m.mu.Lock()
	if ev.Reason.Reconnectable() {
		m.setStateLocked(StateConnecting)
	} else {
		m.setStateLocked(StateDisconnected)
	}
	m.mu.Unlock()

	m.metrics.Disconnected(ev.Reason.String())
	m.logger.Info("session disconnected", zap.Stringer("reason", ev.Reason))

	if ev.Reason == cnst.ReasonServerDisconnect {
		if err := m.Connect(context.Background(), ""); err != nil {
			m.logger.Error("failed to reconnect after server disconnect", zap.Error(err))
		}
	}
}

func (m *Manager) handleConnectError(ev transport.Event) {
	m.metrics.ConnectError()
	m.logger.Warn("connection attempt failed", zap.Error(ev.Err))
}

func (m *Manager) handleReconnectFailed(ev transport.Event) {
	m.mu.Lock()
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
	m.logger.Error("giving up on reconnection", zap.Error(ev.Err))
}

// flushPendingAuth emits the deferred auth unless handleConnect already
// claimed it.
func (m *Manager) flushPendingAuth() {
	m.mu.Lock()
	hook := m.authHook
	if hook == 0 || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.authHook = 0
	identity, b := m.identity, m.binding
	m.mu.Unlock()

	b.Off(cnst.EventConnect, hook)
	m.emitAuth(identity)
}

func (m *Manager) emitAuth(identity auth.Identity) {
	m.emit(cnst.ChannelAuth, dto.AuthPayload{UserID: identity.UserID})
}

func (m *Manager) fallbackCredential() string {
	cred, err := auth.Credential(m.tokens)
	if err != nil {
		m.logger.Warn("failed to read credential from token source", zap.Error(err))
		return ""
	}
	return cred
}

// emit sends payload on channel, dropping it when the session is not
// connected. It reports whether the event went out.
func (m *Manager) emit(channel string, payload any) bool {
	m.mu.Lock()
	b := m.binding
	m.mu.Unlock()

	if b == nil || !b.Connected() {
		m.logger.Debug("dropping emit while disconnected", zap.String("channel", channel))
		m.metrics.Emit(channel, metrics.EmitDropped)
		return false
	}
	if err := b.Emit(channel, payload); err != nil {
		if errors.Is(err, cnst.ErrNotConnected) {
			m.logger.Debug("dropping emit while disconnected", zap.String("channel", channel))
			m.metrics.Emit(channel, metrics.EmitDropped)
		} else {
			m.logger.Warn("failed to emit", zap.String("channel", channel), zap.Error(err))
			m.metrics.Emit(channel, metrics.EmitFailed)
		}
		return false
	}
	m.metrics.Emit(channel, metrics.EmitSent)
	return true
}

func (m *Manager) setStateLocked(s ConnectionState) {
	if m.state == s {
		return
	}
	m.logger.Debug("connection state changed",
		zap.Stringer("from", m.state),
		zap.Stringer("to", s))
	m.state = s
	m.metrics.SetConnectionState(int(s))
}

// OnConnected calls fn after every connect, once the session has
// re-authenticated. Rooms are not rejoined automatically, so this is where
// callers restore membership.
func (m *Manager) OnConnected(fn func()) Subscription {
	return m.subscribe(cnst.EventConnect, func(transport.Event) { fn() })
}

// OffConnected removes a callback registered with OnConnected.
func (m *Manager) OffConnected(sub Subscription) {
	m.unsubscribe(cnst.EventConnect, sub)
}
