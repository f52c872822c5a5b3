package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/config"
)

// WebSocketBinding implements Binding over a single websocket connection
// carrying JSON envelopes. It reconnects on its own with a fixed delay,
// except after a server or client disconnect.
type WebSocketBinding struct {
	logger *zap.Logger
	cfg    config.TransportConfig
	url    string
	dialer *websocket.Dialer
	events *emitter
	runs   *connLoop[*websocket.Conn]

	mu   sync.Mutex
	auth string

	writeMu sync.Mutex
}

var _ Binding = (*WebSocketBinding)(nil)

// NewWebSocketBinding creates a websocket binding for cfg.Endpoint + cfg.Path
func NewWebSocketBinding(logger *zap.Logger, cfg config.TransportConfig) (*WebSocketBinding, error) {
	target, err := socketURL(cfg.Endpoint, cfg.Path)
	if err != nil {
		return nil, err
	}
	logger = logger.Named("transport.websocket")
	b := &WebSocketBinding{
		logger: logger,
		cfg:    cfg,
		url:    target,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		events: newEmitter(),
	}
	b.runs = &connLoop[*websocket.Conn]{
		logger:   logger.With(zap.String("url", target)),
		events:   b.events,
		attempts: cfg.ReconnectAttempts,
		delay:    cfg.ReconnectDelay,
		open:     b.dial,
		serve:    b.readLoop,
		shut:     func(conn *websocket.Conn) { _ = conn.Close() },
	}
	return b, nil
}

// socketURL joins endpoint and path and maps http(s) onto ws(s).
func socketURL(endpoint, path string) (string, error) {
	if endpoint == "" {
		return "", cnst.ErrEmptyEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	if path != "" {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}
	return u.String(), nil
}

// Connect implements Binding.Connect
func (b *WebSocketBinding) Connect(ctx context.Context) error {
	return b.runs.start(ctx)
}

func (b *WebSocketBinding) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	b.mu.Lock()
	if b.auth != "" {
		header.Set("Authorization", "Bearer "+b.auth)
	}
	b.mu.Unlock()

	conn, resp, err := b.dialer.DialContext(ctx, b.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// readLoop delivers inbound envelopes until the connection ends and
// returns why it ended.
func (b *WebSocketBinding) readLoop(ctx context.Context, conn *websocket.Conn) cnst.DisconnectReason {
	deadline := b.cfg.PingInterval + b.cfg.HandshakeTimeout
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go b.pingLoop(conn, pingDone)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return b.classify(ctx, err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(deadline))

		event, data, err := decodeEnvelope(frame)
		if err != nil {
			b.logger.Warn("dropping inbound frame", zap.Error(err), zap.ByteString("frame", frame))
			continue
		}
		if cnst.IsLifecycleEvent(event) {
			b.logger.Warn("dropping inbound frame with reserved event name", zap.String("event", event))
			continue
		}
		b.events.dispatch(Event{Name: event, Data: data})
	}
}

func (b *WebSocketBinding) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(b.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(b.cfg.HandshakeTimeout)); err != nil {
				b.logger.Debug("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

func (b *WebSocketBinding) classify(ctx context.Context, err error) cnst.DisconnectReason {
	if ctx.Err() != nil {
		return cnst.ReasonClientDisconnect
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseNormalClosure {
			return cnst.ReasonServerDisconnect
		}
		return cnst.ReasonTransportClose
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return cnst.ReasonPingTimeout
	}
	b.logger.Debug("read failed", zap.Error(err))
	return cnst.ReasonTransportError
}

// Disconnect implements Binding.Disconnect
func (b *WebSocketBinding) Disconnect() {
	conn, live := b.runs.stop()
	if !live {
		return
	}
	b.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	b.writeMu.Unlock()
	_ = conn.Close()

	b.logger.Info("disconnected", zap.Stringer("reason", cnst.ReasonClientDisconnect))
	b.events.dispatch(Event{Name: cnst.EventDisconnect, Reason: cnst.ReasonClientDisconnect})
}

// Connected implements Binding.Connected
func (b *WebSocketBinding) Connected() bool {
	_, ok := b.runs.current()
	return ok
}

// SetAuth implements Binding.SetAuth
func (b *WebSocketBinding) SetAuth(token string) {
	b.mu.Lock()
	b.auth = token
	b.mu.Unlock()
}

// Emit implements Binding.Emit
func (b *WebSocketBinding) Emit(event string, payload any) error {
	frame, err := encodeEnvelope(event, payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	if b.runs.isClosed() {
		return cnst.ErrBindingClosed
	}
	conn, ok := b.runs.current()
	if !ok {
		return cnst.ErrNotConnected
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(b.cfg.HandshakeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("failed to write %s frame: %w", event, err)
	}
	return nil
}

// On implements Binding.On
func (b *WebSocketBinding) On(event string, h Handler) ListenerID {
	return b.events.add(event, h, false)
}

// Once implements Binding.Once
func (b *WebSocketBinding) Once(event string, h Handler) ListenerID {
	return b.events.add(event, h, true)
}

// Off implements Binding.Off
func (b *WebSocketBinding) Off(event string, id ListenerID) {
	b.events.remove(event, id)
}

// Close implements Binding.Close
func (b *WebSocketBinding) Close() error {
	b.runs.close()
	b.Disconnect()
	return nil
}

// ServerDisconnect is the close frame a server sends to end a session on
// purpose. Bindings report it as cnst.ReasonServerDisconnect.
func ServerDisconnect() []byte {
	return websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(cnst.ReasonServerDisconnect))
}

// Envelope encodes payload the way bindings frame wire events. Servers
// and tests use it to push events.
func Envelope(event string, payload any) ([]byte, error) {
	return encodeEnvelope(event, payload)
}
