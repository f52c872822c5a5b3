package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/amoylab/hublink/internal/common/cnst"
)

// Emitted is one outbound event recorded by a MemoryBinding.
type Emitted struct {
	Event string
	Data  json.RawMessage
}

// MemoryBinding is an in-process binding. The owner drives the connection
// lifecycle explicitly through Accept, Reject and SimulateDisconnect, which
// makes it the binding used by tests and by dry runs.
type MemoryBinding struct {
	logger *zap.Logger
	events *emitter

	mu           sync.Mutex
	connected    bool
	connecting   bool
	closed       bool
	autoAccept   bool
	auth         string
	connectCalls int
	emitted      []Emitted
}

var _ Binding = (*MemoryBinding)(nil)

// MemoryOption configures a MemoryBinding.
type MemoryOption func(*MemoryBinding)

// WithAutoAccept makes every Connect succeed immediately.
func WithAutoAccept() MemoryOption {
	return func(b *MemoryBinding) { b.autoAccept = true }
}

// NewMemoryBinding creates an in-process binding
func NewMemoryBinding(logger *zap.Logger, opts ...MemoryOption) *MemoryBinding {
	b := &MemoryBinding{
		logger: logger.Named("transport.memory"),
		events: newEmitter(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Connect implements Binding.Connect
func (b *MemoryBinding) Connect(_ context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return cnst.ErrBindingClosed
	}
	if b.connected || b.connecting {
		b.mu.Unlock()
		return nil
	}
	b.connecting = true
	b.connectCalls++
	auto := b.autoAccept
	b.mu.Unlock()

	if auto {
		b.Accept()
	}
	return nil
}

// Accept completes a pending or transport-driven connection and raises
// connect.
func (b *MemoryBinding) Accept() {
	b.mu.Lock()
	if b.closed || b.connected {
		b.mu.Unlock()
		return
	}
	b.connecting = false
	b.connected = true
	b.mu.Unlock()

	b.logger.Debug("connection accepted")
	b.events.dispatch(Event{Name: cnst.EventConnect})
}

// Reject fails the pending handshake with err. The binding stays in the
// connecting phase, as a real transport would while it retries.
func (b *MemoryBinding) Reject(err error) {
	b.events.dispatch(Event{Name: cnst.EventConnectError, Err: err})
}

// GiveUp ends a pending connection as if reconnection had been exhausted.
func (b *MemoryBinding) GiveUp(err error) {
	b.mu.Lock()
	b.connecting = false
	b.mu.Unlock()
	b.events.dispatch(Event{Name: cnst.EventReconnectFailed, Err: err})
}

// SimulateDisconnect drops the connection with reason. For reconnectable
// reasons the binding moves back to connecting and waits for Accept.
func (b *MemoryBinding) SimulateDisconnect(reason cnst.DisconnectReason) {
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return
	}
	b.connected = false
	b.connecting = reason.Reconnectable()
	b.mu.Unlock()

	b.logger.Debug("connection dropped", zap.Stringer("reason", reason))
	b.events.dispatch(Event{Name: cnst.EventDisconnect, Reason: reason})
}

// Deliver raises an inbound wire event with payload encoded as JSON.
func (b *MemoryBinding) Deliver(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	b.events.dispatch(Event{Name: event, Data: data})
	return nil
}

// Disconnect implements Binding.Disconnect
func (b *MemoryBinding) Disconnect() {
	b.mu.Lock()
	wasConnected := b.connected
	b.connected = false
	b.connecting = false
	b.mu.Unlock()

	if wasConnected {
		b.events.dispatch(Event{Name: cnst.EventDisconnect, Reason: cnst.ReasonClientDisconnect})
	}
}

// Connected implements Binding.Connected
func (b *MemoryBinding) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// SetAuth implements Binding.SetAuth
func (b *MemoryBinding) SetAuth(token string) {
	b.mu.Lock()
	b.auth = token
	b.mu.Unlock()
}

// Auth returns the credential last passed to SetAuth.
func (b *MemoryBinding) Auth() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.auth
}

// Emit implements Binding.Emit
func (b *MemoryBinding) Emit(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return cnst.ErrBindingClosed
	}
	if !b.connected {
		return cnst.ErrNotConnected
	}
	b.emitted = append(b.emitted, Emitted{Event: event, Data: data})
	return nil
}

// Emitted returns the recorded outbound events, filtered by name when
// names are given.
func (b *MemoryBinding) Emitted(names ...string) []Emitted {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Emitted, 0, len(b.emitted))
	for _, e := range b.emitted {
		if len(names) == 0 || slices.Contains(names, e.Event) {
			out = append(out, e)
		}
	}
	return out
}

// ConnectCalls counts the Connect calls that started a connection.
func (b *MemoryBinding) ConnectCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connectCalls
}

// ListenerCount returns the number of listeners attached to event.
func (b *MemoryBinding) ListenerCount(event string) int {
	return b.events.count(event)
}

// On implements Binding.On
func (b *MemoryBinding) On(event string, h Handler) ListenerID {
	return b.events.add(event, h, false)
}

// Once implements Binding.Once
func (b *MemoryBinding) Once(event string, h Handler) ListenerID {
	return b.events.add(event, h, true)
}

// Off implements Binding.Off
func (b *MemoryBinding) Off(event string, id ListenerID) {
	b.events.remove(event, id)
}

// Close implements Binding.Close
func (b *MemoryBinding) Close() error {
	b.Disconnect()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
