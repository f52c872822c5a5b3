package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/config"
)

// FallbackBinding walks the configured transport types in order. When the
// active binding gives up before it ever connected, the next type is built
// and connected in its place and the failure is not reported. Once a
// binding has connected the choice sticks for the lifetime of the session.
type FallbackBinding struct {
	logger *zap.Logger
	cfg    config.TransportConfig
	types  []cnst.TransportType
	events *emitter

	mu        sync.Mutex
	next      int
	active    cnst.TransportType
	inner     Binding
	gen       int
	connected bool
	names     map[string]bool
	auth      string
	hasAuth   bool
	closed    bool
}

var _ Binding = (*FallbackBinding)(nil)

func newFallbackBinding(logger *zap.Logger, cfg config.TransportConfig, types []cnst.TransportType, first Binding, firstType cnst.TransportType, next int) *FallbackBinding {
	f := &FallbackBinding{
		logger: logger.Named("transport.fallback"),
		cfg:    cfg,
		types:  types,
		events: newEmitter(),
		next:   next,
		active: firstType,
		inner:  first,
		names: map[string]bool{
			cnst.EventConnect:         true,
			cnst.EventDisconnect:      true,
			cnst.EventConnectError:    true,
			cnst.EventReconnectFailed: true,
		},
	}
	f.mu.Lock()
	f.installLocked()
	f.mu.Unlock()
	return f
}

// Active returns the transport type currently in use.
func (f *FallbackBinding) Active() cnst.TransportType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// installLocked forwards every known event name of the active binding.
func (f *FallbackBinding) installLocked() {
	for name := range f.names {
		f.inner.On(name, f.forward(f.gen, name))
	}
}

func (f *FallbackBinding) forward(gen int, name string) Handler {
	return func(ev Event) {
		f.mu.Lock()
		if gen != f.gen {
			f.mu.Unlock()
			return
		}
		switch name {
		case cnst.EventConnect:
			f.connected = true
		case cnst.EventReconnectFailed:
			if !f.connected && f.next < len(f.types) {
				f.mu.Unlock()
				if f.advance(gen, ev.Err) {
					return
				}
				f.events.dispatch(ev)
				return
			}
		}
		f.mu.Unlock()
		f.events.dispatch(ev)
	}
}

// advance replaces the active binding with the next type that can be
// built and connects it. It reports false when no candidate is left.
func (f *FallbackBinding) advance(gen int, cause error) bool {
	for {
		f.mu.Lock()
		if gen != f.gen || f.closed {
			f.mu.Unlock()
			return true
		}
		if f.next >= len(f.types) {
			f.mu.Unlock()
			return false
		}
		typ := f.types[f.next]
		f.next++
		from := f.active
		f.mu.Unlock()

		b, err := newBinding(f.logger, typ, f.cfg)
		if err != nil {
			f.logger.Warn("transport unavailable, trying next", zap.Stringer("type", typ), zap.Error(err))
			continue
		}

		f.mu.Lock()
		if gen != f.gen || f.closed {
			f.mu.Unlock()
			_ = b.Close()
			return true
		}
		old := f.inner
		f.gen++
		gen = f.gen
		f.inner = b
		f.active = typ
		f.connected = false
		f.installLocked()
		auth, hasAuth := f.auth, f.hasAuth
		f.mu.Unlock()

		_ = old.Close()
		f.logger.Warn("falling back to next transport",
			zap.Stringer("from", from),
			zap.Stringer("to", typ),
			zap.Error(cause))
		if hasAuth {
			b.SetAuth(auth)
		}
		if err := b.Connect(context.Background()); err != nil {
			f.logger.Warn("failed to start transport", zap.Stringer("type", typ), zap.Error(err))
			cause = err
			continue
		}
		return true
	}
}

func (f *FallbackBinding) current() Binding {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inner
}

// Connect implements Binding.Connect
func (f *FallbackBinding) Connect(ctx context.Context) error {
	return f.current().Connect(ctx)
}

// Disconnect implements Binding.Disconnect
func (f *FallbackBinding) Disconnect() {
	f.current().Disconnect()
}

// Connected implements Binding.Connected
func (f *FallbackBinding) Connected() bool {
	return f.current().Connected()
}

// SetAuth implements Binding.SetAuth
func (f *FallbackBinding) SetAuth(token string) {
	f.mu.Lock()
	f.auth, f.hasAuth = token, true
	inner := f.inner
	f.mu.Unlock()
	inner.SetAuth(token)
}

// Emit implements Binding.Emit
func (f *FallbackBinding) Emit(event string, payload any) error {
	return f.current().Emit(event, payload)
}

// On implements Binding.On
func (f *FallbackBinding) On(event string, h Handler) ListenerID {
	f.watch(event)
	return f.events.add(event, h, false)
}

// Once implements Binding.Once
func (f *FallbackBinding) Once(event string, h Handler) ListenerID {
	f.watch(event)
	return f.events.add(event, h, true)
}

// Off implements Binding.Off
func (f *FallbackBinding) Off(event string, id ListenerID) {
	f.events.remove(event, id)
}

// watch starts forwarding event from the active binding.
func (f *FallbackBinding) watch(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.names[event] {
		return
	}
	f.names[event] = true
	f.inner.On(event, f.forward(f.gen, event))
}

// Close implements Binding.Close
func (f *FallbackBinding) Close() error {
	f.mu.Lock()
	f.closed = true
	inner := f.inner
	f.mu.Unlock()
	return inner.Close()
}
