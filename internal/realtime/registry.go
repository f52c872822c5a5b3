package realtime

import (
	"go.uber.org/zap"

	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/dto"
	"github.com/amoylab/hublink/internal/transport"
)

// Subscription is the handle returned by every On* call. The zero value
// never names a registration.
type Subscription uint64

// Policy decides when a channel's listeners attach to the binding.
type Policy int

const (
	// AttachImmediately attaches the listener right away, connected or not.
	AttachImmediately Policy = iota
	// AttachOnConnect attaches right away when connected, otherwise on the
	// next connect through a one-shot hook.
	AttachOnConnect
)

func (p Policy) String() string {
	if p == AttachOnConnect {
		return "on_connect"
	}
	return "immediately"
}

// DefaultPolicies defers notification listeners and attaches every other
// channel immediately.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		cnst.ChannelNotification: AttachOnConnect,
	}
}

// registration maps a Subscription to what it holds on the binding. At most
// one of listener and hook is set.
type registration struct {
	channel  string
	handler  transport.Handler
	listener transport.ListenerID
	hook     transport.ListenerID
}

func (m *Manager) policy(channel string) Policy {
	if p, ok := m.policies[channel]; ok {
		return p
	}
	return AttachImmediately
}

// subscribe registers handler on channel under the channel's policy. The
// entry is recorded before the handler can possibly fire.
func (m *Manager) subscribe(channel string, handler transport.Handler) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, err := m.bindingLocked()
	if err != nil {
		m.logger.Error("cannot register listener", zap.String("channel", channel), zap.Error(err))
		return 0
	}

	m.nextSub++
	sub := m.nextSub
	reg := &registration{channel: channel, handler: handler}
	m.subs[sub] = reg

	if m.policy(channel) == AttachImmediately || b.Connected() {
		reg.listener = b.On(channel, handler)
	} else {
		reg.hook = b.Once(cnst.EventConnect, func(transport.Event) { m.attachPending(sub) })
		m.logger.Debug("deferring listener until connected", zap.String("channel", channel))
	}
	m.metrics.ListenerAdded(channel)
	return sub
}

func (m *Manager) attachPending(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.subs[sub]
	if !ok || reg.hook == 0 {
		return
	}
	reg.hook = 0
	reg.listener = m.binding.On(reg.channel, reg.handler)
}

// unsubscribe removes the attached listener and any pending hook of sub.
// Unknown handles are ignored.
func (m *Manager) unsubscribe(channel string, sub Subscription) {
	m.mu.Lock()
	reg, ok := m.subs[sub]
	if !ok || reg.channel != channel {
		m.mu.Unlock()
		m.logger.Debug("ignoring removal of unknown subscription",
			zap.String("channel", channel),
			zap.Uint64("subscription", uint64(sub)))
		return
	}
	delete(m.subs, sub)
	b := m.binding
	m.mu.Unlock()

	if reg.listener != 0 {
		b.Off(channel, reg.listener)
	}
	if reg.hook != 0 {
		b.Off(cnst.EventConnect, reg.hook)
	}
	m.metrics.ListenerRemoved(channel)
}

// Subscriptions returns the number of live registrations on channel.
func (m *Manager) Subscriptions(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, reg := range m.subs {
		if reg.channel == channel {
			n++
		}
	}
	return n
}

// decodeHandler adapts a typed callback to a transport handler. Malformed
// payloads are logged and dropped.
func decodeHandler[T dto.InboundEvent](m *Manager, channel string, fn func(T)) transport.Handler {
	return func(ev transport.Event) {
		m.metrics.Inbound(channel)
		in, err := dto.DecodeInbound(channel, ev.Data)
		if err != nil {
			m.logger.Warn("dropping malformed inbound event", zap.String("channel", channel), zap.Error(err))
			return
		}
		if v, ok := in.(T); ok {
			fn(v)
		}
	}
}
