package realtime

import (
	"go.uber.org/zap"

	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/dto"
	"github.com/amoylab/hublink/internal/transport"
	"github.com/amoylab/hublink/pkg/metrics"
)

// EmitTyping sends the toggle-shaped typing state. While disconnected one
// payload is kept and sent on the next connect; a newer call replaces it.
func (m *Manager) EmitTyping(ev dto.TypingToggle) {
	m.mu.Lock()
	b, err := m.bindingLocked()
	if err != nil {
		m.mu.Unlock()
		m.metrics.Emit(cnst.ChannelTyping, metrics.EmitDropped)
		return
	}
	if m.state == StateConnected {
		m.mu.Unlock()
		m.emit(cnst.ChannelTyping, ev)
		return
	}
	m.pendingTyping = &ev
	if m.typingHook == 0 {
		m.typingHook = b.Once(cnst.EventConnect, func(transport.Event) { m.flushPendingTyping() })
	}
	m.mu.Unlock()

	m.logger.Debug("deferring typing state until connected",
		zap.Stringer("conversation", ev.ConversationID),
		zap.Bool("typing", ev.IsTyping))
	m.metrics.Emit(cnst.ChannelTyping, metrics.EmitDeferred)
}

// flushPendingTyping sends the pending toggle unless handleConnect already
// claimed it.
func (m *Manager) flushPendingTyping() {
	m.mu.Lock()
	if m.typingHook == 0 || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	ev := m.pendingTyping
	m.pendingTyping = nil
	m.typingHook = 0
	m.mu.Unlock()

	if ev != nil {
		m.emit(cnst.ChannelTyping, *ev)
	}
}

// EmitTypingStart sends the start half of the start/stop shape.
//
// Deprecated: use EmitTyping.
func (m *Manager) EmitTypingStart(sig dto.TypingSignal) {
	m.emit(cnst.ChannelTypingStart, sig)
}

// EmitTypingStop sends the stop half of the start/stop shape.
//
// Deprecated: use EmitTyping.
func (m *Manager) EmitTypingStop(sig dto.TypingSignal) {
	m.emit(cnst.ChannelTypingStop, sig)
}

// OnTyping listens for toggle-shaped typing events.
func (m *Manager) OnTyping(fn func(dto.TypingToggle)) Subscription {
	return m.subscribe(cnst.ChannelTyping, decodeHandler(m, cnst.ChannelTyping, fn))
}

// OffTyping removes a listener registered with OnTyping.
func (m *Manager) OffTyping(sub Subscription) {
	m.unsubscribe(cnst.ChannelTyping, sub)
}

// OnTypingStart listens for typing_start events.
//
// Deprecated: use OnTyping.
func (m *Manager) OnTypingStart(fn func(dto.TypingStarted)) Subscription {
	return m.subscribe(cnst.ChannelTypingStart, decodeHandler(m, cnst.ChannelTypingStart, fn))
}

// OffTypingStart removes a listener registered with OnTypingStart.
//
// Deprecated: use OffTyping.
func (m *Manager) OffTypingStart(sub Subscription) {
	m.unsubscribe(cnst.ChannelTypingStart, sub)
}

// OnTypingStop listens for typing_stop events.
//
// Deprecated: use OnTyping.
func (m *Manager) OnTypingStop(fn func(dto.TypingStopped)) Subscription {
	return m.subscribe(cnst.ChannelTypingStop, decodeHandler(m, cnst.ChannelTypingStop, fn))
}

// OffTypingStop removes a listener registered with OnTypingStop.
//
// Deprecated: use OffTyping.
func (m *Manager) OffTypingStop(sub Subscription) {
	m.unsubscribe(cnst.ChannelTypingStop, sub)
}
