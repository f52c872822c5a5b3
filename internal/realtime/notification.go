package realtime

import (
	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/dto"
)

// OnNotification registers fn for out-of-band notifications. Under the
// default policy the listener attaches once connected and then stays
// attached across reconnects. Each call yields its own Subscription, so
// registering the same callback twice delivers twice and both handles are
// removable.
func (m *Manager) OnNotification(fn func(dto.Notification)) Subscription {
	return m.subscribe(cnst.ChannelNotification, decodeHandler(m, cnst.ChannelNotification, fn))
}

// OffNotification detaches the listener and cancels its pending connect
// hook. Removing an unknown or already removed handle does nothing.
func (m *Manager) OffNotification(sub Subscription) {
	m.unsubscribe(cnst.ChannelNotification, sub)
}
