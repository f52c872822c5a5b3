package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/dto"
)

func notificationPayload(id int) map[string]any {
	return map[string]any{
		"id":        id,
		"type":      "order_update",
		"title":     "Order shipped",
		"message":   "Your order is on its way",
		"priority":  "medium",
		"data":      map[string]any{"orderId": "o-1"},
		"readAt":    nil,
		"createdAt": "2026-10-01T10:00:00Z",
	}
}

func TestManager_NotificationSurvivesReconnect(t *testing.T) {
	s := newTestSession(t)
	var got []dto.Notification
	sub := s.OnNotification(func(n dto.Notification) { got = append(got, n) })
	require.NotZero(t, sub)

	// deferred by default: nothing attached until connected
	assert.Zero(t, s.binding.ListenerCount(cnst.ChannelNotification))

	s.connect(t)
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.ChannelNotification))
	require.NoError(t, s.binding.Deliver(cnst.ChannelNotification, notificationPayload(1)))

	s.binding.SimulateDisconnect(cnst.ReasonTransportError)
	s.binding.Accept()
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.ChannelNotification))
	require.NoError(t, s.binding.Deliver(cnst.ChannelNotification, notificationPayload(2)))

	require.Len(t, got, 2)
	assert.Equal(t, dto.NumericID(2), got[1].ID)
	assert.Equal(t, "o-1", got[1].Data.Get("orderId").String())
}

func TestManager_OffNotificationBeforeConnectCancelsHook(t *testing.T) {
	s := newTestSession(t)
	calls := 0
	sub := s.OnNotification(func(dto.Notification) { calls++ })
	assert.Equal(t, 2, s.binding.ListenerCount(cnst.EventConnect))

	s.OffNotification(sub)
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.EventConnect))

	s.connect(t)
	assert.Zero(t, s.binding.ListenerCount(cnst.ChannelNotification))
	require.NoError(t, s.binding.Deliver(cnst.ChannelNotification, notificationPayload(1)))
	assert.Zero(t, calls)
	assert.Zero(t, s.Subscriptions(cnst.ChannelNotification))
}

func TestManager_NotificationAttachesNowWhenConnected(t *testing.T) {
	s := newTestSession(t)
	s.connect(t)

	calls := 0
	sub := s.OnNotification(func(dto.Notification) { calls++ })
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.ChannelNotification))
	require.NoError(t, s.binding.Deliver(cnst.ChannelNotification, notificationPayload(1)))
	assert.Equal(t, 1, calls)

	s.OffNotification(sub)
	assert.Zero(t, s.binding.ListenerCount(cnst.ChannelNotification))
}

func TestManager_RepeatedNotificationRegistrations(t *testing.T) {
	s := newTestSession(t)
	calls := 0
	cb := func(dto.Notification) { calls++ }
	first := s.OnNotification(cb)
	second := s.OnNotification(cb)
	assert.NotEqual(t, first, second)

	s.connect(t)
	require.NoError(t, s.binding.Deliver(cnst.ChannelNotification, notificationPayload(1)))
	assert.Equal(t, 2, calls)

	s.OffNotification(first)
	s.OffNotification(first)
	s.OffNotification(second)
	s.OffNotification(Subscription(999))
	assert.Zero(t, s.binding.ListenerCount(cnst.ChannelNotification))
	assert.Zero(t, s.Subscriptions(cnst.ChannelNotification))
}

func TestManager_DisconnectKeepsPendingHooks(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Connect(context.Background(), ""))
	calls := 0
	s.OnNotification(func(dto.Notification) { calls++ })

	s.Disconnect()
	s.connect(t)
	require.NoError(t, s.binding.Deliver(cnst.ChannelNotification, notificationPayload(1)))
	assert.Equal(t, 1, calls)
}

func TestManager_ChannelPolicies(t *testing.T) {
	s := newTestSession(t, WithDeferredChannels([]string{cnst.ChannelMessage}))
	s.OnNotification(func(dto.Notification) {})
	s.OnMessage(func(dto.Message) {})
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.ChannelNotification))
	assert.Zero(t, s.binding.ListenerCount(cnst.ChannelMessage))

	s.connect(t)
	assert.Equal(t, 1, s.binding.ListenerCount(cnst.ChannelMessage))

	p := newTestSession(t, WithPolicy(cnst.ChannelNotification, AttachImmediately))
	p.OnNotification(func(dto.Notification) {})
	assert.Equal(t, 1, p.binding.ListenerCount(cnst.ChannelNotification))

	assert.Equal(t, "on_connect", AttachOnConnect.String())
	assert.Equal(t, "immediately", AttachImmediately.String())
}
