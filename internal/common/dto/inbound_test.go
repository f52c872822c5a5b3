package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amoylab/hublink/internal/common/cnst"
)

func TestDecodeInbound_Variants(t *testing.T) {
	cases := []struct {
		channel string
		data    string
		check   func(t *testing.T, ev InboundEvent)
	}{
		{
			channel: cnst.ChannelMessage,
			data:    `{"conversationId":"c1","senderId":5,"message":"hi","createdAt":"2026-10-01T10:00:00Z"}`,
			check: func(t *testing.T, ev InboundEvent) {
				msg := ev.(Message)
				assert.Equal(t, StringID("c1"), msg.ConversationID)
				assert.Equal(t, NumericID(5), msg.SenderID)
				assert.Equal(t, "hi", msg.Message)
				assert.Equal(t, time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC), msg.CreatedAt)
			},
		},
		{
			channel: cnst.ChannelTyping,
			data:    `{"conversationId":"c1","userId":5,"userEmail":"a@b.c","userName":"Ann","isTyping":true}`,
			check: func(t *testing.T, ev InboundEvent) {
				assert.True(t, ev.(TypingToggle).IsTyping)
			},
		},
		{
			channel: cnst.ChannelTypingStart,
			data:    `{"conversationId":"c1","userId":5}`,
			check: func(t *testing.T, ev InboundEvent) {
				assert.Equal(t, NumericID(5), ev.(TypingStarted).UserID)
			},
		},
		{
			channel: cnst.ChannelTypingStop,
			data:    `{"conversationId":"c1","userId":5,"userName":"Ann"}`,
			check: func(t *testing.T, ev InboundEvent) {
				assert.Equal(t, "Ann", ev.(TypingStopped).UserName)
			},
		},
		{
			channel: cnst.ChannelConversations,
			data:    `{"page":2,"conversations":[{"id":"c1","participants":[{"id":1,"role":"vendor"}],"unreadCount":3,"updatedAt":"2026-10-01T10:00:00Z"}]}`,
			check: func(t *testing.T, ev InboundEvent) {
				page := ev.(ConversationsPage)
				assert.Equal(t, 2, page.Page)
				require.Len(t, page.Conversations, 1)
				assert.Equal(t, "vendor", page.Conversations[0].Participants[0].Role)
			},
		},
		{
			channel: cnst.ChannelConversation,
			data:    `{"id":"c1","participants":[],"messages":[{"conversationId":"c1","senderId":1,"message":"x","createdAt":"2026-10-01T10:00:00Z"}]}`,
			check: func(t *testing.T, ev InboundEvent) {
				assert.Len(t, ev.(Conversation).Messages, 1)
			},
		},
		{
			channel: cnst.ChannelConversationUpdated,
			data:    `{"conversationId":"c1","unreadCount":0}`,
			check: func(t *testing.T, ev InboundEvent) {
				upd := ev.(ConversationUpdate)
				require.NotNil(t, upd.UnreadCount)
				assert.Equal(t, 0, *upd.UnreadCount)
				assert.Nil(t, upd.LastMessage)
			},
		},
		{
			channel: cnst.ChannelNotification,
			data:    `{"id":9,"type":"order_update","title":"Order","message":"shipped","priority":"high","data":{"orderId":"o-1"},"readAt":null,"createdAt":"2026-10-01T10:00:00Z"}`,
			check: func(t *testing.T, ev InboundEvent) {
				n := ev.(Notification)
				assert.Equal(t, PriorityHigh, n.Priority)
				assert.True(t, n.Unread())
				assert.Equal(t, "o-1", n.Data.Get("orderId").String())
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.channel, func(t *testing.T) {
			ev, err := DecodeInbound(tc.channel, []byte(tc.data))
			require.NoError(t, err)
			assert.Equal(t, tc.channel, ev.Channel())
			tc.check(t, ev)
		})
	}
}

func TestDecodeInbound_Errors(t *testing.T) {
	_, err := DecodeInbound("auth", []byte(`{}`))
	assert.ErrorIs(t, err, cnst.ErrUnknownChannel)

	_, err = DecodeInbound(cnst.ChannelMessage, []byte(`{"conversationId":[]}`))
	assert.Error(t, err)
}

func TestOutboundShapes(t *testing.T) {
	out, err := json.Marshal(OutgoingMessage{
		ConversationID: StringID("c1"),
		SenderID:       NumericID(3),
		Message:        "hello",
		Token:          "tok",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversationId":"c1","senderId":3,"message":"hello","token":"tok"}`, string(out))

	out, err = json.Marshal(UnreadCountRequest{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(out))

	out, err = json.Marshal(TypingSignal{ConversationID: StringID("c1"), UserID: NumericID(3)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversationId":"c1","userId":3}`, string(out))
}
