package cnst

// Lifecycle events raised by a transport binding itself.
const (
	EventConnect         = "connect"
	EventDisconnect      = "disconnect"
	EventConnectError    = "connect_error"
	EventReconnectFailed = "reconnect_failed"
)

// Outbound channels.
const (
	ChannelAuth             = "auth"
	ChannelJoin             = "join"
	ChannelLeave            = "leave"
	ChannelGetConversations = "get_conversations"
	ChannelGetConversation  = "get_conversation"
	ChannelGetUnreadCount   = "get_unread_count"
)

// Channels used in both directions or inbound only.
const (
	ChannelMessage             = "message"
	ChannelTyping              = "typing"
	ChannelTypingStart         = "typing_start"
	ChannelTypingStop          = "typing_stop"
	ChannelConversations       = "conversations"
	ChannelConversation        = "conversation"
	ChannelConversationUpdated = "conversation_updated"
	ChannelNotification        = "notification"
)

// IsLifecycleEvent reports whether name is reserved by the binding.
func IsLifecycleEvent(name string) bool {
	switch name {
	case EventConnect, EventDisconnect, EventConnectError, EventReconnectFailed:
		return true
	}
	return false
}
