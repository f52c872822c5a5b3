package realtime

import (
	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/dto"
)

// SendMessage emits a chat message. There is no local echo, and a message
// sent while disconnected is dropped rather than queued. An empty
// credential falls back to the token source; an empty senderEmail is
// omitted.
func (m *Manager) SendMessage(conversationID, senderID dto.ID, message, credential, senderEmail string) {
	if credential == "" {
		credential = m.fallbackCredential()
	}
	m.emit(cnst.ChannelMessage, dto.OutgoingMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderEmail:    senderEmail,
		Message:        message,
		Token:          credential,
	})
}

// RequestConversations asks for one page of the conversation list; the
// answer arrives on OnConversations.
func (m *Manager) RequestConversations(page int) {
	m.emit(cnst.ChannelGetConversations, dto.ConversationsRequest{Page: page})
}

// RequestConversation asks for a full snapshot; the answer arrives on
// OnConversation.
func (m *Manager) RequestConversation(conversationID dto.ID) {
	m.emit(cnst.ChannelGetConversation, dto.ConversationRequest{ConversationID: conversationID})
}

// RequestUnreadCount asks for the unread totals; they arrive as a
// conversation update.
func (m *Manager) RequestUnreadCount() {
	m.emit(cnst.ChannelGetUnreadCount, dto.UnreadCountRequest{})
}

// OnMessage listens for chat messages in joined rooms.
func (m *Manager) OnMessage(fn func(dto.Message)) Subscription {
	return m.subscribe(cnst.ChannelMessage, decodeHandler(m, cnst.ChannelMessage, fn))
}

// OffMessage removes a listener registered with OnMessage.
func (m *Manager) OffMessage(sub Subscription) {
	m.unsubscribe(cnst.ChannelMessage, sub)
}

// OnConversations listens for conversation list pages.
func (m *Manager) OnConversations(fn func(dto.ConversationsPage)) Subscription {
	return m.subscribe(cnst.ChannelConversations, decodeHandler(m, cnst.ChannelConversations, fn))
}

// OffConversations removes a listener registered with OnConversations.
func (m *Manager) OffConversations(sub Subscription) {
	m.unsubscribe(cnst.ChannelConversations, sub)
}

// OnConversation listens for full conversation snapshots.
func (m *Manager) OnConversation(fn func(dto.Conversation)) Subscription {
	return m.subscribe(cnst.ChannelConversation, decodeHandler(m, cnst.ChannelConversation, fn))
}

// OffConversation removes a listener registered with OnConversation.
func (m *Manager) OffConversation(sub Subscription) {
	m.unsubscribe(cnst.ChannelConversation, sub)
}

// OnConversationUpdated listens for partial conversation updates and unread totals.
func (m *Manager) OnConversationUpdated(fn func(dto.ConversationUpdate)) Subscription {
	return m.subscribe(cnst.ChannelConversationUpdated, decodeHandler(m, cnst.ChannelConversationUpdated, fn))
}

// OffConversationUpdated removes a listener registered with OnConversationUpdated.
func (m *Manager) OffConversationUpdated(sub Subscription) {
	m.unsubscribe(cnst.ChannelConversationUpdated, sub)
}
