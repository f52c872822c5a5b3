package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/amoylab/hublink/internal/common/cnst"
)

// InboundEvent is implemented by every payload the server can push. The
// set is closed: DecodeInbound returns one of the types in this file.
type InboundEvent interface {
	Channel() string
}

// Message is a chat message relayed to the caller.
type Message struct {
	ConversationID ID        `json:"conversationId"`
	SenderID       ID        `json:"senderId"`
	SenderEmail    string    `json:"senderEmail,omitempty"`
	Message        string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (Message) Channel() string { return cnst.ChannelMessage }

// TypingToggle is the primary typing shape, sent and received on the
// typing channel.
type TypingToggle struct {
	ConversationID ID     `json:"conversationId"`
	UserID         ID     `json:"userId"`
	UserEmail      string `json:"userEmail"`
	UserName       string `json:"userName"`
	IsTyping       bool   `json:"isTyping"`
}

func (TypingToggle) Channel() string { return cnst.ChannelTyping }

// TypingSignal is the body of the start/stop typing shape.
//
// Deprecated: the start/stop pair duplicates TypingToggle; new callers
// should use the toggle shape.
type TypingSignal struct {
	ConversationID ID     `json:"conversationId"`
	UserID         ID     `json:"userId"`
	UserEmail      string `json:"userEmail,omitempty"`
	UserName       string `json:"userName,omitempty"`
}

// TypingStarted is received on typing_start.
type TypingStarted struct {
	TypingSignal
}

func (TypingStarted) Channel() string { return cnst.ChannelTypingStart }

// TypingStopped is received on typing_stop.
type TypingStopped struct {
	TypingSignal
}

func (TypingStopped) Channel() string { return cnst.ChannelTypingStop }

// Participant is a member of a conversation.
type Participant struct {
	ID     ID     `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"` // admin, vendor, customer, technician
	Avatar string `json:"avatar,omitempty"`
}

// Conversation is a full conversation snapshot.
type Conversation struct {
	ID           ID            `json:"id"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
	Messages     []Message     `json:"messages,omitempty"`
	UnreadCount  int           `json:"unreadCount"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (Conversation) Channel() string { return cnst.ChannelConversation }

// ConversationsPage answers get_conversations.
type ConversationsPage struct {
	Conversations []Conversation `json:"conversations"`
	Page          int            `json:"page"`
	TotalPages    int            `json:"totalPages,omitempty"`
	Total         int            `json:"total,omitempty"`
}

func (ConversationsPage) Channel() string { return cnst.ChannelConversations }

// ConversationUpdate is a partial snapshot; nil fields did not change.
type ConversationUpdate struct {
	ConversationID ID         `json:"conversationId"`
	LastMessage    *Message   `json:"lastMessage,omitempty"`
	UnreadCount    *int       `json:"unreadCount,omitempty"`
	TotalUnread    *int       `json:"totalUnread,omitempty"`
	UpdatedAt      *time.Time `json:"updatedAt,omitempty"`
}

func (ConversationUpdate) Channel() string { return cnst.ChannelConversationUpdated }

// DecodeInbound decodes data received on channel into its typed variant.
func DecodeInbound(channel string, data []byte) (InboundEvent, error) {
	var (
		ev  InboundEvent
		err error
	)
	switch channel {
	case cnst.ChannelMessage:
		ev, err = decodeAs[Message](data)
	case cnst.ChannelTyping:
		ev, err = decodeAs[TypingToggle](data)
	case cnst.ChannelTypingStart:
		ev, err = decodeAs[TypingStarted](data)
	case cnst.ChannelTypingStop:
		ev, err = decodeAs[TypingStopped](data)
	case cnst.ChannelConversations:
		ev, err = decodeAs[ConversationsPage](data)
	case cnst.ChannelConversation:
		ev, err = decodeAs[Conversation](data)
	case cnst.ChannelConversationUpdated:
		ev, err = decodeAs[ConversationUpdate](data)
	case cnst.ChannelNotification:
		ev, err = decodeAs[Notification](data)
	default:
		return nil, fmt.Errorf("%w: %s", cnst.ErrUnknownChannel, channel)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", channel, err)
	}
	return ev, nil
}

func decodeAs[T InboundEvent](data []byte) (InboundEvent, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
