package dto

// AuthPayload is emitted on the auth channel to join the personal room.
type AuthPayload struct {
	UserID ID `json:"userId"`
}

// RoomPayload is emitted on the join and leave channels.
type RoomPayload struct {
	ConversationID ID `json:"conversationId"`
}

// OutgoingMessage is emitted on the message channel. Token carries the
// bearer credential for server-side authorization.
type OutgoingMessage struct {
	ConversationID ID     `json:"conversationId"`
	SenderID       ID     `json:"senderId"`
	SenderEmail    string `json:"senderEmail,omitempty"`
	Message        string `json:"message"`
	Token          string `json:"token"`
}

// ConversationsRequest asks for one page of the conversation list.
type ConversationsRequest struct {
	Page int `json:"page"`
}

// ConversationRequest asks for a full conversation snapshot.
type ConversationRequest struct {
	ConversationID ID `json:"conversationId"`
}

// UnreadCountRequest has no fields; it encodes as {}.
type UnreadCountRequest struct{}
