package realtime

import (
	"github.com/amoylab/hublink/internal/common/cnst"
	"github.com/amoylab/hublink/internal/common/dto"
)

// Join enters a conversation room. Membership is kept by the server only
// and is not restored after a reconnect; every call emits.
func (m *Manager) Join(conversationID dto.ID) {
	m.emit(cnst.ChannelJoin, dto.RoomPayload{ConversationID: conversationID})
}

// Leave exits a conversation room.
func (m *Manager) Leave(conversationID dto.ID) {
	m.emit(cnst.ChannelLeave, dto.RoomPayload{ConversationID: conversationID})
}
