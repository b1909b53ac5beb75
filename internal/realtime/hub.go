package realtime

import (
	"sync"

	"kakachat/internal/models"
)

// ConversationHub fans stored messages out to websocket subscribers of a
// conversation. This is the push replacement for the reactive queries the
// client would otherwise poll.
type ConversationHub struct {
	mu            sync.RWMutex
	conversations map[int64]map[*Conn]struct{}
}

func NewConversationHub() *ConversationHub {
	return &ConversationHub{
		conversations: make(map[int64]map[*Conn]struct{}),
	}
}

func (h *ConversationHub) Register(conversationID int64, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conversations[conversationID] == nil {
		h.conversations[conversationID] = make(map[*Conn]struct{})
	}
	h.conversations[conversationID][conn] = struct{}{}
}

func (h *ConversationHub) Unregister(conversationID int64, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.conversations[conversationID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conversations, conversationID)
		}
	}
	_ = conn.Close()
}

func (h *ConversationHub) Broadcast(conversationID int64, msg *models.EnrichedMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for conn := range h.conversations[conversationID] {
		_ = conn.WriteJSON(msg)
	}
}
