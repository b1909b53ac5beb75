package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kakachat/internal/realtime"
	"kakachat/internal/services"
)

type MessageHandler struct {
	service       *services.MessageService
	conversations *services.ConversationService
	hub           *realtime.ConversationHub
}

type sendTextRequest struct {
	Content string `json:"content" binding:"required"`
}

type sendMediaRequest struct {
	StorageID string `json:"storage_id" binding:"required"`
}

func NewMessageHandler(service *services.MessageService, conversations *services.ConversationService, hub *realtime.ConversationHub) *MessageHandler {
	return &MessageHandler{service: service, conversations: conversations, hub: hub}
}

func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	messages, err := h.service.ListMessages(convID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *MessageHandler) SendText(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req sendTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.service.SendText(c.Request.Context(), userID, convID, req.Content)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) SendImage(c *gin.Context) {
	h.sendMedia(c, func(userID, convID int64, storageID string) (interface{}, error) {
		return h.service.SendImage(userID, convID, storageID)
	})
}

func (h *MessageHandler) SendVideo(c *gin.Context) {
	h.sendMedia(c, func(userID, convID int64, storageID string) (interface{}, error) {
		return h.service.SendVideo(userID, convID, storageID)
	})
}

func (h *MessageHandler) sendMedia(c *gin.Context, send func(userID, convID int64, storageID string) (interface{}, error)) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req sendMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := send(userID, convID, req.StorageID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Stream upgrades to a websocket and pushes every new message in the
// conversation to the client. Inbound frames are treated as text sends, so
// a connected client needs no extra HTTP round-trips.
func (h *MessageHandler) Stream(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := h.conversations.GetForParticipant(convID, userID); err != nil {
		respondServiceError(c, err)
		return
	}

	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		return
	}
	h.hub.Register(convID, conn)
	defer h.hub.Unregister(convID, conn)

	for {
		var incoming sendTextRequest
		if err := conn.ReadJSON(&incoming); err != nil {
			break
		}
		if incoming.Content == "" {
			continue
		}
		if _, err := h.service.SendText(c.Request.Context(), userID, convID, incoming.Content); err != nil {
			_ = conn.WriteJSON(gin.H{"error": err.Error()})
		}
	}
}
