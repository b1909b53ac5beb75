package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kakachat/internal/services"
)

type ConversationHandler struct {
	service *services.ConversationService
}

type createConversationRequest struct {
	Participants []int64 `json:"participants" binding:"required"`
	IsGroup      bool    `json:"is_group"`
	GroupName    string  `json:"group_name"`
	GroupImage   string  `json:"group_image"` // storage id загруженной картинки
}

type addMemberRequest struct {
	UserID int64 `json:"user_id" binding:"required"`
}

func NewConversationHandler(service *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{service: service}
}

// Create makes a direct chat for one selected user, or a group for several.
func (h *ConversationHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !req.IsGroup {
		if len(req.Participants) != 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "a direct conversation needs exactly one other participant"})
			return
		}
		conv, err := h.service.CreateDirect(userID, req.Participants[0])
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusCreated, conv)
		return
	}

	conv, err := h.service.CreateGroup(userID, req.Participants, req.GroupName, req.GroupImage)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *ConversationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	convs, err := h.service.ListForUser(userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (h *ConversationHandler) Members(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := h.service.Members(convID, userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (h *ConversationHandler) AddMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.AddParticipant(convID, userID, req.UserID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member added"})
}

// RemoveMember handles both self-leave and admin kicks.
func (h *ConversationHandler) RemoveMember(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	convID, ok := pathID(c, "id")
	if !ok {
		return
	}
	memberID, ok := pathID(c, "userID")
	if !ok {
		return
	}

	if err := h.service.RemoveParticipant(convID, userID, memberID); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}
