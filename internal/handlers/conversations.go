package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openforum/backend/internal/database"
	"github.com/openforum/backend/internal/logger"
	"github.com/openforum/backend/internal/models"
	"github.com/openforum/backend/internal/repository"
	"github.com/openforum/backend/internal/util"
)

// CreateConversation finds or creates the direct conversation between
// the caller and another user
// POST /api/conversations
func (h *Handlers) CreateConversation(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}
	if req.UserID == userID {
		util.RespondValidationError(c, "user_id", "cannot start a conversation with yourself")
		return
	}

	var other models.User
	if err := database.DB.First(&other, "id = ?", req.UserID).Error; util.HandleDBError(c, err, "user") {
		return
	}

	conv, err := h.repo.GetOrCreateConversation(c.Request.Context(), userID, req.UserID)
	if err != nil {
		util.RespondInternalError(c, "Failed to create conversation")
		return
	}

	c.JSON(http.StatusOK, conv)
}

// ListConversations returns the caller's conversations
// GET /api/conversations
func (h *Handlers) ListConversations(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	conversations, err := h.repo.ListConversations(c.Request.Context(), userID)
	if err != nil {
		util.RespondInternalError(c, "Failed to fetch conversations")
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetConversation returns one conversation with its recent messages.
// Non-members get 403.
// GET /api/conversations/:id?limit=50&offset=0
func (h *Handlers) GetConversation(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	convID := c.Param("id")

	if err := h.repo.RequireMembership(c.Request.Context(), convID, userID); err != nil {
		if errors.Is(err, repository.ErrNotAMember) {
			util.RespondForbidden(c, "not a member of this conversation")
			return
		}
		util.RespondInternalError(c, "Failed to fetch conversation")
		return
	}

	conv, err := h.repo.GetConversation(c.Request.Context(), convID)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			util.RespondNotFound(c, "conversation")
			return
		}
		util.RespondInternalError(c, "Failed to fetch conversation")
		return
	}

	limit, offset := parsePage(c)
	messages, err := h.repo.ListMessages(c.Request.Context(), convID, limit, offset)
	if err != nil {
		util.RespondInternalError(c, "Failed to fetch messages")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"messages":     messages,
	})
}

// GetOnlineUsers reports which of the requested users have a live
// connection, using the Redis presence tracker when available
// GET /api/users/online
func (h *Handlers) GetOnlineUsers(c *gin.Context) {
	if _, ok := util.GetUserIDFromContext(c); !ok {
		return
	}

	if h.presence == nil {
		c.JSON(http.StatusOK, gin.H{"online": []string{}})
		return
	}

	online, err := h.presence.OnlineUsers(c.Request.Context())
	if err != nil {
		logger.WarnWithFields("Failed to read presence data", err)
		util.RespondInternalError(c, "Failed to fetch online users")
		return
	}
	if online == nil {
		online = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"online": online})
}
