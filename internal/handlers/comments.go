package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openforum/backend/internal/database"
	"github.com/openforum/backend/internal/models"
	"github.com/openforum/backend/internal/util"
)

// CreateComment creates a new comment on a post
// POST /api/posts/:id/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	var req struct {
		Content  string  `json:"content" binding:"required,min=1,max=500"`
		ParentID *string `json:"parent_id,omitempty"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	exists, err := h.repo.PostExists(c.Request.Context(), postID)
	if err != nil {
		util.RespondInternalError(c, "Failed to fetch post")
		return
	}
	if !exists {
		util.RespondNotFound(c, "post")
		return
	}

	// A reply must target a comment on the same post
	if req.ParentID != nil && *req.ParentID != "" {
		var parent models.Comment
		if err := database.DB.First(&parent, "id = ? AND post_id = ?", *req.ParentID, postID).Error; err != nil {
			util.RespondValidationError(c, "parent_id", "Parent comment not found")
			return
		}
		// Only one level of nesting; replies to replies attach to the root
		if parent.ParentID != nil {
			req.ParentID = parent.ParentID
		}
	}

	comment, err := h.repo.SaveComment(c.Request.Context(), postID, userID, req.Content, req.ParentID)
	if err != nil {
		util.RespondInternalError(c, "Failed to create comment")
		return
	}

	c.JSON(http.StatusCreated, comment)
}

// ListComments returns a post's comments oldest first
// GET /api/posts/:id/comments
func (h *Handlers) ListComments(c *gin.Context) {
	postID := c.Param("id")
	limit, offset := parsePage(c)

	exists, err := h.repo.PostExists(c.Request.Context(), postID)
	if err != nil {
		util.RespondInternalError(c, "Failed to fetch post")
		return
	}
	if !exists {
		util.RespondNotFound(c, "post")
		return
	}

	var comments []models.Comment
	err = database.DB.
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	if err != nil {
		util.RespondInternalError(c, "Failed to fetch comments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"comments": comments,
		"limit":    limit,
		"offset":   offset,
	})
}
