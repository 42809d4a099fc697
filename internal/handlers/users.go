package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/openforum/backend/internal/auth"
	"github.com/openforum/backend/internal/database"
	"github.com/openforum/backend/internal/logger"
	"github.com/openforum/backend/internal/models"
	"github.com/openforum/backend/internal/util"
)

// userLookup is a tagged selector for the directory routes: a path
// segment resolves as an id when it parses as a UUID, and as a
// username otherwise.
type userLookup struct {
	byID bool
	key  string
}

func parseUserLookup(raw string) userLookup {
	if _, err := uuid.Parse(raw); err == nil {
		return userLookup{byID: true, key: raw}
	}
	return userLookup{key: raw}
}

// ListUsers returns the public user directory, newest first
// GET /api/users?limit=20&offset=0
func (h *Handlers) ListUsers(c *gin.Context) {
	limit, offset := parsePage(c)

	var users []models.User
	err := database.DB.
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		util.RespondInternalError(c, "Failed to fetch users")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

// GetUser returns one public profile, addressed by id or username
// GET /api/users/:user
func (h *Handlers) GetUser(c *gin.Context) {
	lookup := parseUserLookup(c.Param("user"))

	q := database.DB
	if lookup.byID {
		q = q.Where("id = ?", lookup.key)
	} else {
		q = q.Where("LOWER(username) = LOWER(?)", lookup.key)
	}

	var user models.User
	if err := q.First(&user).Error; util.HandleDBError(c, err, "user") {
		return
	}

	c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the caller's password after verifying the
// current one. Existing tokens stay valid until they expire.
// PATCH /api/users/me/password
func (h *Handlers) ChangePassword(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.auth.ChangePassword(userID, req.CurrentPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			util.RespondUnauthorized(c, "current password is incorrect")
		case errors.Is(err, auth.ErrUserNotFound):
			util.RespondNotFound(c, "user")
		default:
			util.RespondInternalError(c, "Failed to change password")
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"changed": true})
}

// DeleteCurrentUser permanently deletes the caller's account and content
// DELETE /api/users/me
func (h *Handlers) DeleteCurrentUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	// Collect the account's stored file locators before the rows go
	var links []string
	database.DB.Model(&models.PostFile{}).
		Where("post_id IN (SELECT id FROM posts WHERE user_id = ?)", userID).
		Pluck("link", &links)

	if err := h.auth.DeleteAccount(userID); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			util.RespondNotFound(c, "user")
			return
		}
		util.RespondInternalError(c, "Failed to delete account")
		return
	}

	for _, link := range links {
		if err := h.blobs.Delete(c.Request.Context(), link); err != nil {
			logger.WarnWithFields("Failed to delete stored file", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
