package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/openforum/backend/internal/auth"
	"github.com/openforum/backend/internal/database"
	"github.com/openforum/backend/internal/models"
	"github.com/openforum/backend/internal/util"
)

// Register creates a new account and returns a token pair
// POST /api/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Register(req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			util.RespondConflict(c, "email")
		case errors.Is(err, auth.ErrUsernameExists):
			util.RespondConflict(c, "username")
		default:
			util.RespondInternalError(c, "Failed to register user")
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates email/password credentials
// POST /api/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Login(req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) || errors.Is(err, auth.ErrUserNotFound) {
			util.RespondUnauthorized(c, "invalid email or password")
			return
		}
		util.RespondInternalError(c, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RefreshToken exchanges a refresh token for a new credential pair
// POST /api/auth/refresh
func (h *Handlers) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	pair, err := h.auth.Refresh(req.RefreshToken)
	if err != nil {
		util.RespondUnauthorized(c, "refresh token rejected")
		return
	}

	c.JSON(http.StatusOK, pair)
}

// GetCurrentUser returns the authenticated user's profile
// GET /api/users/me
func (h *Handlers) GetCurrentUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		util.HandleDBError(c, err, "user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateCurrentUser updates the authenticated user's profile fields
// PATCH /api/users/me
func (h *Handlers) UpdateCurrentUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		DisplayName    *string `json:"display_name"`
		Bio            *string `json:"bio" binding:"omitempty,max=500"`
		ProfilePicture *string `json:"profile_picture"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	updates := map[string]any{}
	if req.DisplayName != nil {
		updates["display_name"] = *req.DisplayName
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.ProfilePicture != nil {
		updates["profile_picture"] = *req.ProfilePicture
	}
	if len(updates) == 0 {
		util.RespondBadRequest(c, "no fields to update")
		return
	}

	if err := database.DB.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		util.RespondInternalError(c, "Failed to update profile")
		return
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		util.HandleDBError(c, err, "user")
		return
	}
	c.JSON(http.StatusOK, user)
}
