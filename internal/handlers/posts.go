package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/openforum/backend/internal/database"
	apierrors "github.com/openforum/backend/internal/errors"
	"github.com/openforum/backend/internal/logger"
	"github.com/openforum/backend/internal/models"
	"github.com/openforum/backend/internal/util"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	maxUploadBytes  = 10 << 20 // 10MB
)

// CreatePost creates a new post
// POST /api/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	var req struct {
		Topic   string   `json:"topic" binding:"omitempty,max=255"`
		Content string   `json:"content" binding:"required,min=1,max=500"`
		Tags    []string `json:"tags" binding:"omitempty,max=10"`
		Files   []string `json:"files" binding:"omitempty,max=10"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	post := models.Post{
		UserID:  userID,
		Topic:   req.Topic,
		Content: req.Content,
	}
	post.SetTags(req.Tags)
	for _, link := range req.Files {
		post.Files = append(post.Files, models.PostFile{Link: link})
	}

	if err := database.DB.Create(&post).Error; err != nil {
		util.RespondInternalError(c, "Failed to create post")
		return
	}

	if err := database.DB.Preload("User").Preload("Files").First(&post, "id = ?", post.ID).Error; err != nil {
		logger.WarnWithFields("Failed to reload post after create", err)
	}

	c.JSON(http.StatusCreated, post)
}

// UploadPostFile stores one uploaded file and returns its public locator.
// Clients attach the locator to a subsequent CreatePost call.
// POST /api/posts/upload
func (h *Handlers) UploadPostFile(c *gin.Context) {
	if _, ok := util.GetUserIDFromContext(c); !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		util.RespondBadRequest(c, "file field is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		util.RespondValidationError(c, "file", "file exceeds the 10MB upload limit")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		util.RespondBadRequest(c, "failed to read uploaded file")
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil || int64(len(data)) > maxUploadBytes {
		util.RespondBadRequest(c, "failed to read uploaded file")
		return
	}

	locator, err := h.blobs.Write(c.Request.Context(), data, fileHeader.Filename)
	if err != nil {
		logger.ErrorWithFields("Failed to store uploaded file", err)
		util.RespondWithAPIError(c, apierrors.StorageError("failed to store file"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{"link": locator})
}

// ListPosts returns posts newest first with like and comment counts
// GET /api/posts?limit=20&offset=0
func (h *Handlers) ListPosts(c *gin.Context) {
	limit, offset := parsePage(c)

	var posts []models.Post
	err := database.DB.
		Preload("User").
		Preload("Files").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		util.RespondInternalError(c, "Failed to fetch posts")
		return
	}

	for i := range posts {
		attachCounts(&posts[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":  posts,
		"limit":  limit,
		"offset": offset,
	})
}

// GetPost returns one post with its files and counts
// GET /api/posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	var post models.Post
	err := database.DB.
		Preload("User").
		Preload("Files").
		First(&post, "id = ?", c.Param("id")).Error
	if util.HandleDBError(c, err, "post") {
		return
	}

	attachCounts(&post)
	c.JSON(http.StatusOK, post)
}

// DeletePost soft-deletes a post; only the author or an admin may delete
// DELETE /api/posts/:id
func (h *Handlers) DeletePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	var post models.Post
	if err := database.DB.Preload("Files").First(&post, "id = ?", postID).Error; util.HandleDBError(c, err, "post") {
		return
	}

	if post.UserID != userID {
		var user models.User
		if err := database.DB.First(&user, "id = ?", userID).Error; err != nil || !user.IsAdmin() {
			util.RespondForbidden(c, "only the author may delete this post")
			return
		}
	}

	if err := database.DB.Delete(&post).Error; err != nil {
		util.RespondInternalError(c, "Failed to delete post")
		return
	}

	// Best effort; an orphaned blob is not worth failing the delete
	for _, file := range post.Files {
		if err := h.blobs.Delete(c.Request.Context(), file.Link); err != nil {
			logger.WarnWithFields("Failed to delete stored file", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// LikePost records the caller's like; liking twice is a no-op
// POST /api/posts/:id/like
func (h *Handlers) LikePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	postID := c.Param("id")

	exists, err := h.repo.PostExists(c.Request.Context(), postID)
	if err != nil {
		util.RespondInternalError(c, "Failed to fetch post")
		return
	}
	if !exists {
		util.RespondNotFound(c, "post")
		return
	}

	like := models.PostLike{UserID: userID, PostID: postID}
	err = database.DB.Create(&like).Error
	if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
		// The unique index makes a second like a conflict, which we
		// treat as success
		var count int64
		database.DB.Model(&models.PostLike{}).
			Where("user_id = ? AND post_id = ?", userID, postID).
			Count(&count)
		if count == 0 {
			util.RespondInternalError(c, "Failed to like post")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"liked": true})
}

// UnlikePost removes the caller's like; unliking an unliked post is a no-op
// DELETE /api/posts/:id/like
func (h *Handlers) UnlikePost(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	err := database.DB.
		Where("user_id = ? AND post_id = ?", userID, c.Param("id")).
		Delete(&models.PostLike{}).Error
	if err != nil {
		util.RespondInternalError(c, "Failed to unlike post")
		return
	}

	c.JSON(http.StatusOK, gin.H{"liked": false})
}

// attachCounts fills the computed like and comment counts on a post
func attachCounts(post *models.Post) {
	var likes, comments int64
	database.DB.Model(&models.PostLike{}).Where("post_id = ?", post.ID).Count(&likes)
	database.DB.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments)
	post.LikeCount = int(likes)
	post.CommentCount = int(comments)
}

// parsePage reads limit/offset query params with sane bounds
func parsePage(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "")); err == nil && v > 0 {
		limit = v
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if v, err := strconv.Atoi(c.DefaultQuery("offset", "")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
