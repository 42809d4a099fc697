package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/openforum/backend/internal/models"
	"gorm.io/gorm"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotAMember           = errors.New("user is not a conversation member")
)

// Repository handles database operations for the messaging domain.
// It is the persistence collaborator consumed by the realtime core and
// the conversation REST handlers.
type Repository struct {
	db *gorm.DB
}

// New creates a repository bound to the given database handle
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreateConversation finds the direct conversation between two users,
// creating it (with both memberships) if it does not exist yet.
func (r *Repository) GetOrCreateConversation(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_members ma ON ma.conversation_id = conversations.id AND ma.user_id = ?", userA).
		Joins("JOIN conversation_members mb ON mb.conversation_id = conversations.id AND mb.user_id = ?", userB).
		First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv = models.Conversation{}
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		members := []map[string]interface{}{
			{"conversation_id": conv.ID, "user_id": userA},
			{"conversation_id": conv.ID, "user_id": userB},
		}
		return tx.Table("conversation_members").Create(members).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &conv, nil
}

// GetConversation loads a conversation with its members
func (r *Repository) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("Members").
		First(&conv, "id = ?", conversationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &conv, nil
}

// RequireMembership returns ErrNotAMember when the user does not belong
// to the conversation
func (r *Repository) RequireMembership(ctx context.Context, conversationID, userID string) error {
	member, err := r.IsConversationMember(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotAMember
	}
	return nil
}

// IsConversationMember reports whether the user belongs to the conversation
func (r *Repository) IsConversationMember(ctx context.Context, conversationID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("conversation_members").
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}

// ListConversations returns every conversation the user is a member of
func (r *Repository) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.db.WithContext(ctx).
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id AND cm.user_id = ?", userID).
		Preload("Members").
		Order("conversations.created_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return convs, nil
}

// SaveChatMessage persists one chat message row
func (r *Repository) SaveChatMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	msg := models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	return &msg, nil
}

// SaveChatAttachment records a stored blob locator as a message child row
func (r *Repository) SaveChatAttachment(ctx context.Context, messageID, locator string) error {
	att := models.MessageAttachment{
		MessageID: messageID,
		Locator:   locator,
	}
	if err := r.db.WithContext(ctx).Create(&att).Error; err != nil {
		return fmt.Errorf("failed to save attachment: %w", err)
	}
	return nil
}

// ListMessages returns a page of conversation history, oldest first
func (r *Repository) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Preload("Attachments").
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return msgs, nil
}

// SaveComment persists one comment row under a post
func (r *Repository) SaveComment(ctx context.Context, postID, userID, content string, parentID *string) (*models.Comment, error) {
	comment := models.Comment{
		PostID:   postID,
		UserID:   userID,
		Content:  content,
		ParentID: parentID,
	}
	if err := r.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return nil, fmt.Errorf("failed to save comment: %w", err)
	}
	return &comment, nil
}

// PostExists reports whether the post id refers to a live post
func (r *Repository) PostExists(ctx context.Context, postID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", postID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return count > 0, nil
}
