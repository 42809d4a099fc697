package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Post represents a forum post with optional topic, tags and attached files
type Post struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID  string `gorm:"not null;index" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Topic   string `gorm:"size:255" json:"topic"`
	Content string `gorm:"size:500;not null" json:"content"`

	// Tags are stored as a comma-separated string; use Tags/SetTags
	RawTags string `gorm:"column:tags;size:500" json:"-"`

	Files    []PostFile `gorm:"constraint:OnDelete:CASCADE" json:"files,omitempty"`
	Likes    []PostLike `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Comments []Comment  `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	LikeCount    int `gorm:"-" json:"like_count"`
	CommentCount int `gorm:"-" json:"comment_count"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Tags returns the post's tags as a slice
func (p *Post) Tags() []string {
	if p.RawTags == "" {
		return nil
	}
	parts := strings.Split(p.RawTags, ",")
	tags := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// SetTags stores the given tags as the post's comma-separated tag string
func (p *Post) SetTags(tags []string) {
	trimmed := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			trimmed = append(trimmed, t)
		}
	}
	p.RawTags = strings.Join(trimmed, ",")
}

// PostFile is a stored attachment locator for a post
type PostFile struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	PostID string `gorm:"not null;index" json:"post_id"`
	Link   string `gorm:"not null" json:"link"`
}

// PostLike records one user's like of one post
type PostLike struct {
	ID     string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID string `gorm:"not null;uniqueIndex:idx_post_likes_user_post" json:"user_id"`
	PostID string `gorm:"not null;uniqueIndex:idx_post_likes_user_post;index" json:"post_id"`

	CreatedAt time.Time `json:"created_at"`
}

// Comment is a reply on a post; ParentID nests reply threads
type Comment struct {
	ID       string  `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID   string  `gorm:"not null;index" json:"user_id"`
	User     User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	PostID   string  `gorm:"not null;index" json:"post_id"`
	Content  string  `gorm:"size:500;not null" json:"content"`
	ParentID *string `gorm:"type:uuid;index" json:"parent_id,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
