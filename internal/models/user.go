package models

import (
	"time"

	"gorm.io/gorm"
)

// Role controls access to moderation endpoints
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User represents a forum account
type User struct {
	ID       string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `gorm:"uniqueIndex;size:30;not null" json:"username"`

	PasswordHash string `gorm:"type:text;not null" json:"-"`

	// Profile data
	DisplayName    string `json:"display_name"`
	Bio            string `gorm:"size:500" json:"bio"`
	ProfilePicture string `json:"profile_picture"`

	Role Role `gorm:"type:text;default:'user'" json:"role"`

	// Activity tracking
	LastActiveAt *time.Time `json:"last_active_at"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
