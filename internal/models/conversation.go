package models

import (
	"time"
)

// Conversation is a direct-message thread between two or more users
type Conversation struct {
	ID      string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Members []User `gorm:"many2many:conversation_members" json:"members,omitempty"`

	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Message is one durable chat message inside a conversation
type Message struct {
	ID             string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ConversationID string `gorm:"not null;index:idx_messages_conversation_created" json:"conversation_id"`
	SenderID       string `gorm:"not null;index" json:"sender_id"`
	Sender         User   `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content        string `gorm:"size:500" json:"content"`

	Attachments []MessageAttachment `gorm:"constraint:OnDelete:CASCADE" json:"attachments,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_messages_conversation_created" json:"created_at"`
}

// MessageAttachment is a stored blob locator hanging off a message
type MessageAttachment struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MessageID string `gorm:"not null;index" json:"message_id"`
	Locator   string `gorm:"not null" json:"locator"`
}
