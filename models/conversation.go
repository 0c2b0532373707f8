package models

import (
	"time"

	"github.com/lib/pq"
)

// Conversation is a two-way SMS thread with one phone number
type Conversation struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	PhoneNumber string    `gorm:"size:32;not null;uniqueIndex:uk_conversations_phone_number" json:"phone_number"`
	Name        *string   `gorm:"size:255" json:"name,omitempty"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`

	// Relations
	Messages []Message `gorm:"foreignKey:ConversationID;references:ID" json:"messages,omitempty"`
}

// TableName returns the table name for the model
func (Conversation) TableName() string {
	return "conversations"
}

// Message is one inbound or outbound SMS within a conversation
type Message struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ConversationID uint           `gorm:"not null;index:idx_messages_conversation_id" json:"conversation_id"`
	Content        string         `gorm:"type:text;not null;default:''" json:"content"`
	MediaURLs      pq.StringArray `gorm:"type:text[]" json:"media_urls"`
	MediaTypes     pq.StringArray `gorm:"type:text[]" json:"media_types"`
	IsOutgoing     bool           `gorm:"not null" json:"is_outgoing"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

// TableName returns the table name for the model
func (Message) TableName() string {
	return "messages"
}

// MediaFile describes one stored attachment
type MediaFile struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Files pairs stored media URLs with their content types
func (m *Message) Files() []MediaFile {
	files := make([]MediaFile, 0, len(m.MediaURLs))
	for i, u := range m.MediaURLs {
		f := MediaFile{URL: u}
		if i < len(m.MediaTypes) {
			f.Type = m.MediaTypes[i]
		}
		files = append(files, f)
	}
	return files
}

// ConversationFilter represents filter criteria for conversations
type ConversationFilter struct {
	PhoneNumber *string `json:"phone_number,omitempty"`
}

// MessageFilter represents filter criteria for messages
type MessageFilter struct {
	ConversationID *uint `json:"conversation_id,omitempty"`
	IsOutgoing     *bool `json:"is_outgoing,omitempty"`
}
