package dto

import "time"

// CreateConversationRequest opens a conversation with a phone number
type CreateConversationRequest struct {
	PhoneNumber string  `json:"phone_number" validate:"required"`
	Name        *string `json:"name,omitempty" validate:"omitempty,max=255"`
}

// ConversationResponse is the public representation of a conversation
type ConversationResponse struct {
	ID          uint              `json:"id"`
	PhoneNumber string            `json:"phone_number"`
	Name        *string           `json:"name,omitempty"`
	Messages    []MessageResponse `json:"messages,omitempty"`
}

// MediaFileResponse is one stored attachment
type MediaFileResponse struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// MessageResponse is the public representation of a message
type MessageResponse struct {
	ID             uint                `json:"id"`
	ConversationID uint                `json:"conversation_id"`
	Content        string              `json:"content"`
	IsOutgoing     bool                `json:"is_outgoing"`
	Files          []MediaFileResponse `json:"files"`
	CreatedAt      time.Time           `json:"created_at"`
}

// Attachment is an uploaded file to send with a message
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// SendMessageRequest sends an outbound message in a conversation
type SendMessageRequest struct {
	Content    string      `json:"content"`
	Attachment *Attachment `json:"-"`
}

// InboundMedia references one media item of an inbound message
type InboundMedia struct {
	URL         string
	ContentType string
}

// InboundMessageRequest is an inbound SMS delivered by the carrier webhook
type InboundMessageRequest struct {
	From  string         `validate:"required"`
	Body  string         `validate:"omitempty"`
	Media []InboundMedia `validate:"omitempty"`
}
