package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	SenderID       uuid.UUID  `json:"sender_id"`
	Text           string     `json:"text"`
	AttachmentURL  *string    `json:"attachment_url,omitempty"`
	Edited         bool       `json:"edited"`
	EditedAt       *time.Time `json:"edited_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HasAttachment reports whether the message carries an attachment.
func (m *Message) HasAttachment() bool {
	return m.AttachmentURL != nil && *m.AttachmentURL != ""
}

// Pending reports whether the server has not assigned a timestamp yet.
func (m *Message) Pending() bool {
	return m.CreatedAt.IsZero()
}

type NewMessage struct {
	Text          string  `json:"text"`
	AttachmentURL *string `json:"attachment_url,omitempty"`
}

// Empty reports whether the message would carry neither text nor attachment.
func (n NewMessage) Empty() bool {
	return strings.TrimSpace(n.Text) == "" && (n.AttachmentURL == nil || *n.AttachmentURL == "")
}

// Preview is the conversation preview a message produces once sent.
func (n NewMessage) Preview() string {
	if n.AttachmentURL != nil && *n.AttachmentURL != "" {
		return PhotoPreview
	}
	return strings.TrimSpace(n.Text)
}
