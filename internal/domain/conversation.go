package domain

import (
	"time"

	"github.com/google/uuid"
)

// PhotoPreview is the conversation preview stored for messages that carry an
// attachment.
const PhotoPreview = "📷 Photo"

type Conversation struct {
	ID              uuid.UUID    `json:"id"`
	Participants    [2]uuid.UUID `json:"participants"`
	LastMessage     string       `json:"last_message"`
	PinnedMessageID *uuid.UUID   `json:"pinned_message_id,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Counterpart returns the participant that is not me. ok is false when me
// does not take part in the conversation.
func (c *Conversation) Counterpart(me uuid.UUID) (other uuid.UUID, ok bool) {
	switch me {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	}
	return uuid.Nil, false
}

// CanonicalPair orders two user IDs so that the lower one comes first.
// Every conversation is stored with its participants in this order, which
// makes the unordered pair unique.
func CanonicalPair(a, b uuid.UUID) [2]uuid.UUID {
	if a.String() > b.String() {
		a, b = b, a
	}
	return [2]uuid.UUID{a, b}
}
