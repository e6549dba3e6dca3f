package service

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

var (
	ErrEmailTaken   = errors.New("email already taken")
	ErrInvalidCreds = errors.New("invalid email or password")
	ErrUserNotFound = errors.New("user not found")

	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("you are not a participant of this conversation")
	ErrCannotChatSelf       = errors.New("cannot start a conversation with yourself")

	ErrMessageNotFound  = errors.New("message not found")
	ErrNotMessageOwner  = errors.New("only the message sender can perform this action")
	ErrMessageNotInChat = errors.New("message does not belong to this conversation")

	ErrUnsupportedQuery = errors.New("unsupported query")

	ErrUploadForbidden = errors.New("upload path not allowed")
	ErrUploadTooLarge  = errors.New("upload too large")
	ErrUploadEmpty     = errors.New("upload is empty")
)

// Notifier broadcasts real-time changes to connected clients.
type Notifier interface {
	// NotifyConversationChanged refreshes the conversation's metadata
	// subscribers and both participants' conversation lists.
	NotifyConversationChanged(conv *domain.Conversation)
	// NotifyMessagesChanged refreshes the conversation's message streams.
	NotifyMessagesChanged(conversationID uuid.UUID)
}

type nopNotifier struct{}

func (nopNotifier) NotifyConversationChanged(*domain.Conversation) {}
func (nopNotifier) NotifyMessagesChanged(uuid.UUID)                {}

// now is the server clock, truncated to what Postgres stores.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
