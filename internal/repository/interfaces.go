package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

// ErrConflict is returned when a write violates a uniqueness constraint.
var ErrConflict = errors.New("record already exists")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
}

type ConversationRepository interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error)
	GetByParticipants(ctx context.Context, pair [2]uuid.UUID) (*domain.Conversation, error)
	ListByParticipant(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error)
	SetPinned(ctx context.Context, id uuid.UUID, messageID *uuid.UUID) error
}

type MessageRepository interface {
	// Create stores msg and then moves the conversation's preview and
	// updated_at, atomically.
	Create(ctx context.Context, msg *domain.Message, preview string) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error)
	Update(ctx context.Context, msg *domain.Message) error
	Delete(ctx context.Context, id uuid.UUID) error
}
