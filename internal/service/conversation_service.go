package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type ConversationService struct {
	convRepo    repository.ConversationRepository
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	notifier    Notifier
}

func NewConversationService(
	convRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
) *ConversationService {
	return &ConversationService{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		notifier:    nopNotifier{},
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *ConversationService) SetNotifier(n Notifier) {
	s.notifier = n
}

// GetOrCreate returns the conversation between the two users, creating it
// when none exists. created reports whether a new record was written.
func (s *ConversationService) GetOrCreate(ctx context.Context, userID, otherUserID uuid.UUID) (conv *domain.Conversation, created bool, err error) {
	if userID == otherUserID {
		return nil, false, ErrCannotChatSelf
	}

	other, err := s.userRepo.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, false, err
	}
	if other == nil {
		return nil, false, ErrUserNotFound
	}

	pair := domain.CanonicalPair(userID, otherUserID)

	conv, err = s.convRepo.GetByParticipants(ctx, pair)
	if err != nil {
		return nil, false, err
	}
	if conv != nil {
		return conv, false, nil
	}

	ts := now()
	conv = &domain.Conversation{
		ID:           uuid.New(),
		Participants: pair,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}

	if err := s.convRepo.Create(ctx, conv); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, false, fmt.Errorf("creating conversation: %w", err)
		}
		// Lost a race with the other participant; theirs wins.
		conv, err = s.convRepo.GetByParticipants(ctx, pair)
		if err != nil {
			return nil, false, err
		}
		if conv == nil {
			return nil, false, ErrConversationNotFound
		}
		return conv, false, nil
	}

	s.notifier.NotifyConversationChanged(conv)
	return conv, true, nil
}

// Find looks up the conversation between the two users without creating it.
func (s *ConversationService) Find(ctx context.Context, userID, otherUserID uuid.UUID) (*domain.Conversation, error) {
	if userID == otherUserID {
		return nil, ErrCannotChatSelf
	}
	conv, err := s.convRepo.GetByParticipants(ctx, domain.CanonicalPair(userID, otherUserID))
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	return conv, nil
}

// List returns the user's conversations, most recently updated first.
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	convs, err := s.convRepo.ListByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	if convs == nil {
		convs = []domain.Conversation{}
	}
	return convs, nil
}

func (s *ConversationService) Get(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// SetPinned pins messageID in the conversation, or clears the pin when
// messageID is nil. Any participant may pin any message of the conversation.
func (s *ConversationService) SetPinned(ctx context.Context, userID, conversationID uuid.UUID, messageID *uuid.UUID) (*domain.Conversation, error) {
	conv, err := s.Get(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	if messageID != nil {
		msg, err := s.messageRepo.GetByID(ctx, *messageID)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			return nil, ErrMessageNotFound
		}
		if msg.ConversationID != conv.ID {
			return nil, ErrMessageNotInChat
		}
	}

	if err := s.convRepo.SetPinned(ctx, conv.ID, messageID); err != nil {
		return nil, fmt.Errorf("pinning message: %w", err)
	}
	conv.PinnedMessageID = messageID

	s.notifier.NotifyConversationChanged(conv)
	return conv, nil
}
