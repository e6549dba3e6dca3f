package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

type MessageService struct {
	messageRepo repository.MessageRepository
	convRepo    repository.ConversationRepository
	notifier    Notifier
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		convRepo:    convRepo,
		notifier:    nopNotifier{},
	}
}

// SetNotifier sets the real-time notifier (optional dependency).
func (s *MessageService) SetNotifier(n Notifier) {
	s.notifier = n
}

// Send stores a message and moves the conversation preview to it.
func (s *MessageService) Send(ctx context.Context, userID, conversationID uuid.UUID, input domain.NewMessage) (*domain.Message, error) {
	conv, err := s.conversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       userID,
		Text:           strings.TrimSpace(input.Text),
		AttachmentURL:  input.AttachmentURL,
		CreatedAt:      now(),
	}
	preview := input.Preview()

	if err := s.messageRepo.Create(ctx, msg, preview); err != nil {
		return nil, fmt.Errorf("creating message: %w", err)
	}

	conv.LastMessage = preview
	conv.UpdatedAt = msg.CreatedAt

	s.notifier.NotifyMessagesChanged(conv.ID)
	s.notifier.NotifyConversationChanged(conv)

	return msg, nil
}

// List returns every message of the conversation, oldest first.
func (s *MessageService) List(ctx context.Context, userID, conversationID uuid.UUID) ([]domain.Message, error) {
	if _, err := s.conversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return messages, nil
}

// Get returns a single message to a participant of its conversation.
func (s *MessageService) Get(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if _, err := s.conversation(ctx, userID, msg.ConversationID); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *MessageService) Edit(ctx context.Context, userID, messageID uuid.UUID, text string) (*domain.Message, error) {
	msg, err := s.owned(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	editedAt := now()
	msg.Text = strings.TrimSpace(text)
	msg.Edited = true
	msg.EditedAt = &editedAt

	if err := s.messageRepo.Update(ctx, msg); err != nil {
		return nil, fmt.Errorf("updating message: %w", err)
	}

	s.notifier.NotifyMessagesChanged(msg.ConversationID)
	// The pinned bar shows the message text, so its subscribers refetch.
	if conv, err := s.convRepo.GetByID(ctx, msg.ConversationID); err == nil && conv != nil &&
		conv.PinnedMessageID != nil && *conv.PinnedMessageID == msg.ID {
		s.notifier.NotifyConversationChanged(conv)
	}
	return msg, nil
}

func (s *MessageService) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	msg, err := s.owned(ctx, userID, messageID)
	if err != nil {
		return err
	}

	conv, err := s.convRepo.GetByID(ctx, msg.ConversationID)
	if err != nil {
		return err
	}

	if err := s.messageRepo.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}

	s.notifier.NotifyMessagesChanged(msg.ConversationID)
	if conv != nil && conv.PinnedMessageID != nil && *conv.PinnedMessageID == messageID {
		conv.PinnedMessageID = nil
		s.notifier.NotifyConversationChanged(conv)
	}

	return nil
}

func (s *MessageService) owned(ctx context.Context, userID, messageID uuid.UUID) (*domain.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, ErrNotMessageOwner
	}
	return msg, nil
}

func (s *MessageService) conversation(ctx context.Context, userID, conversationID uuid.UUID) (*domain.Conversation, error) {
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
