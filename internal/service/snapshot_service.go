package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

// SnapshotService evaluates live queries for the WebSocket hub.
type SnapshotService struct {
	conversations *ConversationService
	messages      *MessageService
}

func NewSnapshotService(conversations *ConversationService, messages *MessageService) *SnapshotService {
	return &SnapshotService{conversations: conversations, messages: messages}
}

// Authorize checks that userID may subscribe to q.
func (s *SnapshotService) Authorize(ctx context.Context, userID uuid.UUID, q domain.Query) error {
	if err := q.Validate(); err != nil {
		return ErrUnsupportedQuery
	}
	if q.Kind == domain.QueryConversations {
		if q.ParticipantID != userID {
			return ErrNotParticipant
		}
		return nil
	}
	_, err := s.conversations.Get(ctx, userID, q.ConversationID)
	return err
}

// Snapshot evaluates q for userID. Seq is left for the caller to assign.
func (s *SnapshotService) Snapshot(ctx context.Context, userID uuid.UUID, q domain.Query) (domain.Snapshot, error) {
	switch q.Kind {
	case domain.QueryConversations:
		if q.ParticipantID != userID {
			return domain.Snapshot{}, ErrNotParticipant
		}
		convs, err := s.conversations.List(ctx, userID)
		if err != nil {
			return domain.Snapshot{}, err
		}
		return domain.Snapshot{Conversations: convs}, nil

	case domain.QueryConversation:
		conv, err := s.conversations.Get(ctx, userID, q.ConversationID)
		if err != nil {
			return domain.Snapshot{}, err
		}
		return domain.Snapshot{Conversation: conv}, nil

	case domain.QueryMessages:
		messages, err := s.messages.List(ctx, userID, q.ConversationID)
		if err != nil {
			return domain.Snapshot{}, err
		}
		return domain.Snapshot{Messages: messages}, nil
	}
	return domain.Snapshot{}, ErrUnsupportedQuery
}
