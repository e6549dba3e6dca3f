package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type QueryKind string

const (
	// QueryConversations selects every conversation a participant takes part in.
	QueryConversations QueryKind = "conversations"
	// QueryConversation selects one conversation's metadata.
	QueryConversation QueryKind = "conversation"
	// QueryMessages selects a conversation's messages, oldest first.
	QueryMessages QueryKind = "messages"
)

// Query describes a live subscription.
type Query struct {
	Kind           QueryKind `json:"kind"`
	ParticipantID  uuid.UUID `json:"participant_id,omitempty"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
}

func ConversationsQuery(participantID uuid.UUID) Query {
	return Query{Kind: QueryConversations, ParticipantID: participantID}
}

func ConversationQuery(conversationID uuid.UUID) Query {
	return Query{Kind: QueryConversation, ConversationID: conversationID}
}

func MessagesQuery(conversationID uuid.UUID) Query {
	return Query{Kind: QueryMessages, ConversationID: conversationID}
}

// Topic is the fan-out key a query listens on. Changes are published per
// topic and every subscription on it gets a fresh snapshot.
func (q Query) Topic() string {
	switch q.Kind {
	case QueryConversations:
		return ConversationsTopic(q.ParticipantID)
	case QueryConversation:
		return ConversationTopic(q.ConversationID)
	case QueryMessages:
		return MessagesTopic(q.ConversationID)
	}
	return ""
}

func (q Query) Validate() error {
	switch q.Kind {
	case QueryConversations:
		if q.ParticipantID == uuid.Nil {
			return fmt.Errorf("query %s: participant_id is required", q.Kind)
		}
	case QueryConversation, QueryMessages:
		if q.ConversationID == uuid.Nil {
			return fmt.Errorf("query %s: conversation_id is required", q.Kind)
		}
	default:
		return fmt.Errorf("unknown query kind %q", q.Kind)
	}
	return nil
}

func ConversationsTopic(userID uuid.UUID) string {
	return "user:" + userID.String() + ":conversations"
}

func ConversationTopic(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String()
}

func MessagesTopic(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String() + ":messages"
}

// Snapshot is a point-in-time view of a query's results. Seq grows by one
// with every snapshot delivered on the same subscription.
type Snapshot struct {
	Seq           uint64         `json:"seq"`
	Conversations []Conversation `json:"conversations,omitempty"`
	Conversation  *Conversation  `json:"conversation,omitempty"`
	Messages      []Message      `json:"messages,omitempty"`
}
