// Package memory keeps users, conversations and messages in process memory.
// It backs the server when DB_DRIVER=memory and stands in for Postgres in
// tests. Data is lost on restart.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository"
)

// Store holds every table behind one mutex, so a send and its preview
// update are atomic like the Postgres transaction.
type Store struct {
	mu            sync.Mutex
	users         map[uuid.UUID]domain.User
	conversations map[uuid.UUID]domain.Conversation
	messages      map[uuid.UUID]domain.Message
}

func NewStore() *Store {
	return &Store{
		users:         make(map[uuid.UUID]domain.User),
		conversations: make(map[uuid.UUID]domain.Conversation),
		messages:      make(map[uuid.UUID]domain.Message),
	}
}

func (s *Store) Users() *UserRepo                 { return &UserRepo{s} }
func (s *Store) Conversations() *ConversationRepo { return &ConversationRepo{s} }
func (s *Store) Messages() *MessageRepo           { return &MessageRepo{s} }

// ConversationCount reports how many conversations exist.
func (s *Store) ConversationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return repository.ErrConflict
		}
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *UserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *UserRepo) Update(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.users[u.ID]
	if !ok {
		return nil
	}
	stored.Username = u.Username
	stored.AvatarURL = u.AvatarURL
	stored.UpdatedAt = u.UpdatedAt
	r.s.users[u.ID] = stored
	return nil
}

type ConversationRepo struct{ s *Store }

func (r *ConversationRepo) Create(_ context.Context, c *domain.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.conversations {
		if existing.Participants == c.Participants {
			return repository.ErrConflict
		}
	}
	r.s.conversations[c.ID] = *c
	return nil
}

func (r *ConversationRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *ConversationRepo) GetByParticipants(_ context.Context, pair [2]uuid.UUID) (*domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.conversations {
		if c.Participants == pair {
			return &c, nil
		}
	}
	return nil, nil
}

func (r *ConversationRepo) ListByParticipant(_ context.Context, userID uuid.UUID) ([]domain.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Conversation
	for _, c := range r.s.conversations {
		if c.HasParticipant(userID) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *ConversationRepo) SetPinned(_ context.Context, id uuid.UUID, messageID *uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil
	}
	c.PinnedMessageID = messageID
	r.s.conversations[id] = c
	return nil
}

type MessageRepo struct{ s *Store }

func (r *MessageRepo) Create(_ context.Context, m *domain.Message, preview string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.messages[m.ID] = *m
	if c, ok := r.s.conversations[m.ConversationID]; ok {
		c.LastMessage = preview
		c.UpdatedAt = m.CreatedAt
		r.s.conversations[m.ConversationID] = c
	}
	return nil
}

func (r *MessageRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MessageRepo) ListByConversation(_ context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Message
	for _, m := range r.s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *MessageRepo) Update(_ context.Context, m *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.messages[m.ID]; ok {
		r.s.messages[m.ID] = *m
	}
	return nil
}

// Delete removes the message and clears any pin pointing at it.
func (r *MessageRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.messages, id)
	for cid, c := range r.s.conversations {
		if c.PinnedMessageID != nil && *c.PinnedMessageID == id {
			c.PinnedMessageID = nil
			r.s.conversations[cid] = c
		}
	}
	return nil
}

var (
	_ repository.UserRepository         = (*UserRepo)(nil)
	_ repository.ConversationRepository = (*ConversationRepo)(nil)
	_ repository.MessageRepository      = (*MessageRepo)(nil)
)
