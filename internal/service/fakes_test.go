package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository/memory"
)

// recordingNotifier remembers which topics were refreshed.
type recordingNotifier struct {
	mu            sync.Mutex
	conversations []uuid.UUID
	messages      []uuid.UUID
}

func (n *recordingNotifier) NotifyConversationChanged(c *domain.Conversation) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.conversations = append(n.conversations, c.ID)
}

func (n *recordingNotifier) NotifyMessagesChanged(id uuid.UUID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, id)
}

type testEnv struct {
	store         *memory.Store
	notifier      *recordingNotifier
	auth          *AuthService
	users         *UserService
	conversations *ConversationService
	messages      *MessageService
	snapshots     *SnapshotService
}

func newTestEnv() *testEnv {
	store := memory.NewStore()
	users, convs, msgs := store.Users(), store.Conversations(), store.Messages()

	env := &testEnv{
		store:         store,
		notifier:      &recordingNotifier{},
		auth:          NewAuthService(users, "test-secret", time.Hour),
		users:         NewUserService(users),
		conversations: NewConversationService(convs, msgs, users),
		messages:      NewMessageService(msgs, convs),
	}
	env.conversations.SetNotifier(env.notifier)
	env.messages.SetNotifier(env.notifier)
	env.snapshots = NewSnapshotService(env.conversations, env.messages)
	return env
}

func (e *testEnv) addUser(email string) domain.User {
	u := domain.User{ID: uuid.New(), Email: email, Username: email[:1]}
	if err := e.store.Users().Create(context.Background(), &u); err != nil {
		panic(err)
	}
	return u
}
