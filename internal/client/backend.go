// Package client keeps a chat UI consistent with a server-push backend.
//
// The backend is reached only through the Backend capability set: live
// queries that yield sequence-numbered snapshots, point reads and
// mutations. Components render through small view interfaces so any UI
// (terminal, browser bridge, tests) can drive them.
package client

import (
	"context"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

// Session is an authenticated identity.
type Session struct {
	User  domain.User `json:"user"`
	Token string      `json:"access_token"`
}

// AuthState is one observation of the identity provider. User is nil when
// signed out; Err is set when the provider could not be reached.
type AuthState struct {
	User *domain.User
	Err  error
}

func (s AuthState) Authenticated() bool {
	return s.User != nil
}

// AuthBackend covers account creation and the session lifecycle.
type AuthBackend interface {
	CreateAccount(ctx context.Context, input domain.RegisterInput) (*Session, error)
	Authenticate(ctx context.Context, email, password string) (*Session, error)
	// WatchAuthState delivers the current state first and then every
	// change until ctx is done, when the channel is closed.
	WatchAuthState(ctx context.Context) <-chan AuthState
	SignOut(ctx context.Context) error
}

// Subscription is a live query. Snapshots carry a Seq that grows with
// every delivery. The channel is closed after Cancel or when the stream
// fails, in which case Err reports why.
type Subscription interface {
	Snapshots() <-chan domain.Snapshot
	Err() error
	Cancel()
}

// Backend is everything the chat components need from a data source.
// Reads that find nothing return an error wrapping ErrNotFound, except
// FindConversation which returns nil for a pair without a conversation.
type Backend interface {
	AuthBackend

	// Subscribe starts a live query; ctx bounds only the setup.
	Subscribe(ctx context.Context, q domain.Query) (Subscription, error)

	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error)
	FindUsersByEmail(ctx context.Context, email string) ([]domain.User, error)
	FindConversation(ctx context.Context, otherUserID uuid.UUID) (*domain.Conversation, error)

	CreateConversation(ctx context.Context, otherUserID uuid.UUID) (*domain.Conversation, error)
	SendMessage(ctx context.Context, conversationID uuid.UUID, msg domain.NewMessage) (*domain.Message, error)
	EditMessage(ctx context.Context, messageID uuid.UUID, text string) (*domain.Message, error)
	DeleteMessage(ctx context.Context, messageID uuid.UUID) error
	SetPinned(ctx context.Context, conversationID uuid.UUID, messageID *uuid.UUID) error
	UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error)
	UploadBlob(ctx context.Context, path string, data []byte) (string, error)
}
