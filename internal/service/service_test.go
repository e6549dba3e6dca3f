package service

import (
	"context"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/relay/internal/domain"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	resp, err := env.auth.Register(ctx, domain.RegisterInput{Email: " Anna@Example.com ", Username: "Anna", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", resp.User.Email)
	assert.NotEmpty(t, resp.AccessToken)

	token, err := jwt.Parse(resp.AccessToken, func(*jwt.Token) (any, error) { return []byte("test-secret"), nil })
	require.NoError(t, err)
	sub, err := token.Claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID.String(), sub)

	_, err = env.auth.Register(ctx, domain.RegisterInput{Email: "anna@example.com", Username: "Other", Password: "secret"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	login, err := env.auth.Login(ctx, LoginInput{Email: "ANNA@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = env.auth.Login(ctx, LoginInput{Email: "anna@example.com", Password: "wrong!"})
	assert.ErrorIs(t, err, ErrInvalidCreds)

	_, err = env.auth.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret"})
	assert.ErrorIs(t, err, ErrInvalidCreds)
}

func TestGetOrCreateDeduplicatesPair(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a, b := env.addUser("a@x.io"), env.addUser("b@x.io")

	first, created, err := env.conversations.GetOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := env.conversations.GetOrCreate(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, env.store.ConversationCount())

	found, err := env.conversations.Find(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestGetOrCreateRejectsSelfAndUnknown(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a := env.addUser("a@x.io")

	_, _, err := env.conversations.GetOrCreate(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, ErrCannotChatSelf)

	_, _, err = env.conversations.GetOrCreate(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = env.conversations.Find(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestSendUpdatesPreview(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a, b := env.addUser("a@x.io"), env.addUser("b@x.io")
	conv, _, err := env.conversations.GetOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = env.messages.Send(ctx, a.ID, conv.ID, domain.NewMessage{Text: "hello"})
	require.NoError(t, err)
	stored, err := env.conversations.Get(ctx, b.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.LastMessage)

	url := "http://cdn/chat_x/1_a.png"
	_, err = env.messages.Send(ctx, b.ID, conv.ID, domain.NewMessage{AttachmentURL: &url})
	require.NoError(t, err)
	stored, err = env.conversations.Get(ctx, a.ID, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhotoPreview, stored.LastMessage)

	assert.Contains(t, env.notifier.messages, conv.ID)
}

func TestSendRequiresParticipant(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a, b, c := env.addUser("a@x.io"), env.addUser("b@x.io"), env.addUser("c@x.io")
	conv, _, err := env.conversations.GetOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)

	_, err = env.messages.Send(ctx, c.ID, conv.ID, domain.NewMessage{Text: "hi"})
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = env.messages.Send(ctx, a.ID, uuid.New(), domain.NewMessage{Text: "hi"})
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestEditAndDeleteAreSenderOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a, b := env.addUser("a@x.io"), env.addUser("b@x.io")
	conv, _, err := env.conversations.GetOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)
	msg, err := env.messages.Send(ctx, a.ID, conv.ID, domain.NewMessage{Text: "helo"})
	require.NoError(t, err)

	_, err = env.messages.Edit(ctx, b.ID, msg.ID, "hijack")
	assert.ErrorIs(t, err, ErrNotMessageOwner)

	edited, err := env.messages.Edit(ctx, a.ID, msg.ID, "hello")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	assert.Equal(t, "hello", edited.Text)
	assert.NotNil(t, edited.EditedAt)

	assert.ErrorIs(t, env.messages.Delete(ctx, b.ID, msg.ID), ErrNotMessageOwner)
	require.NoError(t, env.messages.Delete(ctx, a.ID, msg.ID))

	_, err = env.messages.Get(ctx, a.ID, msg.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestPinAndDeletePinnedMessage(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a, b := env.addUser("a@x.io"), env.addUser("b@x.io")
	conv, _, err := env.conversations.GetOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)
	msg, err := env.messages.Send(ctx, a.ID, conv.ID, domain.NewMessage{Text: "pin me"})
	require.NoError(t, err)

	// Either participant may pin.
	pinned, err := env.conversations.SetPinned(ctx, b.ID, conv.ID, &msg.ID)
	require.NoError(t, err)
	require.NotNil(t, pinned.PinnedMessageID)
	assert.Equal(t, msg.ID, *pinned.PinnedMessageID)

	require.NoError(t, env.messages.Delete(ctx, a.ID, msg.ID))
	stored, err := env.conversations.Get(ctx, a.ID, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.PinnedMessageID)
}

func TestPinRejectsForeignMessage(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a, b, c := env.addUser("a@x.io"), env.addUser("b@x.io"), env.addUser("c@x.io")
	ab, _, err := env.conversations.GetOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)
	ac, _, err := env.conversations.GetOrCreate(ctx, a.ID, c.ID)
	require.NoError(t, err)
	other, err := env.messages.Send(ctx, a.ID, ac.ID, domain.NewMessage{Text: "elsewhere"})
	require.NoError(t, err)

	_, err = env.conversations.SetPinned(ctx, a.ID, ab.ID, &other.ID)
	assert.ErrorIs(t, err, ErrMessageNotInChat)

	_, err = env.conversations.SetPinned(ctx, c.ID, ab.ID, nil)
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSearchByEmailIsExact(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.addUser("anna@example.com")

	found, err := env.users.SearchByEmail(ctx, "Anna@Example.com")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	found, err = env.users.SearchByEmail(ctx, "anna@")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a := env.addUser("a@x.io")

	name, avatar := "  Anya ", "http://cdn/avatars/a"
	updated, err := env.users.UpdateProfile(ctx, a.ID, domain.ProfileUpdate{Username: &name, AvatarURL: &avatar})
	require.NoError(t, err)
	assert.Equal(t, "Anya", updated.Username)
	require.NotNil(t, updated.AvatarURL)
	assert.Equal(t, avatar, *updated.AvatarURL)

	_, err = env.users.UpdateProfile(ctx, uuid.New(), domain.ProfileUpdate{Username: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSnapshotAuthorization(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	a, b, c := env.addUser("a@x.io"), env.addUser("b@x.io"), env.addUser("c@x.io")
	conv, _, err := env.conversations.GetOrCreate(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = env.messages.Send(ctx, a.ID, conv.ID, domain.NewMessage{Text: "one"})
	require.NoError(t, err)

	require.NoError(t, env.snapshots.Authorize(ctx, a.ID, domain.ConversationsQuery(a.ID)))
	assert.ErrorIs(t, env.snapshots.Authorize(ctx, a.ID, domain.ConversationsQuery(b.ID)), ErrNotParticipant)
	assert.ErrorIs(t, env.snapshots.Authorize(ctx, c.ID, domain.MessagesQuery(conv.ID)), ErrNotParticipant)
	assert.ErrorIs(t, env.snapshots.Authorize(ctx, a.ID, domain.Query{Kind: "rooms"}), ErrUnsupportedQuery)

	snap, err := env.snapshots.Snapshot(ctx, b.ID, domain.MessagesQuery(conv.ID))
	require.NoError(t, err)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "one", snap.Messages[0].Text)

	snap, err = env.snapshots.Snapshot(ctx, b.ID, domain.ConversationsQuery(b.ID))
	require.NoError(t, err)
	assert.Len(t, snap.Conversations, 1)

	snap, err = env.snapshots.Snapshot(ctx, a.ID, domain.ConversationQuery(conv.ID))
	require.NoError(t, err)
	assert.Equal(t, "one", snap.Conversation.LastMessage)
}

func TestPasswordHash(t *testing.T) {
	encoded, err := hashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$"))

	assert.True(t, verifyPassword("secret1", encoded))
	assert.False(t, verifyPassword("secret2", encoded))
	assert.False(t, verifyPassword("secret1", "salt:hash"))
	assert.False(t, verifyPassword("secret1", "$argon2i$v=19$m=1,t=1,p=1$AA$AA"))
}
