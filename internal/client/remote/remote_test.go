package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/relay/internal/client"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/repository/memory"
	"github.com/vedran77/relay/internal/service"
	"github.com/vedran77/relay/internal/storage"
	"github.com/vedran77/relay/internal/transport/http/handlers"
	"github.com/vedran77/relay/internal/transport/ws"
)

const testSecret = "remote-secret"

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := memory.NewStore()
	users, convs, msgs := store.Users(), store.Conversations(), store.Messages()

	blobs, err := storage.NewDiskStore(t.TempDir(), "http://files.test/uploads")
	require.NoError(t, err)

	userService := service.NewUserService(users)
	convService := service.NewConversationService(convs, msgs, users)
	msgService := service.NewMessageService(msgs, convs)

	hub := ws.NewHub(service.NewSnapshotService(convService, msgService), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	notifier := ws.NewHubNotifier(hub)
	convService.SetNotifier(notifier)
	msgService.SetNotifier(notifier)

	api := &handlers.API{
		Auth:          handlers.NewAuthHandler(service.NewAuthService(users, testSecret, time.Hour), userService),
		Users:         handlers.NewUserHandler(userService),
		Conversations: handlers.NewConversationHandler(convService),
		Messages:      handlers.NewMessageHandler(msgService),
		Uploads:       handlers.NewUploadHandler(service.NewUploadService(blobs, convs, 1<<20)),
	}

	mux := http.NewServeMux()
	api.Register(mux, testSecret)
	mux.Handle("/ws", ws.ServeWS(hub, testSecret))

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func signUp(t *testing.T, srv *httptest.Server, email, username string) *Backend {
	t.Helper()
	b := New(srv.URL, WithTimeout(5*time.Second))
	_, err := b.CreateAccount(context.Background(), domain.RegisterInput{Email: email, Username: username, Password: "secret1"})
	require.NoError(t, err)
	t.Cleanup(func() { b.SignOut(context.Background()) })
	return b
}

func waitFor(t *testing.T, sub client.Subscription, ok func(domain.Snapshot) bool) domain.Snapshot {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, open := <-sub.Snapshots():
			require.True(t, open, "subscription ended: %v", sub.Err())
			if ok(snap) {
				return snap
			}
		case <-timeout:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

func TestAuthErrorKinds(t *testing.T) {
	srv := newServer(t)
	signUp(t, srv, "anna@x.io", "Anna")
	ctx := context.Background()

	b := New(srv.URL)
	_, err := b.CreateAccount(ctx, domain.RegisterInput{Email: "ANNA@x.io", Username: "Other", Password: "secret1"})
	var authErr *client.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, client.AuthEmailInUse, authErr.Kind)

	_, err = b.Authenticate(ctx, "anna@x.io", "wrong-password")
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, client.AuthInvalidCredentials, authErr.Kind)

	session, err := b.Authenticate(ctx, "anna@x.io", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "Anna", session.User.Username)
	assert.NotEmpty(t, session.Token)
}

func TestWatchAuthStateFollowsSession(t *testing.T) {
	srv := newServer(t)
	signUp(t, srv, "anna@x.io", "Anna")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := New(srv.URL)
	states := b.WatchAuthState(ctx)
	assert.False(t, (<-states).Authenticated())

	_, err := b.Authenticate(ctx, "anna@x.io", "secret1")
	require.NoError(t, err)
	state := <-states
	require.True(t, state.Authenticated())
	assert.Equal(t, "Anna", state.User.Username)

	require.NoError(t, b.SignOut(ctx))
	assert.False(t, (<-states).Authenticated())

	cancel()
	require.Eventually(t, func() bool {
		_, open := <-states
		return !open
	}, time.Second, 10*time.Millisecond)
}

func TestResume(t *testing.T) {
	srv := newServer(t)
	anna := signUp(t, srv, "anna@x.io", "Anna")
	token, err := anna.token()
	require.NoError(t, err)
	ctx := context.Background()

	b := New(srv.URL)
	session, err := b.Resume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "anna@x.io", session.User.Email)

	_, err = b.Resume(ctx, "not-a-token")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)

	_, err = b.GetUser(ctx, session.User.ID)
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestConversationRoundTrip(t *testing.T) {
	srv := newServer(t)
	anna := signUp(t, srv, "anna@x.io", "Anna")
	bob := signUp(t, srv, "bob@x.io", "Bob")
	ctx := context.Background()

	found, err := anna.FindUsersByEmail(ctx, "BOB@x.io")
	require.NoError(t, err)
	require.Len(t, found, 1)
	bobID := found[0].ID

	conv, err := anna.FindConversation(ctx, bobID)
	require.NoError(t, err)
	assert.Nil(t, conv)

	conv, err = anna.CreateConversation(ctx, bobID)
	require.NoError(t, err)

	annaID, ok := conv.Counterpart(bobID)
	require.True(t, ok)
	same, err := bob.FindConversation(ctx, annaID)
	require.NoError(t, err)
	require.NotNil(t, same)
	assert.Equal(t, conv.ID, same.ID)

	msgs, err := bob.Subscribe(ctx, domain.MessagesQuery(conv.ID))
	require.NoError(t, err)
	defer msgs.Cancel()
	list, err := bob.Subscribe(ctx, domain.ConversationsQuery(bobID))
	require.NoError(t, err)
	defer list.Cancel()

	sent, err := anna.SendMessage(ctx, conv.ID, domain.NewMessage{Text: "hello"})
	require.NoError(t, err)

	snap := waitFor(t, msgs, func(s domain.Snapshot) bool { return len(s.Messages) == 1 })
	assert.Equal(t, "hello", snap.Messages[0].Text)
	snap = waitFor(t, list, func(s domain.Snapshot) bool {
		return len(s.Conversations) == 1 && s.Conversations[0].LastMessage == "hello"
	})
	assert.Equal(t, conv.ID, snap.Conversations[0].ID)

	_, err = bob.EditMessage(ctx, sent.ID, "hijack")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "NOT_OWNER", apiErr.Code)

	edited, err := anna.EditMessage(ctx, sent.ID, "hello there")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	waitFor(t, msgs, func(s domain.Snapshot) bool {
		return len(s.Messages) == 1 && s.Messages[0].Edited
	})

	require.NoError(t, bob.SetPinned(ctx, conv.ID, &sent.ID))
	got, err := bob.GetMessage(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello there", got.Text)

	require.NoError(t, anna.DeleteMessage(ctx, sent.ID))
	waitFor(t, msgs, func(s domain.Snapshot) bool { return len(s.Messages) == 0 })

	_, err = bob.GetMessage(ctx, sent.ID)
	assert.ErrorIs(t, err, client.ErrNotFound)
}

func TestUploadAndProfile(t *testing.T) {
	srv := newServer(t)
	anna := signUp(t, srv, "anna@x.io", "Anna")
	ctx := context.Background()

	session, err := anna.Resume(ctx, mustToken(t, anna))
	require.NoError(t, err)
	me := session.User.ID

	url, err := anna.UploadBlob(ctx, "avatars/"+me.String(), []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "http://files.test/uploads/avatars/"+me.String(), url)

	_, err = anna.UploadBlob(ctx, "avatars/"+uuid.NewString(), []byte("png"))
	assert.ErrorIs(t, err, client.ErrForbidden)

	name := "Annie"
	user, err := anna.UpdateProfile(ctx, domain.ProfileUpdate{Username: &name, AvatarURL: &url})
	require.NoError(t, err)
	assert.Equal(t, "Annie", user.Username)
	require.NotNil(t, user.AvatarURL)
	assert.Equal(t, url, *user.AvatarURL)
}

func TestSubscribeOutsiderEndsWithForbidden(t *testing.T) {
	srv := newServer(t)
	anna := signUp(t, srv, "anna@x.io", "Anna")
	bob := signUp(t, srv, "bob@x.io", "Bob")
	eve := signUp(t, srv, "eve@x.io", "Eve")
	ctx := context.Background()

	found, err := anna.FindUsersByEmail(ctx, "bob@x.io")
	require.NoError(t, err)
	conv, err := anna.CreateConversation(ctx, found[0].ID)
	require.NoError(t, err)
	_ = bob

	sub, err := eve.Subscribe(ctx, domain.MessagesQuery(conv.ID))
	require.NoError(t, err)

	select {
	case _, open := <-sub.Snapshots():
		require.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription was not rejected")
	}
	assert.ErrorIs(t, sub.Err(), client.ErrForbidden)
}

func TestSignOutEndsSubscriptions(t *testing.T) {
	srv := newServer(t)
	anna := signUp(t, srv, "anna@x.io", "Anna")
	ctx := context.Background()

	session, err := anna.Resume(ctx, mustToken(t, anna))
	require.NoError(t, err)

	sub, err := anna.Subscribe(ctx, domain.ConversationsQuery(session.User.ID))
	require.NoError(t, err)
	waitFor(t, sub, func(domain.Snapshot) bool { return true })

	require.NoError(t, anna.SignOut(ctx))
	select {
	case _, open := <-sub.Snapshots():
		require.False(t, open)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription outlived the session")
	}
	assert.True(t, errors.Is(sub.Err(), ErrNotSignedIn))
}

func mustToken(t *testing.T, b *Backend) string {
	t.Helper()
	token, err := b.token()
	require.NoError(t, err)
	return token
}
