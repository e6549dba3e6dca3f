// Package remote implements client.Backend against a relay server: REST
// calls for reads and writes, one WebSocket for every live query.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/client"
	"github.com/vedran77/relay/internal/domain"
)

var ErrNotSignedIn = errors.New("not signed in")

// Backend talks to a relay server. It holds at most one session.
type Backend struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     zerolog.Logger

	mu       sync.Mutex
	session  *client.Session
	stream   *stream
	watchers map[chan client.AuthState]struct{}
}

type Option func(*Backend)

func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.http = c }
}

// WithTimeout bounds every REST call.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) { b.timeout = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(b *Backend) { b.log = log }
}

func New(baseURL string, opts ...Option) *Backend {
	b := &Backend{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     http.DefaultClient,
		timeout:  15 * time.Second,
		log:      zerolog.Nop(),
		watchers: make(map[chan client.AuthState]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.log = b.log.With().Str("component", "remote").Logger()
	return b
}

// --- Auth ---

func (b *Backend) CreateAccount(ctx context.Context, input domain.RegisterInput) (*client.Session, error) {
	var session client.Session
	if err := b.do(ctx, http.MethodPost, "/api/v1/auth/register", "", input, &session); err != nil {
		return nil, authError(err)
	}
	b.setSession(&session)
	return &session, nil
}

func (b *Backend) Authenticate(ctx context.Context, email, password string) (*client.Session, error) {
	body := map[string]string{"email": email, "password": password}
	var session client.Session
	if err := b.do(ctx, http.MethodPost, "/api/v1/auth/login", "", body, &session); err != nil {
		return nil, authError(err)
	}
	b.setSession(&session)
	return &session, nil
}

// Resume restores a session from a stored token. A rejected token signs
// out.
func (b *Backend) Resume(ctx context.Context, token string) (*client.Session, error) {
	var user domain.User
	if err := b.do(ctx, http.MethodGet, "/api/v1/auth/me", token, nil, &user); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			b.setSession(nil)
		}
		return nil, err
	}
	session := &client.Session{User: user, Token: token}
	b.setSession(session)
	return session, nil
}

func (b *Backend) WatchAuthState(ctx context.Context) <-chan client.AuthState {
	ch := make(chan client.AuthState, 1)

	b.mu.Lock()
	b.watchers[ch] = struct{}{}
	ch <- b.stateLocked()
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.watchers, ch)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

func (b *Backend) SignOut(context.Context) error {
	b.setSession(nil)
	return nil
}

func (b *Backend) setSession(session *client.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old := b.stream; old != nil {
		b.stream = nil
		go old.close(ErrNotSignedIn)
	}
	b.session = session

	state := b.stateLocked()
	for ch := range b.watchers {
		// Watchers only need the latest state.
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
}

func (b *Backend) stateLocked() client.AuthState {
	if b.session == nil {
		return client.AuthState{}
	}
	user := b.session.User
	return client.AuthState{User: &user}
}

func (b *Backend) token() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil {
		return "", ErrNotSignedIn
	}
	return b.session.Token, nil
}

// --- Live queries ---

func (b *Backend) Subscribe(ctx context.Context, q domain.Query) (client.Subscription, error) {
	s, err := b.currentStream(ctx)
	if err != nil {
		return nil, err
	}
	return s.subscribe(ctx, q)
}

func (b *Backend) currentStream(ctx context.Context) (*stream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil, ErrNotSignedIn
	}
	if b.stream != nil && !b.stream.closed() {
		return b.stream, nil
	}

	s, err := dialStream(ctx, b.wsURL(b.session.Token), b.log)
	if err != nil {
		return nil, err
	}
	b.stream = s
	return s, nil
}

func (b *Backend) wsURL(token string) string {
	u := b.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws?token=" + url.QueryEscape(token)
}

// --- Reads ---

func (b *Backend) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var user domain.User
	if err := b.authed(ctx, http.MethodGet, "/api/v1/users/"+id.String(), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (b *Backend) GetMessage(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	var msg domain.Message
	if err := b.authed(ctx, http.MethodGet, "/api/v1/messages/"+id.String(), nil, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (b *Backend) FindUsersByEmail(ctx context.Context, email string) ([]domain.User, error) {
	var resp struct {
		Users []domain.User `json:"users"`
	}
	path := "/api/v1/users?email=" + url.QueryEscape(email)
	if err := b.authed(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (b *Backend) FindConversation(ctx context.Context, otherUserID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := b.authed(ctx, http.MethodGet, "/api/v1/conversations/lookup?user_id="+otherUserID.String(), nil, &conv)
	if errors.Is(err, client.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// --- Writes ---

func (b *Backend) CreateConversation(ctx context.Context, otherUserID uuid.UUID) (*domain.Conversation, error) {
	var conv domain.Conversation
	body := map[string]uuid.UUID{"user_id": otherUserID}
	if err := b.authed(ctx, http.MethodPost, "/api/v1/conversations", body, &conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

func (b *Backend) SendMessage(ctx context.Context, conversationID uuid.UUID, msg domain.NewMessage) (*domain.Message, error) {
	var out domain.Message
	path := "/api/v1/conversations/" + conversationID.String() + "/messages"
	if err := b.authed(ctx, http.MethodPost, path, msg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Backend) EditMessage(ctx context.Context, messageID uuid.UUID, text string) (*domain.Message, error) {
	var out domain.Message
	body := map[string]string{"text": text}
	if err := b.authed(ctx, http.MethodPatch, "/api/v1/messages/"+messageID.String(), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (b *Backend) DeleteMessage(ctx context.Context, messageID uuid.UUID) error {
	return b.authed(ctx, http.MethodDelete, "/api/v1/messages/"+messageID.String(), nil, nil)
}

func (b *Backend) SetPinned(ctx context.Context, conversationID uuid.UUID, messageID *uuid.UUID) error {
	body := map[string]*uuid.UUID{"message_id": messageID}
	return b.authed(ctx, http.MethodPut, "/api/v1/conversations/"+conversationID.String()+"/pin", body, nil)
}

func (b *Backend) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	var user domain.User
	if err := b.authed(ctx, http.MethodPatch, "/api/v1/users/me", update, &user); err != nil {
		return nil, err
	}

	b.mu.Lock()
	if b.session != nil && b.session.User.ID == user.ID {
		b.session.User = user
	}
	b.mu.Unlock()
	return &user, nil
}

func (b *Backend) UploadBlob(ctx context.Context, path string, data []byte) (string, error) {
	token, err := b.token()
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("path", path); err != nil {
		return "", err
	}
	part, err := form.CreateFormFile("file", path[strings.LastIndex(path, "/")+1:])
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	var resp struct {
		URL string `json:"url"`
	}
	err = b.send(ctx, http.MethodPost, "/api/v1/uploads", token, form.FormDataContentType(), &body, &resp)
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

// --- Transport ---

func (b *Backend) authed(ctx context.Context, method, path string, in, out any) error {
	token, err := b.token()
	if err != nil {
		return err
	}
	return b.do(ctx, method, path, token, in, out)
}

func (b *Backend) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return b.send(ctx, method, path, token, contentType, body, out)
}

func (b *Backend) send(ctx context.Context, method, path, token, contentType string, body io.Reader, out any) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := decodeError(resp)
		b.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Str("code", apiErr.Code).Msg("request failed")
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

var _ client.Backend = (*Backend)(nil)
