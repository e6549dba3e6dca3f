package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/domain"
)

// Client is one signed-in session. It is built after authentication,
// owns every live subscription of that session and is discarded on
// sign-out.
type Client struct {
	backend Backend
	views   Views
	log     zerolog.Logger

	mu sync.Mutex
	me domain.User

	Conversations *ConversationList
	Active        *ActiveConversation
	Composer      *Composer
	Directory     *Directory
}

type Option func(*options)

type options struct {
	log zerolog.Logger
	loc *time.Location
	now func() time.Time
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithLocation sets the zone message times are shown in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.loc = loc }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New(backend Backend, me domain.User, views Views, opts ...Option) *Client {
	o := options{log: zerolog.Nop(), loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	log := o.log.With().Stringer("user_id", me.ID).Logger()

	c := &Client{
		backend: backend,
		views:   views,
		log:     log,
		me:      me,
	}
	c.Conversations = NewConversationList(backend, me.ID, views.List, log)
	c.Active = NewActiveConversation(backend, me.ID, views.Active, o.loc, log)
	c.Composer = NewComposer(backend, me.ID, c.Active, views.Compose, views.Flash, o.now, log)
	c.Directory = NewDirectory(backend, me.ID, views.Search, views.Flash, log)
	return c
}

// Me returns the signed-in user as last updated.
func (c *Client) Me() domain.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.me
}

// Start begins syncing the conversation list.
func (c *Client) Start(ctx context.Context) error {
	if err := c.Conversations.Start(ctx); err != nil {
		report(c.log, c.views.Flash, "start", err)
		return err
	}
	return nil
}

// Open opens a conversation from the list. An edit in progress belongs to
// the previous conversation and is cancelled.
func (c *Client) Open(ctx context.Context, conversationID uuid.UUID) error {
	item, ok := c.Conversations.Item(conversationID)
	if !ok {
		err := &DataError{Op: "open conversation", Err: ErrNotFound}
		report(c.log, c.views.Flash, "open", err)
		return err
	}
	return c.open(ctx, item)
}

func (c *Client) open(ctx context.Context, item ConversationItem) error {
	c.Composer.CancelEdit()
	if err := c.Active.Open(ctx, item); err != nil {
		report(c.log, c.views.Flash, "open", err)
		return err
	}
	c.Conversations.SetActive(item.ID)
	return nil
}

// StartConversation finds or creates the conversation with userID and
// opens it.
func (c *Client) StartConversation(ctx context.Context, userID uuid.UUID) (*domain.Conversation, error) {
	conv, err := c.Directory.StartConversation(ctx, userID)
	if err != nil {
		return nil, err
	}

	item, ok := c.Conversations.Item(conv.ID)
	if !ok {
		// The list snapshot carrying the new conversation may not be here yet.
		item = c.Conversations.item(ctx, conv)
	}
	if err := c.open(ctx, item); err != nil {
		return conv, err
	}
	return conv, nil
}

// UpdateProfile changes the display name and, when avatar is given,
// uploads it to avatars/<my id> first.
func (c *Client) UpdateProfile(ctx context.Context, username string, avatar *Attachment) (*domain.User, error) {
	me := c.Me()
	update := domain.ProfileUpdate{}
	if name := strings.TrimSpace(username); name != "" {
		update.Username = &name
	}

	if avatar != nil {
		path := "avatars/" + me.ID.String()
		url, err := c.backend.UploadBlob(ctx, path, avatar.Data)
		if err != nil {
			err = &UploadError{Path: path, Err: err}
			report(c.log, c.views.Flash, "update profile", err)
			return nil, err
		}
		update.AvatarURL = &url
	}

	if update.Username == nil && update.AvatarURL == nil {
		return &me, nil
	}

	user, err := c.backend.UpdateProfile(ctx, update)
	if err != nil {
		err = &DataError{Op: "update profile", Err: err}
		report(c.log, c.views.Flash, "update profile", err)
		return nil, err
	}

	c.mu.Lock()
	c.me = *user
	c.mu.Unlock()
	return user, nil
}

// Close cancels every subscription the session holds.
func (c *Client) Close() {
	c.Composer.CancelEdit()
	c.Active.Close()
	c.Conversations.Stop()
}

// SignOut closes the session and signs out. The Gate then sends the user
// to the login screen.
func (c *Client) SignOut(ctx context.Context) error {
	c.Close()
	if err := c.backend.SignOut(ctx); err != nil {
		report(c.log, c.views.Flash, "sign out", err)
		return err
	}
	return nil
}
