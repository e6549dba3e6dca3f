package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/domain"
)

// Attachment is a file picked for upload.
type Attachment struct {
	Name string
	Data []byte
}

// Draft is the compose box content.
type Draft struct {
	Text       string
	Attachment *Attachment
}

// Composer turns the compose box into messages. It is either composing or
// editing exactly one of my messages; submit in edit mode never creates a
// message.
type Composer struct {
	backend Backend
	me      uuid.UUID
	active  *ActiveConversation
	view    ComposeView
	flash   Flasher
	now     func() time.Time
	log     zerolog.Logger

	mu      sync.Mutex
	editing *uuid.UUID
}

func NewComposer(backend Backend, me uuid.UUID, active *ActiveConversation, view ComposeView, flash Flasher, now func() time.Time, log zerolog.Logger) *Composer {
	if now == nil {
		now = time.Now
	}
	return &Composer{
		backend: backend,
		me:      me,
		active:  active,
		view:    view,
		flash:   flash,
		now:     now,
		log:     log.With().Str("component", "composer").Logger(),
	}
}

// AttachmentPath is where an attachment for conversationID is uploaded.
func AttachmentPath(conversationID uuid.UUID, at time.Time, name string) string {
	return fmt.Sprintf("chat_%s/%d_%s", conversationID, at.UnixMilli(), name)
}

// Submit sends the draft, or applies it to the message being edited. The
// input is cleared only on success.
func (c *Composer) Submit(ctx context.Context, draft Draft) (*domain.Message, error) {
	conv, ok := c.active.Current()
	if !ok {
		report(c.log, c.flash, "submit", ErrNoConversation)
		return nil, ErrNoConversation
	}

	text := strings.TrimSpace(draft.Text)

	if target, editing := c.Editing(); editing {
		if text == "" {
			return nil, ErrEmptyMessage
		}
		msg, err := c.backend.EditMessage(ctx, target, text)
		if err != nil {
			err = &DataError{Op: "edit message", Err: err}
			report(c.log, c.flash, "edit", err)
			return nil, err
		}
		c.finishEdit(target)
		return msg, nil
	}

	if text == "" && draft.Attachment == nil {
		return nil, ErrEmptyMessage
	}

	input := domain.NewMessage{Text: text}
	if draft.Attachment != nil {
		path := AttachmentPath(conv.ID, c.now(), draft.Attachment.Name)
		url, err := c.backend.UploadBlob(ctx, path, draft.Attachment.Data)
		if err != nil {
			err = &UploadError{Path: path, Err: err}
			report(c.log, c.flash, "upload", err)
			return nil, err
		}
		input.AttachmentURL = &url
	}

	msg, err := c.backend.SendMessage(ctx, conv.ID, input)
	if err != nil {
		err = &DataError{Op: "send message", Err: err}
		report(c.log, c.flash, "send", err)
		return nil, err
	}

	c.view.ClearInput()
	return msg, nil
}

// BeginEdit enters edit mode for one of my messages in the open
// conversation, replacing any edit in progress.
func (c *Composer) BeginEdit(id uuid.UUID) error {
	msg, ok := c.active.Message(id)
	if !ok {
		err := &DataError{Op: "edit message", Err: ErrNotFound}
		report(c.log, c.flash, "begin edit", err)
		return err
	}
	if msg.SenderID != c.me {
		report(c.log, c.flash, "begin edit", ErrNotSender)
		return ErrNotSender
	}

	c.mu.Lock()
	c.editing = &id
	c.mu.Unlock()

	c.view.SetInput(msg.Text)
	c.view.ShowEditBadge(msg.Text)
	return nil
}

// CancelEdit leaves edit mode without touching the message.
func (c *Composer) CancelEdit() {
	c.mu.Lock()
	wasEditing := c.editing != nil
	c.editing = nil
	c.mu.Unlock()

	if wasEditing {
		c.view.HideEditBadge()
		c.view.ClearInput()
	}
}

func (c *Composer) finishEdit(id uuid.UUID) {
	c.mu.Lock()
	if c.editing == nil || *c.editing != id {
		c.mu.Unlock()
		return
	}
	c.editing = nil
	c.mu.Unlock()

	c.view.HideEditBadge()
	c.view.ClearInput()
}

// Editing returns the message being edited.
func (c *Composer) Editing() (uuid.UUID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editing == nil {
		return uuid.Nil, false
	}
	return *c.editing, true
}

// Delete removes one of my messages.
func (c *Composer) Delete(ctx context.Context, id uuid.UUID) error {
	msg, ok := c.active.Message(id)
	if !ok {
		err := &DataError{Op: "delete message", Err: ErrNotFound}
		report(c.log, c.flash, "delete", err)
		return err
	}
	if msg.SenderID != c.me {
		report(c.log, c.flash, "delete", ErrNotSender)
		return ErrNotSender
	}

	if err := c.backend.DeleteMessage(ctx, id); err != nil {
		err = &DataError{Op: "delete message", Err: err}
		report(c.log, c.flash, "delete", err)
		return err
	}
	c.finishEdit(id)
	return nil
}

// Pin pins any message of the open conversation.
func (c *Composer) Pin(ctx context.Context, id uuid.UUID) error {
	conv, ok := c.active.Current()
	if !ok {
		report(c.log, c.flash, "pin", ErrNoConversation)
		return ErrNoConversation
	}
	if _, ok := c.active.Message(id); !ok {
		err := &DataError{Op: "pin message", Err: ErrNotFound}
		report(c.log, c.flash, "pin", err)
		return err
	}
	return c.setPinned(ctx, conv.ID, &id)
}

func (c *Composer) Unpin(ctx context.Context) error {
	conv, ok := c.active.Current()
	if !ok {
		report(c.log, c.flash, "unpin", ErrNoConversation)
		return ErrNoConversation
	}
	return c.setPinned(ctx, conv.ID, nil)
}

func (c *Composer) setPinned(ctx context.Context, conversationID uuid.UUID, messageID *uuid.UUID) error {
	if err := c.backend.SetPinned(ctx, conversationID, messageID); err != nil {
		err = &DataError{Op: "pin message", Err: err}
		report(c.log, c.flash, "pin", err)
		return err
	}
	return nil
}
