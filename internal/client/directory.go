package client

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/domain"
)

// MinSearchLength is the shortest query Search sends.
const MinSearchLength = 3

// Directory finds people by their exact email handle.
type Directory struct {
	backend Backend
	me      uuid.UUID
	view    SearchView
	flash   Flasher
	log     zerolog.Logger

	mu  sync.Mutex
	seq uint64
}

func NewDirectory(backend Backend, me uuid.UUID, view SearchView, flash Flasher, log zerolog.Logger) *Directory {
	return &Directory{
		backend: backend,
		me:      me,
		view:    view,
		flash:   flash,
		log:     log.With().Str("component", "directory").Logger(),
	}
}

// Search looks up query once it is long enough. The current user never
// shows up in results. Results of a query superseded by a later Search are
// not rendered.
func (d *Directory) Search(ctx context.Context, query string) ([]domain.User, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return nil, nil
	}

	d.mu.Lock()
	d.seq++
	seq := d.seq
	d.mu.Unlock()

	users, err := d.backend.FindUsersByEmail(ctx, query)
	if err != nil {
		err = &DataError{Op: "search users", Err: err}
		report(d.log, d.flash, "search", err)
		return nil, err
	}

	visible := make([]domain.User, 0, len(users))
	for _, u := range users {
		if u.ID != d.me {
			visible = append(visible, u)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if seq != d.seq {
		return visible, nil
	}
	if len(visible) == 0 {
		d.view.ShowNotFound()
	} else {
		d.view.ShowResults(visible)
	}
	return visible, nil
}

// StartConversation returns the conversation with userID, creating it only
// when the pair has none yet.
func (d *Directory) StartConversation(ctx context.Context, userID uuid.UUID) (*domain.Conversation, error) {
	if userID == d.me {
		report(d.log, d.flash, "start conversation", ErrSelfConversation)
		return nil, ErrSelfConversation
	}

	conv, err := d.backend.FindConversation(ctx, userID)
	if err != nil {
		err = &DataError{Op: "find conversation", Err: err}
		report(d.log, d.flash, "start conversation", err)
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv, err = d.backend.CreateConversation(ctx, userID)
	if err != nil {
		err = &DataError{Op: "create conversation", Err: err}
		report(d.log, d.flash, "start conversation", err)
		return nil, err
	}
	d.log.Debug().Stringer("conversation_id", conv.ID).Msg("conversation created")
	return conv, nil
}
