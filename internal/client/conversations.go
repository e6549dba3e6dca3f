package client

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/domain"
	"golang.org/x/sync/errgroup"
)

// maxLookups bounds concurrent counterpart lookups per snapshot.
const maxLookups = 8

// ConversationList keeps the sidebar in sync with the user's conversations.
// Every snapshot is resolved on its own goroutine; only a snapshot newer
// than the last rendered one may render, so a slow lookup from an old
// snapshot never overwrites a newer list.
type ConversationList struct {
	backend Backend
	me      uuid.UUID
	view    ConversationListView
	log     zerolog.Logger

	mu        sync.Mutex
	sub       Subscription
	cancel    context.CancelFunc
	applied   uint64
	discarded int
	items     []ConversationItem
	active    uuid.UUID

	wg sync.WaitGroup
}

func NewConversationList(backend Backend, me uuid.UUID, view ConversationListView, log zerolog.Logger) *ConversationList {
	return &ConversationList{
		backend: backend,
		me:      me,
		view:    view,
		log:     log.With().Str("component", "conversation_list").Logger(),
	}
}

// Start subscribes to the user's conversations. It is a no-op when the
// list is already running.
func (l *ConversationList) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.sub != nil {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	sub, err := l.backend.Subscribe(ctx, domain.ConversationsQuery(l.me))
	if err != nil {
		return &DataError{Op: "subscribe conversations", Err: err}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	l.sub, l.cancel = sub, cancel
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		for snap := range sub.Snapshots() {
			l.wg.Add(1)
			go func(snap domain.Snapshot) {
				defer l.wg.Done()
				l.apply(runCtx, snap)
			}(snap)
		}
		if err := sub.Err(); err != nil {
			l.log.Warn().Err(err).Msg("conversation stream ended")
		}
	}()
	return nil
}

// Stop cancels the subscription and waits for pending renders.
func (l *ConversationList) Stop() {
	l.mu.Lock()
	sub, cancel := l.sub, l.cancel
	l.sub, l.cancel = nil, nil
	l.mu.Unlock()

	if sub == nil {
		return
	}
	cancel()
	sub.Cancel()
	l.wg.Wait()
}

func (l *ConversationList) apply(ctx context.Context, snap domain.Snapshot) {
	items := l.resolve(ctx, snap.Conversations)
	sortItems(items)

	l.mu.Lock()
	defer l.mu.Unlock()

	if snap.Seq <= l.applied {
		l.discarded++
		l.log.Debug().Uint64("seq", snap.Seq).Uint64("applied", l.applied).Msg("stale conversation snapshot dropped")
		return
	}
	l.applied = snap.Seq
	l.items = items
	l.renderLocked()
}

func (l *ConversationList) resolve(ctx context.Context, convs []domain.Conversation) []ConversationItem {
	items := make([]ConversationItem, len(convs))

	var g errgroup.Group
	g.SetLimit(maxLookups)
	for i := range convs {
		g.Go(func() error {
			items[i] = l.item(ctx, &convs[i])
			return nil
		})
	}
	g.Wait()

	return items
}

// item builds a list row. A failed counterpart lookup falls back to a
// placeholder name instead of failing the whole list.
func (l *ConversationList) item(ctx context.Context, conv *domain.Conversation) ConversationItem {
	item := ConversationItem{
		ID:        conv.ID,
		Name:      UnknownUserName,
		Preview:   conv.LastMessage,
		UpdatedAt: conv.UpdatedAt,
	}
	if item.Preview == "" {
		item.Preview = EmptyPreview
	}

	other, ok := conv.Counterpart(l.me)
	if !ok {
		return item
	}
	item.CounterpartID = other

	user, err := l.backend.GetUser(ctx, other)
	if err != nil || user == nil {
		l.log.Debug().Err(err).Stringer("user_id", other).Msg("counterpart lookup failed")
		return item
	}
	if user.Username != "" {
		item.Name = user.Username
	}
	item.AvatarURL = user.AvatarURL
	return item
}

func sortItems(items []ConversationItem) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
}

// SetActive highlights the open conversation.
func (l *ConversationList) SetActive(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active == id {
		return
	}
	l.active = id
	if l.applied > 0 {
		l.renderLocked()
	}
}

func (l *ConversationList) renderLocked() {
	out := make([]ConversationItem, len(l.items))
	for i, item := range l.items {
		item.Active = item.ID == l.active
		out[i] = item
	}
	l.view.RenderConversations(out)
}

// Item returns the rendered row for id.
func (l *ConversationList) Item(id uuid.UUID) (ConversationItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.items {
		if item.ID == id {
			item.Active = item.ID == l.active
			return item, true
		}
	}
	return ConversationItem{}, false
}

func (l *ConversationList) Items() []ConversationItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ConversationItem, len(l.items))
	for i, item := range l.items {
		item.Active = item.ID == l.active
		out[i] = item
	}
	return out
}
