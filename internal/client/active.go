package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/domain"
)

// pinnedLookupTimeout bounds the point read behind the pinned bar.
const pinnedLookupTimeout = 10 * time.Second

// ActiveConversation owns the open conversation's two live queries: its
// messages and its metadata (for the pinned bar). At most one of each is
// live at any time. Opening another conversation cancels both before
// subscribing anew.
//
// Every Open starts a new generation. Snapshots from an older generation,
// or with a Seq not above the last applied one, are dropped.
type ActiveConversation struct {
	backend Backend
	me      uuid.UUID
	view    ActiveView
	loc     *time.Location
	log     zerolog.Logger

	mu       sync.Mutex
	gen      uint64
	current  *ConversationItem
	shown    bool
	msgSub   Subscription
	metaSub  Subscription
	msgSeq   uint64
	metaSeq  uint64
	messages []domain.Message
	stop     context.CancelFunc

	wg sync.WaitGroup
}

func NewActiveConversation(backend Backend, me uuid.UUID, view ActiveView, loc *time.Location, log zerolog.Logger) *ActiveConversation {
	if loc == nil {
		loc = time.Local
	}
	return &ActiveConversation{
		backend: backend,
		me:      me,
		view:    view,
		loc:     loc,
		log:     log.With().Str("component", "active_conversation").Logger(),
	}
}

// Open switches to item. If either subscription fails the controller ends
// closed and the error is returned.
func (a *ActiveConversation) Open(ctx context.Context, item ConversationItem) error {
	a.mu.Lock()
	a.gen++
	gen := a.gen
	prevMsgs, prevMeta, prevStop := a.detachLocked()
	a.mu.Unlock()

	cancelAll(prevMsgs, prevMeta, prevStop)

	a.view.ClearTimeline()
	a.view.HidePinned()
	a.view.ShowConversation(item)

	meta, err := a.backend.Subscribe(ctx, domain.ConversationQuery(item.ID))
	if err != nil {
		return &DataError{Op: "subscribe conversation", Err: err}
	}
	msgs, err := a.backend.Subscribe(ctx, domain.MessagesQuery(item.ID))
	if err != nil {
		meta.Cancel()
		return &DataError{Op: "subscribe messages", Err: err}
	}

	runCtx, stop := context.WithCancel(context.Background())

	a.mu.Lock()
	if a.gen != gen {
		// A newer Open or a Close won the race.
		a.mu.Unlock()
		cancelAll(msgs, meta, stop)
		return nil
	}
	a.current = &item
	a.shown = true
	a.msgSub, a.metaSub, a.stop = msgs, meta, stop
	a.mu.Unlock()

	a.log.Debug().Stringer("conversation_id", item.ID).Uint64("gen", gen).Msg("conversation opened")

	a.wg.Add(2)
	go a.drainMessages(gen, msgs)
	go a.drainMeta(runCtx, gen, meta)
	return nil
}

// Back returns to the conversation list on narrow layouts. The
// subscriptions stay live.
func (a *ActiveConversation) Back() {
	a.mu.Lock()
	a.shown = false
	a.mu.Unlock()
	a.view.ShowSidebar()
}

// Close tears down both subscriptions and waits for their drains.
func (a *ActiveConversation) Close() {
	a.mu.Lock()
	a.gen++
	msgs, meta, stop := a.detachLocked()
	a.mu.Unlock()

	cancelAll(msgs, meta, stop)
	a.wg.Wait()
}

func (a *ActiveConversation) detachLocked() (Subscription, Subscription, context.CancelFunc) {
	msgs, meta, stop := a.msgSub, a.metaSub, a.stop
	a.msgSub, a.metaSub, a.stop = nil, nil, nil
	a.current = nil
	a.shown = false
	a.messages = nil
	a.msgSeq, a.metaSeq = 0, 0
	return msgs, meta, stop
}

func cancelAll(msgs, meta Subscription, stop context.CancelFunc) {
	if stop != nil {
		stop()
	}
	if msgs != nil {
		msgs.Cancel()
	}
	if meta != nil {
		meta.Cancel()
	}
}

func (a *ActiveConversation) drainMessages(gen uint64, sub Subscription) {
	defer a.wg.Done()
	for snap := range sub.Snapshots() {
		a.applyMessages(gen, snap)
	}
	if err := sub.Err(); err != nil {
		a.log.Warn().Err(err).Msg("message stream ended")
	}
}

func (a *ActiveConversation) applyMessages(gen uint64, snap domain.Snapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen || snap.Seq <= a.msgSeq {
		return
	}
	a.msgSeq = snap.Seq
	a.messages = snap.Messages

	a.view.RenderTimeline(ProjectTimeline(snap.Messages, a.me, a.loc))
	a.view.ScrollToNewest()
}

func (a *ActiveConversation) drainMeta(ctx context.Context, gen uint64, sub Subscription) {
	defer a.wg.Done()
	for snap := range sub.Snapshots() {
		a.applyMeta(ctx, gen, snap)
	}
	if err := sub.Err(); err != nil {
		a.log.Warn().Err(err).Msg("conversation stream ended")
	}
}

func (a *ActiveConversation) applyMeta(ctx context.Context, gen uint64, snap domain.Snapshot) {
	a.mu.Lock()
	if gen != a.gen || snap.Seq <= a.metaSeq || snap.Conversation == nil {
		a.mu.Unlock()
		return
	}
	a.metaSeq = snap.Seq
	pinned := snap.Conversation.PinnedMessageID
	if pinned == nil {
		a.view.HidePinned()
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	lookupCtx, cancel := context.WithTimeout(ctx, pinnedLookupTimeout)
	msg, err := a.backend.GetMessage(lookupCtx, *pinned)
	cancel()

	a.mu.Lock()
	defer a.mu.Unlock()
	if gen != a.gen || snap.Seq != a.metaSeq {
		return
	}
	if err != nil || msg == nil {
		if err != nil && !errors.Is(err, ErrNotFound) {
			a.log.Debug().Err(err).Stringer("message_id", *pinned).Msg("pinned lookup failed")
		}
		a.view.HidePinned()
		return
	}
	a.view.ShowPinned(pinnedText(msg))
}

func pinnedText(msg *domain.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return PinnedPhotoText
}

// Current returns the open conversation.
func (a *ActiveConversation) Current() (ConversationItem, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current == nil {
		return ConversationItem{}, false
	}
	return *a.current, true
}

// Shown reports whether the conversation pane is presented, which Back
// clears while the conversation stays open.
func (a *ActiveConversation) Shown() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shown
}

// Message returns a message from the last applied snapshot.
func (a *ActiveConversation) Message(id uuid.UUID) (domain.Message, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, m := range a.messages {
		if m.ID == id {
			return m, true
		}
	}
	return domain.Message{}, false
}
