package client

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

// fakeSub is a live query served by fakeBackend.
type fakeSub struct {
	b    *fakeBackend
	q    domain.Query
	ch   chan domain.Snapshot
	seq  uint64
	once sync.Once
}

func (s *fakeSub) Snapshots() <-chan domain.Snapshot { return s.ch }
func (s *fakeSub) Err() error                        { return nil }

func (s *fakeSub) Cancel() {
	s.once.Do(func() {
		s.b.mu.Lock()
		defer s.b.mu.Unlock()
		for i, sub := range s.b.subs {
			if sub == s {
				s.b.subs = append(s.b.subs[:i], s.b.subs[i+1:]...)
				break
			}
		}
		close(s.ch)
	})
}

// fakeBackend is an in-memory backend that publishes fresh snapshots after
// every mutation, like the real server does.
type fakeBackend struct {
	mu sync.Mutex

	me            uuid.UUID
	users         map[uuid.UUID]domain.User
	conversations map[uuid.UUID]*domain.Conversation
	messages      map[uuid.UUID]domain.Message
	subs          []*fakeSub
	calls         map[string]int
	uploads       []string
	clock         time.Time

	userGates    map[uuid.UUID]chan struct{}
	subscribeErr map[domain.QueryKind]error
	authErr      error
	sendErr      error
	authStates   chan AuthState
}

func newFakeBackend(me domain.User) *fakeBackend {
	b := &fakeBackend{
		me:            me.ID,
		users:         map[uuid.UUID]domain.User{me.ID: me},
		conversations: make(map[uuid.UUID]*domain.Conversation),
		messages:      make(map[uuid.UUID]domain.Message),
		calls:         make(map[string]int),
		clock:         time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		userGates:     make(map[uuid.UUID]chan struct{}),
		subscribeErr:  make(map[domain.QueryKind]error),
		authStates:    make(chan AuthState, 8),
	}
	return b
}

func (b *fakeBackend) addUser(name string) domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := domain.User{ID: uuid.New(), Username: name, Email: strings.ToLower(name) + "@example.com"}
	b.users[u.ID] = u
	return u
}

func (b *fakeBackend) addConversation(a, c uuid.UUID) *domain.Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createLocked(a, c)
}

func (b *fakeBackend) createLocked(a, c uuid.UUID) *domain.Conversation {
	b.clock = b.clock.Add(time.Second)
	conv := &domain.Conversation{
		ID:           uuid.New(),
		Participants: domain.CanonicalPair(a, c),
		CreatedAt:    b.clock,
		UpdatedAt:    b.clock,
	}
	b.conversations[conv.ID] = conv
	b.publishLocked(domain.ConversationsTopic(a))
	b.publishLocked(domain.ConversationsTopic(c))
	return conv
}

func (b *fakeBackend) count(call string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[call]
}

func (b *fakeBackend) totalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

// liveSubs returns the open subscriptions of the given kind.
func (b *fakeBackend) liveSubs(kind domain.QueryKind) []*fakeSub {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*fakeSub
	for _, s := range b.subs {
		if s.q.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

func (b *fakeBackend) conversation(id uuid.UUID) domain.Conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.conversations[id]
}

// gateUser blocks GetUser for id until the returned func is called.
func (b *fakeBackend) gateUser(id uuid.UUID) (release func()) {
	ch := make(chan struct{})
	b.mu.Lock()
	b.userGates[id] = ch
	b.mu.Unlock()
	return func() { close(ch) }
}

// deliver pushes a raw snapshot to sub, bypassing the sequence counter.
func (s *fakeSub) deliver(snap domain.Snapshot) {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.ch <- snap
}

func (b *fakeBackend) publishLocked(topic string) {
	for _, s := range b.subs {
		if s.q.Topic() != topic {
			continue
		}
		s.seq++
		snap := b.snapshotLocked(s.q)
		snap.Seq = s.seq
		s.ch <- snap
	}
}

func (b *fakeBackend) snapshotLocked(q domain.Query) domain.Snapshot {
	switch q.Kind {
	case domain.QueryConversations:
		var convs []domain.Conversation
		for _, c := range b.conversations {
			if c.HasParticipant(q.ParticipantID) {
				convs = append(convs, *c)
			}
		}
		return domain.Snapshot{Conversations: convs}
	case domain.QueryConversation:
		if c, ok := b.conversations[q.ConversationID]; ok {
			conv := *c
			return domain.Snapshot{Conversation: &conv}
		}
	case domain.QueryMessages:
		var msgs []domain.Message
		for _, m := range b.messages {
			if m.ConversationID == q.ConversationID {
				msgs = append(msgs, m)
			}
		}
		sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
		return domain.Snapshot{Messages: msgs}
	}
	return domain.Snapshot{}
}

func (b *fakeBackend) CreateAccount(_ context.Context, input domain.RegisterInput) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["CreateAccount"]++
	if b.authErr != nil {
		return nil, b.authErr
	}
	u := domain.User{ID: uuid.New(), Email: input.Email, Username: input.Username}
	b.users[u.ID] = u
	return &Session{User: u, Token: "token"}, nil
}

func (b *fakeBackend) Authenticate(_ context.Context, email, _ string) (*Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["Authenticate"]++
	if b.authErr != nil {
		return nil, b.authErr
	}
	for _, u := range b.users {
		if u.Email == email {
			return &Session{User: u, Token: "token"}, nil
		}
	}
	return nil, &AuthError{Kind: AuthInvalidCredentials}
}

func (b *fakeBackend) WatchAuthState(ctx context.Context) <-chan AuthState {
	out := make(chan AuthState)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case st := <-b.authStates:
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (b *fakeBackend) SignOut(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["SignOut"]++
	return nil
}

func (b *fakeBackend) Subscribe(_ context.Context, q domain.Query) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["Subscribe"]++
	if err := b.subscribeErr[q.Kind]; err != nil {
		return nil, err
	}

	sub := &fakeSub{b: b, q: q, ch: make(chan domain.Snapshot, 32)}
	b.subs = append(b.subs, sub)

	sub.seq++
	snap := b.snapshotLocked(q)
	snap.Seq = sub.seq
	sub.ch <- snap
	return sub, nil
}

func (b *fakeBackend) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	b.mu.Lock()
	b.calls["GetUser"]++
	gate := b.userGates[id]
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[id]
	if !ok {
		return nil, &DataError{Op: "get user", Err: ErrNotFound}
	}
	return &u, nil
}

func (b *fakeBackend) GetMessage(_ context.Context, id uuid.UUID) (*domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["GetMessage"]++
	m, ok := b.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}

func (b *fakeBackend) FindUsersByEmail(_ context.Context, email string) ([]domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["FindUsersByEmail"]++
	var out []domain.User
	for _, u := range b.users {
		if strings.EqualFold(u.Email, email) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (b *fakeBackend) FindConversation(_ context.Context, other uuid.UUID) (*domain.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["FindConversation"]++
	pair := domain.CanonicalPair(b.me, other)
	for _, c := range b.conversations {
		if c.Participants == pair {
			conv := *c
			return &conv, nil
		}
	}
	return nil, nil
}

func (b *fakeBackend) CreateConversation(_ context.Context, other uuid.UUID) (*domain.Conversation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["CreateConversation"]++
	conv := *b.createLocked(b.me, other)
	return &conv, nil
}

func (b *fakeBackend) SendMessage(_ context.Context, conversationID uuid.UUID, input domain.NewMessage) (*domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["SendMessage"]++
	if b.sendErr != nil {
		return nil, b.sendErr
	}
	conv, ok := b.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}

	b.clock = b.clock.Add(time.Second)
	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       b.me,
		Text:           input.Text,
		AttachmentURL:  input.AttachmentURL,
		CreatedAt:      b.clock,
	}
	b.messages[msg.ID] = msg
	conv.LastMessage = input.Preview()
	conv.UpdatedAt = b.clock

	b.publishLocked(domain.MessagesTopic(conversationID))
	b.publishLocked(domain.ConversationTopic(conversationID))
	for _, p := range conv.Participants {
		b.publishLocked(domain.ConversationsTopic(p))
	}
	return &msg, nil
}

// receive stores a message from someone else.
func (b *fakeBackend) receive(conversationID, from uuid.UUID, text string) domain.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = b.clock.Add(time.Second)
	msg := domain.Message{ID: uuid.New(), ConversationID: conversationID, SenderID: from, Text: text, CreatedAt: b.clock}
	b.messages[msg.ID] = msg
	b.publishLocked(domain.MessagesTopic(conversationID))
	return msg
}

func (b *fakeBackend) EditMessage(_ context.Context, id uuid.UUID, text string) (*domain.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["EditMessage"]++
	m, ok := b.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	m.Text = text
	m.Edited = true
	b.messages[id] = m
	b.publishLocked(domain.MessagesTopic(m.ConversationID))
	return &m, nil
}

func (b *fakeBackend) DeleteMessage(_ context.Context, id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["DeleteMessage"]++
	m, ok := b.messages[id]
	if !ok {
		return ErrNotFound
	}
	delete(b.messages, id)
	b.publishLocked(domain.MessagesTopic(m.ConversationID))
	if c := b.conversations[m.ConversationID]; c.PinnedMessageID != nil && *c.PinnedMessageID == id {
		c.PinnedMessageID = nil
		b.publishLocked(domain.ConversationTopic(c.ID))
	}
	return nil
}

func (b *fakeBackend) SetPinned(_ context.Context, conversationID uuid.UUID, messageID *uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["SetPinned"]++
	c, ok := b.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	c.PinnedMessageID = messageID
	b.publishLocked(domain.ConversationTopic(conversationID))
	return nil
}

func (b *fakeBackend) UpdateProfile(_ context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["UpdateProfile"]++
	u := b.users[b.me]
	if update.Username != nil {
		u.Username = *update.Username
	}
	if update.AvatarURL != nil {
		u.AvatarURL = update.AvatarURL
	}
	b.users[b.me] = u
	return &u, nil
}

func (b *fakeBackend) UploadBlob(_ context.Context, path string, _ []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls["UploadBlob"]++
	b.uploads = append(b.uploads, path)
	return "https://files.test/" + path, nil
}

// recordingUI implements every view and remembers what was shown.
type recordingUI struct {
	mu sync.Mutex

	lists       [][]ConversationItem
	timeline    []TimelineEntry
	timelineOps []string
	renderSizes []int
	pinned      string
	pinnedShown bool
	header      *ConversationItem
	sidebar     bool
	input       string
	editBadge   bool
	results     []domain.User
	notFound    bool
	flashes     []string
	navigations []View
	readies     []*domain.User
	errors      []error
	loader      bool
	loaderShown int
}

func (u *recordingUI) RenderConversations(items []ConversationItem) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lists = append(u.lists, items)
}

func (u *recordingUI) lastList() []ConversationItem {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.lists) == 0 {
		return nil
	}
	return u.lists[len(u.lists)-1]
}

func (u *recordingUI) ClearTimeline() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.timeline = nil
	u.timelineOps = append(u.timelineOps, "clear")
}

func (u *recordingUI) RenderTimeline(entries []TimelineEntry) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.timeline = entries
	u.timelineOps = append(u.timelineOps, "render")
	u.renderSizes = append(u.renderSizes, len(entries))
}

func (u *recordingUI) ScrollToNewest() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.timelineOps = append(u.timelineOps, "scroll")
}

func (u *recordingUI) entries() []TimelineEntry {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.timeline
}

func (u *recordingUI) ShowPinned(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pinned, u.pinnedShown = text, true
}

func (u *recordingUI) HidePinned() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pinned, u.pinnedShown = "", false
}

func (u *recordingUI) pinnedBar() (string, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.pinned, u.pinnedShown
}

func (u *recordingUI) ShowConversation(item ConversationItem) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.header = &item
	u.sidebar = false
}

func (u *recordingUI) ShowSidebar() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sidebar = true
}

func (u *recordingUI) SetInput(text string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.input = text
}

func (u *recordingUI) ClearInput() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.input = ""
}

func (u *recordingUI) ShowEditBadge(string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.editBadge = true
}

func (u *recordingUI) HideEditBadge() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.editBadge = false
}

func (u *recordingUI) ShowResults(users []domain.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.results, u.notFound = users, false
}

func (u *recordingUI) ShowNotFound() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.results, u.notFound = nil, true
}

func (u *recordingUI) ShowFlash(f Flash) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.flashes = append(u.flashes, f.Text)
}

func (u *recordingUI) lastFlash() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.flashes) == 0 {
		return ""
	}
	return u.flashes[len(u.flashes)-1]
}

func (u *recordingUI) Navigate(to View) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.navigations = append(u.navigations, to)
}

func (u *recordingUI) Ready(user *domain.User) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.readies = append(u.readies, user)
}

func (u *recordingUI) ShowError(err error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.errors = append(u.errors, err)
}

func (u *recordingUI) ShowLoader() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.loader = true
	u.loaderShown++
}

func (u *recordingUI) HideLoader() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.loader = false
}

func (u *recordingUI) views() Views {
	return Views{List: u, Active: u, Compose: u, Search: u, Flash: u}
}

// snapshotState reads fields under the lock.
func (u *recordingUI) snapshotState(f func(u *recordingUI)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	f(u)
}
