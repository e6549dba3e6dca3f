package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/client"
	"github.com/vedran77/relay/internal/client/remote"
	"github.com/vedran77/relay/internal/domain"
)

// terminal renders every client view as plain lines and keeps the last
// rendered lists so commands can refer to rows by number.
type terminal struct {
	out     io.Writer
	backend *remote.Backend
	log     zerolog.Logger

	mu       sync.Mutex
	session  *client.Client
	items    []client.ConversationItem
	timeline []client.TimelineEntry
	results  []domain.User
}

func newTerminal(out io.Writer, backend *remote.Backend, log zerolog.Logger) *terminal {
	return &terminal{out: out, backend: backend, log: log}
}

func (t *terminal) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, format+"\n", args...)
}

func (t *terminal) current() *client.Client {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

// --- Gate ---

func (t *terminal) Navigate(to client.View) {
	if to != client.ViewLogin {
		return
	}
	t.endSession()
	t.printf("Signed out. Use /login <email> <password> or /register <email> <name> <password>.")
}

func (t *terminal) Ready(user *domain.User) {
	if user == nil {
		return
	}
	t.endSession()

	c := client.New(t.backend, *user, client.Views{
		List:    t,
		Active:  t,
		Compose: t,
		Search:  t,
		Flash:   t,
	}, client.WithLogger(t.log))

	t.mu.Lock()
	t.session = c
	t.mu.Unlock()

	t.printf("Signed in as %s <%s>. Type /help for commands.", user.Username, user.Email)
	if err := c.Start(context.Background()); err != nil {
		t.log.Debug().Err(err).Msg("start session")
	}
}

func (t *terminal) ShowError(err error) {
	t.printf("! %s", client.UserMessage(err))
}

func (t *terminal) endSession() {
	t.mu.Lock()
	c := t.session
	t.session = nil
	t.items, t.timeline, t.results = nil, nil, nil
	t.mu.Unlock()

	if c != nil {
		c.Close()
	}
}

// --- Loader and flash ---

func (t *terminal) ShowLoader() { t.printf("...") }
func (t *terminal) HideLoader() {}

func (t *terminal) ShowFlash(f client.Flash) {
	prefix := "i"
	if f.Type == client.FlashError {
		prefix = "!"
	}
	t.printf("%s %s", prefix, f.Text)
}

// --- Conversation list ---

func (t *terminal) RenderConversations(items []client.ConversationItem) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.items = items
	fmt.Fprintln(t.out, "-- conversations --")
	for i, item := range items {
		marker := " "
		if item.Active {
			marker = "*"
		}
		fmt.Fprintf(t.out, "%s%2d [%s] %s: %s\n", marker, i+1, item.Initial(), item.Name, item.Preview)
	}
}

func (t *terminal) item(n int) (client.ConversationItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.items) {
		return client.ConversationItem{}, false
	}
	return t.items[n-1], true
}

// --- Active conversation ---

func (t *terminal) ShowConversation(item client.ConversationItem) {
	t.printf("== %s ==", item.Name)
}

func (t *terminal) ShowSidebar() {
	t.printf("(back to conversations)")
}

func (t *terminal) ClearTimeline() {
	t.mu.Lock()
	t.timeline = nil
	t.mu.Unlock()
}

func (t *terminal) RenderTimeline(entries []client.TimelineEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timeline = entries
	for i, e := range entries {
		who := "  "
		if e.Sent {
			who = "me"
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%3d %s %5s ", i+1, who, e.Time)
		if e.HasAttachment() {
			fmt.Fprintf(&b, "[photo %s] ", e.AttachmentURL)
		}
		b.WriteString(e.Text)
		if e.Edited {
			b.WriteString(" (edited)")
		}
		if e.Delivered {
			b.WriteString(" ✓✓")
		}
		fmt.Fprintln(t.out, b.String())
	}
}

func (t *terminal) ScrollToNewest() {}

func (t *terminal) entry(n int) (client.TimelineEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.timeline) {
		return client.TimelineEntry{}, false
	}
	return t.timeline[n-1], true
}

func (t *terminal) ShowPinned(text string) { t.printf("📌 %s", text) }
func (t *terminal) HidePinned()            {}

// --- Compose ---

func (t *terminal) SetInput(text string) { t.printf("editing: %s", text) }
func (t *terminal) ClearInput()          {}

func (t *terminal) ShowEditBadge(preview string) {
	t.printf("(edit mode, type the new text or /cancel) %s", preview)
}

func (t *terminal) HideEditBadge() {}

// --- Search ---

func (t *terminal) ShowResults(users []domain.User) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.results = users
	for i, u := range users {
		fmt.Fprintf(t.out, "%2d %s <%s>\n", i+1, u.Username, u.Email)
	}
	fmt.Fprintln(t.out, "Use /with <n> to start chatting.")
}

func (t *terminal) ShowNotFound() {
	t.mu.Lock()
	t.results = nil
	t.mu.Unlock()
	t.printf("No user found")
}

func (t *terminal) result(n int) (domain.User, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n < 1 || n > len(t.results) {
		return domain.User{}, false
	}
	return t.results[n-1], true
}

var (
	_ client.GateView             = (*terminal)(nil)
	_ client.LoaderView           = (*terminal)(nil)
	_ client.Flasher              = (*terminal)(nil)
	_ client.ConversationListView = (*terminal)(nil)
	_ client.ActiveView           = (*terminal)(nil)
	_ client.ComposeView          = (*terminal)(nil)
	_ client.SearchView           = (*terminal)(nil)
)
