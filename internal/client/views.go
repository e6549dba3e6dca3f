package client

import (
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

const (
	// FlashDuration is how long a flash stays before it dismisses itself.
	FlashDuration = 5 * time.Second

	UnknownUserName   = "User"
	EmptyPreview      = "No messages"
	PinnedPhotoText   = "Photo"
	PendingTimeMarker = "..."
)

// View names a top-level screen.
type View int

const (
	ViewLogin View = iota
	ViewChat
)

func (v View) String() string {
	if v == ViewChat {
		return "chat"
	}
	return "login"
}

type FlashType int

const (
	FlashInfo FlashType = iota
	FlashError
)

// Flash is a transient message. The UI hides it after Duration.
type Flash struct {
	Text     string
	Type     FlashType
	Duration time.Duration
}

type Flasher interface {
	ShowFlash(f Flash)
}

type Navigator interface {
	Navigate(to View)
}

// GateView is the screen a Gate protects.
type GateView interface {
	Navigator
	// Ready initializes the guarded screen. user is nil on the login screen.
	Ready(user *domain.User)
	ShowError(err error)
}

type LoaderView interface {
	ShowLoader()
	HideLoader()
}

// ConversationItem is one row of the conversation list.
type ConversationItem struct {
	ID            uuid.UUID
	CounterpartID uuid.UUID
	Name          string
	AvatarURL     *string
	Preview       string
	UpdatedAt     time.Time
	Active        bool
}

// Initial is the avatar fallback letter.
func (i ConversationItem) Initial() string {
	u := domain.User{Username: i.Name}
	return u.Initial()
}

type ConversationListView interface {
	RenderConversations(items []ConversationItem)
}

type TimelineView interface {
	ClearTimeline()
	RenderTimeline(entries []TimelineEntry)
	ScrollToNewest()
}

type PinnedView interface {
	ShowPinned(text string)
	HidePinned()
}

// ChatPane shows the open conversation's header. ShowSidebar is the
// narrow-screen "back" presentation.
type ChatPane interface {
	ShowConversation(item ConversationItem)
	ShowSidebar()
}

// ActiveView is everything the open conversation renders into.
type ActiveView interface {
	ChatPane
	TimelineView
	PinnedView
}

type ComposeView interface {
	SetInput(text string)
	// ClearInput empties the text input and the attachment selection.
	ClearInput()
	ShowEditBadge(preview string)
	HideEditBadge()
}

type SearchView interface {
	ShowResults(users []domain.User)
	ShowNotFound()
}

// Views bundles the sinks a Client renders into.
type Views struct {
	List    ConversationListView
	Active  ActiveView
	Compose ComposeView
	Search  SearchView
	Flash   Flasher
}
