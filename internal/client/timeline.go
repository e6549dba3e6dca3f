package client

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

// TimelineEntry is one rendered message bubble.
type TimelineEntry struct {
	ID            uuid.UUID
	Sent          bool
	Text          string
	AttachmentURL string
	Edited        bool
	// Delivered is the double-check shown on messages I sent.
	Delivered bool
	Pending   bool
	Time      string
}

func (e TimelineEntry) HasText() bool       { return e.Text != "" }
func (e TimelineEntry) HasAttachment() bool { return e.AttachmentURL != "" }

// ProjectTimeline orders messages oldest first, with messages still waiting
// for a server timestamp at the end, and annotates them for display.
func ProjectTimeline(messages []domain.Message, me uuid.UUID, loc *time.Location) []TimelineEntry {
	ordered := make([]domain.Message, len(messages))
	copy(ordered, messages)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Pending() || b.Pending() {
			return !a.Pending() && b.Pending()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})

	entries := make([]TimelineEntry, 0, len(ordered))
	for _, m := range ordered {
		sent := m.SenderID == me
		entry := TimelineEntry{
			ID:        m.ID,
			Sent:      sent,
			Text:      m.Text,
			Edited:    m.Edited,
			Delivered: sent,
			Pending:   m.Pending(),
			Time:      FormatTime(m.CreatedAt, loc),
		}
		if m.HasAttachment() {
			entry.AttachmentURL = *m.AttachmentURL
		}
		entries = append(entries, entry)
	}
	return entries
}

// FormatTime renders a server timestamp as local "15:04", or a placeholder
// while the timestamp is unset.
func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return PendingTimeMarker
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("15:04")
}
