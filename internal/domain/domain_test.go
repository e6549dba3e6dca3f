package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterpartResolvesTheOtherParticipant(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	conv := Conversation{Participants: CanonicalPair(a, b)}

	other, ok := conv.Counterpart(a)
	require.True(t, ok)
	assert.Equal(t, b, other)

	other, ok = conv.Counterpart(b)
	require.True(t, ok)
	assert.Equal(t, a, other)

	_, ok = conv.Counterpart(uuid.New())
	assert.False(t, ok)
}

func TestCanonicalPairIsOrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, CanonicalPair(a, b), CanonicalPair(b, a))

	pair := CanonicalPair(a, b)
	assert.LessOrEqual(t, pair[0].String(), pair[1].String())
}

func TestNewMessagePreview(t *testing.T) {
	url := "https://cdn.example/chat_1/photo.png"

	tests := []struct {
		name  string
		msg   NewMessage
		want  string
		empty bool
	}{
		{name: "text", msg: NewMessage{Text: "hello"}, want: "hello"},
		{name: "trimmed text", msg: NewMessage{Text: "  hi  "}, want: "hi"},
		{name: "attachment only", msg: NewMessage{AttachmentURL: &url}, want: PhotoPreview},
		{name: "text and attachment", msg: NewMessage{Text: "look", AttachmentURL: &url}, want: PhotoPreview},
		{name: "blank", msg: NewMessage{Text: "   "}, want: "", empty: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Preview())
			assert.Equal(t, tt.empty, tt.msg.Empty())
		})
	}
}

func TestQueryValidateAndTopic(t *testing.T) {
	userID, convID := uuid.New(), uuid.New()

	require.NoError(t, ConversationsQuery(userID).Validate())
	require.NoError(t, MessagesQuery(convID).Validate())
	assert.Error(t, Query{Kind: QueryConversation}.Validate())
	assert.Error(t, Query{Kind: "rooms"}.Validate())

	assert.Equal(t, "conversation:"+convID.String(), ConversationQuery(convID).Topic())
	assert.NotEqual(t, ConversationQuery(convID).Topic(), MessagesQuery(convID).Topic())
}

func TestUserInitial(t *testing.T) {
	assert.Equal(t, "A", (&User{Username: "anna"}).Initial())
	assert.Equal(t, "Ж", (&User{Username: "жора"}).Initial())
	assert.Equal(t, "?", (&User{}).Initial())
}
