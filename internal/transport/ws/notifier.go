package ws

import (
	"github.com/google/uuid"
	"github.com/vedran77/relay/internal/domain"
)

// HubNotifier implements service.Notifier by publishing query topics.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyConversationChanged(conv *domain.Conversation) {
	n.hub.Publish(domain.ConversationTopic(conv.ID))
	for _, participant := range conv.Participants {
		n.hub.Publish(domain.ConversationsTopic(participant))
	}
}

func (n *HubNotifier) NotifyMessagesChanged(conversationID uuid.UUID) {
	n.hub.Publish(domain.MessagesTopic(conversationID))
}
