package ws

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/domain"
)

// SnapshotSource evaluates live queries on behalf of a user.
type SnapshotSource interface {
	Authorize(ctx context.Context, userID uuid.UUID, q domain.Query) error
	Snapshot(ctx context.Context, userID uuid.UUID, q domain.Query) (domain.Snapshot, error)
}

// Hub tracks connected clients and fans topic changes out to them. Each
// client recomputes the snapshots of its subscriptions on that topic.
type Hub struct {
	source SnapshotSource
	log    zerolog.Logger

	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	refresh    chan string
	stopped    chan struct{}
}

func NewHub(source SnapshotSource, log zerolog.Logger) *Hub {
	return &Hub{
		source:     source,
		log:        log.With().Str("component", "ws_hub").Logger(),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		refresh:    make(chan string, 256),
		stopped:    make(chan struct{}),
	}
}

// Run starts the Hub's main event loop and returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for client := range h.clients {
			client.close()
		}
		close(h.stopped)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.log.Debug().Stringer("user_id", client.userID).Int("clients", len(h.clients)).Msg("client connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.log.Debug().Stringer("user_id", client.userID).Int("clients", len(h.clients)).Msg("client disconnected")
			}

		case topic := <-h.refresh:
			for client := range h.clients {
				client.topicChanged(topic)
			}
		}
	}
}

// Publish marks topic as changed. It never blocks once the hub has stopped.
func (h *Hub) Publish(topic string) {
	select {
	case h.refresh <- topic:
	case <-h.stopped:
	}
}

func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.stopped:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}
