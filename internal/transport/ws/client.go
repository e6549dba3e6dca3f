package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/domain"
	"github.com/vedran77/relay/internal/service"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait       = 10 * time.Second
	pingInterval    = 30 * time.Second
	snapshotTimeout = 10 * time.Second
	maxMessageSize  = 4096
	sendBufSize     = 64
)

type subscription struct {
	query domain.Query
	topic string
	seq   uint64
}

// Client represents a single WebSocket connection and its live queries.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	log    zerolog.Logger

	mu      sync.Mutex
	subs    map[string]*subscription
	pending map[string]struct{}
	wake    chan struct{}

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		log:     hub.log.With().Stringer("user_id", userID).Logger(),
		subs:    make(map[string]*subscription),
		pending: make(map[string]struct{}),
		wake:    make(chan struct{}, 1),
		send:    make(chan []byte, sendBufSize),
		done:    make(chan struct{}),
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump reads events from the WebSocket until the connection drops.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				c.log.Debug().Msg("ws: client disconnected")
			} else {
				c.log.Warn().Err(err).Msg("ws: read error")
			}
			return
		}

		c.handleEvent(ctx, &event)
	}
}

// WritePump writes queued events to the WebSocket and keeps it alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Warn().Err(err).Msg("ws: write error")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Warn().Err(err).Msg("ws: ping error")
				return
			}

		case <-c.done:
			return
		}
	}
}

// SnapshotPump recomputes snapshots for subscriptions marked pending. A
// single pump per connection keeps each subscription's snapshots in order.
func (c *Client) SnapshotPump() {
	for {
		select {
		case <-c.done:
			return
		case <-c.wake:
		}

		for _, subID := range c.takePending() {
			c.deliver(subID)
		}
	}
}

func (c *Client) handleEvent(ctx context.Context, event *Event) {
	switch event.Type {
	case EventTypeSubscribe:
		var p SubscribePayload
		if event.SubID == "" || json.Unmarshal(event.Payload, &p) != nil {
			c.sendError(event.SubID, "INVALID_PAYLOAD", "invalid subscribe payload")
			return
		}

		authCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		err := c.hub.source.Authorize(authCtx, c.userID, p.Query)
		cancel()
		if err != nil {
			code, msg := errorCode(err)
			if code == "INTERNAL" {
				c.log.Error().Err(err).Str("sub_id", event.SubID).Msg("ws: authorize subscription")
			}
			c.sendError(event.SubID, code, msg)
			return
		}

		c.mu.Lock()
		// Re-subscribing under the same id restarts its sequence.
		c.subs[event.SubID] = &subscription{query: p.Query, topic: p.Query.Topic()}
		c.pending[event.SubID] = struct{}{}
		c.mu.Unlock()
		c.signal()
		c.log.Debug().Str("sub_id", event.SubID).Str("topic", p.Query.Topic()).Msg("ws: subscribed")

	case EventTypeUnsubscribe:
		c.mu.Lock()
		delete(c.subs, event.SubID)
		delete(c.pending, event.SubID)
		c.mu.Unlock()
		c.log.Debug().Str("sub_id", event.SubID).Msg("ws: unsubscribed")

	case EventTypePing:
		c.sendEvent(EventTypePong, "", nil)

	default:
		c.sendError(event.SubID, "UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

// topicChanged is called from the hub loop.
func (c *Client) topicChanged(topic string) {
	c.mu.Lock()
	marked := false
	for id, sub := range c.subs {
		if sub.topic == topic {
			c.pending[id] = struct{}{}
			marked = true
		}
	}
	c.mu.Unlock()

	if marked {
		c.signal()
	}
}

func (c *Client) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Client) takePending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	clear(c.pending)
	return ids
}

func (c *Client) deliver(subID string) {
	c.mu.Lock()
	sub, ok := c.subs[subID]
	c.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	snap, err := c.hub.source.Snapshot(ctx, c.userID, sub.query)
	cancel()
	if err != nil {
		code, msg := errorCode(err)
		if code == "INTERNAL" {
			c.log.Error().Err(err).Str("sub_id", subID).Msg("ws: snapshot")
			c.sendError(subID, code, msg)
			return
		}
		// Access is gone, so the subscription ends.
		c.mu.Lock()
		if c.subs[subID] == sub {
			delete(c.subs, subID)
		}
		c.mu.Unlock()
		c.sendError(subID, code, msg)
		return
	}

	c.mu.Lock()
	if c.subs[subID] != sub {
		c.mu.Unlock()
		return
	}
	sub.seq++
	snap.Seq = sub.seq
	c.mu.Unlock()

	c.sendEvent(EventTypeSnapshot, subID, snap)
}

// sendEvent queues an event. It waits for room in the buffer rather than
// dropping, since a lost snapshot would leave the subscriber stale.
func (c *Client) sendEvent(eventType, subID string, payload any) {
	evt, err := NewEvent(eventType, subID, payload)
	if err != nil {
		c.log.Error().Err(err).Str("type", eventType).Msg("ws: encode event")
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		c.log.Error().Err(err).Str("type", eventType).Msg("ws: encode event")
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	}
}

func (c *Client) sendError(subID, code, message string) {
	c.sendEvent(EventTypeError, subID, ErrorPayload{Code: code, Message: message})
}

func errorCode(err error) (code, message string) {
	switch {
	case errors.Is(err, service.ErrUnsupportedQuery):
		return "INVALID_QUERY", err.Error()
	case errors.Is(err, service.ErrNotParticipant):
		return "FORBIDDEN", err.Error()
	case errors.Is(err, service.ErrConversationNotFound):
		return "NOT_FOUND", err.Error()
	}
	return "INTERNAL", "Something went wrong"
}
