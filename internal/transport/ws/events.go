package ws

import (
	"encoding/json"
	"time"

	"github.com/vedran77/relay/internal/domain"
)

// Event types - Client → Server
const (
	EventTypeSubscribe   = "subscribe"
	EventTypeUnsubscribe = "unsubscribe"
	EventTypePing        = "ping"
)

// Event types - Server → Client
const (
	EventTypeSnapshot = "snapshot"
	EventTypePong     = "pong"
	EventTypeError    = "error"
)

// Event is the base envelope for all WebSocket messages. SubID names the
// client-chosen subscription an event belongs to.
type Event struct {
	Type      string          `json:"type"`
	SubID     string          `json:"sub_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type SubscribePayload struct {
	Query domain.Query `json:"query"`
}

// --- Server → Client payloads ---

// SnapshotPayload carries the full result set of a query. Seq starts at 1
// and grows by one per snapshot on the same sub_id.
type SnapshotPayload = domain.Snapshot

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType, subID string, payload any) (*Event, error) {
	evt := &Event{
		Type:      eventType,
		SubID:     subID,
		Timestamp: time.Now().Unix(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Payload = data
	}
	return evt, nil
}
