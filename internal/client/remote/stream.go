package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vedran77/relay/internal/client"
	"github.com/vedran77/relay/internal/domain"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	maxFrameSize = 4 << 20
	writeTimeout = 10 * time.Second
)

var ErrStreamClosed = errors.New("stream closed")

// event mirrors the server's WebSocket envelope.
type event struct {
	Type    string          `json:"type"`
	SubID   string          `json:"sub_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// stream multiplexes every live query of a session over one connection.
type stream struct {
	conn   *websocket.Conn
	log    zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	subs   map[string]*subscription
	nextID uint64
	err    error
}

func dialStream(ctx context.Context, url string, log zerolog.Logger) (*stream, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial stream: %w", err)
	}
	conn.SetReadLimit(maxFrameSize)

	readCtx, cancel := context.WithCancel(context.Background())
	s := &stream{
		conn:   conn,
		log:    log,
		cancel: cancel,
		done:   make(chan struct{}),
		subs:   make(map[string]*subscription),
	}
	go s.readLoop(readCtx)
	return s, nil
}

func (s *stream) subscribe(ctx context.Context, q domain.Query) (*subscription, error) {
	payload, err := json.Marshal(map[string]domain.Query{"query": q})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return nil, s.err
	}
	s.nextID++
	sub := &subscription{
		id:        "s" + strconv.FormatUint(s.nextID, 10),
		stream:    s,
		snapshots: make(chan domain.Snapshot, 1),
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	if err := s.write(ctx, event{Type: "subscribe", SubID: sub.id, Payload: payload}); err != nil {
		s.drop(sub.id)
		sub.finish(err)
		return nil, err
	}
	return sub, nil
}

func (s *stream) write(ctx context.Context, evt event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, evt)
}

func (s *stream) readLoop(ctx context.Context) {
	for {
		var evt event
		if err := wsjson.Read(ctx, s.conn, &evt); err != nil {
			s.close(fmt.Errorf("%w: %v", ErrStreamClosed, err))
			return
		}

		switch evt.Type {
		case "snapshot":
			var snap domain.Snapshot
			if err := json.Unmarshal(evt.Payload, &snap); err != nil {
				s.log.Warn().Err(err).Str("sub_id", evt.SubID).Msg("bad snapshot")
				continue
			}
			if sub := s.lookup(evt.SubID); sub != nil {
				sub.deliver(snap)
			}
		case "error":
			var p errorPayload
			_ = json.Unmarshal(evt.Payload, &p)
			if evt.SubID == "" {
				s.log.Warn().Str("code", p.Code).Str("message", p.Message).Msg("stream error")
				continue
			}
			if sub := s.drop(evt.SubID); sub != nil {
				sub.finish(streamError(p))
			}
		}
	}
}

func (s *stream) lookup(id string) *subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subs[id]
}

func (s *stream) drop(id string) *subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub := s.subs[id]
	delete(s.subs, id)
	return sub
}

func (s *stream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// close ends every subscription with err. Safe to call more than once.
func (s *stream) close(err error) {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return
	}
	s.err = err
	subs := s.subs
	s.subs = make(map[string]*subscription)
	close(s.done)
	s.mu.Unlock()

	s.cancel()
	s.conn.Close(websocket.StatusNormalClosure, "")
	for _, sub := range subs {
		sub.finish(err)
	}
}

func streamError(p errorPayload) error {
	apiErr := &APIError{Code: p.Code, Message: p.Message}
	switch p.Code {
	case "FORBIDDEN":
		apiErr.Status = http.StatusForbidden
	case "NOT_FOUND":
		apiErr.Status = http.StatusNotFound
	case "INVALID_QUERY":
		apiErr.Status = http.StatusBadRequest
	default:
		apiErr.Status = http.StatusInternalServerError
	}
	return apiErr
}

// subscription implements client.Subscription. Only the newest snapshot
// is buffered; consumers compare Seq so skipping older ones is safe.
type subscription struct {
	id        string
	stream    *stream
	snapshots chan domain.Snapshot

	mu   sync.Mutex
	done bool
	err  error
}

func (sub *subscription) Snapshots() <-chan domain.Snapshot {
	return sub.snapshots
}

func (sub *subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

func (sub *subscription) Cancel() {
	if sub.stream.drop(sub.id) == nil {
		sub.finish(nil)
		return
	}
	sub.finish(nil)

	if err := sub.stream.write(context.Background(), event{Type: "unsubscribe", SubID: sub.id}); err != nil {
		sub.stream.log.Debug().Err(err).Str("sub_id", sub.id).Msg("unsubscribe")
	}
}

func (sub *subscription) deliver(snap domain.Snapshot) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.done {
		return
	}
	select {
	case <-sub.snapshots:
	default:
	}
	sub.snapshots <- snap
}

func (sub *subscription) finish(err error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.done {
		return
	}
	sub.done = true
	sub.err = err
	close(sub.snapshots)
}

var _ client.Subscription = (*subscription)(nil)
