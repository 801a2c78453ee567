package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"rfqsettle/core/events"
	"rfqsettle/core/types"
)

const (
	streamHistoryLimit = 2048
	streamBuffer       = 32
	wsWriteTimeout     = 10 * time.Second
)

// StreamUpdate is one settlement event as delivered to stream subscribers.
type StreamUpdate struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Type       string            `json:"type"`
	RFQ        string            `json:"rfq,omitempty"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  int64             `json:"timestamp"`
}

func cloneUpdate(u StreamUpdate) StreamUpdate {
	out := u
	out.Attributes = make(map[string]string, len(u.Attributes))
	for k, v := range u.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// EventHub fans committed events out to websocket subscribers and keeps a
// bounded history so reconnecting clients can resume from a cursor. Ledger
// transfers are not streamed.
type EventHub struct {
	now func() time.Time

	mu      sync.Mutex
	seq     uint64
	nextID  uint64
	history []StreamUpdate
	subs    map[uint64]chan StreamUpdate
}

func NewEventHub() *EventHub {
	return &EventHub{now: time.Now, subs: make(map[uint64]chan StreamUpdate)}
}

// Emit implements events.Emitter.
func (h *EventHub) Emit(evt events.Event) {
	if h == nil || evt == nil || evt.EventType() == events.TypeTransfer {
		return
	}
	payload, ok := evt.(events.Payload)
	if !ok {
		return
	}
	data := payload.Event()
	if data == nil {
		return
	}
	h.publish(data)
}

func (h *EventHub) publish(evt *types.Event) {
	update := StreamUpdate{
		Type:       evt.Type,
		RFQ:        evt.Attributes["rfq"],
		Attributes: evt.Attributes,
		Timestamp:  h.now().Unix(),
	}

	h.mu.Lock()
	h.seq++
	update.Sequence = h.seq
	update.Cursor = strconv.FormatUint(update.Sequence, 10)
	stored := cloneUpdate(update)
	h.history = append(h.history, stored)
	if len(h.history) > streamHistoryLimit {
		excess := len(h.history) - streamHistoryLimit
		trimmed := make([]StreamUpdate, streamHistoryLimit)
		copy(trimmed, h.history[excess:])
		h.history = trimmed
	}
	subscribers := make([]chan StreamUpdate, 0, len(h.subs))
	for _, ch := range h.subs {
		subscribers = append(subscribers, ch)
	}
	h.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- cloneUpdate(stored):
		default:
		}
	}
}

// Subscribe registers a subscriber for events after cursor. The returned
// backlog holds retained events newer than the cursor; cancel releases the
// subscription and closes the channel.
func (h *EventHub) Subscribe(ctx context.Context, cursor string) (<-chan StreamUpdate, func(), []StreamUpdate) {
	updates := make(chan StreamUpdate, streamBuffer)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		if parsed, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			since = parsed
		}
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = updates
	backlog := make([]StreamUpdate, 0, len(h.history))
	for _, entry := range h.history {
		if entry.Sequence > since {
			backlog = append(backlog, cloneUpdate(entry))
		}
	}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
			h.mu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog
}

// ServeHTTP upgrades the request to a websocket and streams events. The
// optional rfq query parameter narrows the stream to one request and cursor
// resumes after a previously seen sequence.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	filter := ""
	if raw := strings.TrimSpace(r.URL.Query().Get("rfq")); raw != "" {
		id, err := types.ParseAddress(raw)
		if err != nil {
			http.Error(w, "invalid rfq", http.StatusBadRequest)
			return
		}
		filter = id.Hex()
	}
	cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")
	ctx := conn.CloseRead(r.Context())
	if err := h.stream(ctx, conn, cursor, filter); err != nil {
		if status := websocket.CloseStatus(err); status == -1 {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func (h *EventHub) stream(ctx context.Context, conn *websocket.Conn, cursor, filter string) error {
	updates, cancel, backlog := h.Subscribe(ctx, cursor)
	defer cancel()

	for _, update := range backlog {
		if filter != "" && update.RFQ != filter {
			continue
		}
		if err := writeUpdate(ctx, conn, update); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if filter != "" && update.RFQ != filter {
				continue
			}
			if err := writeUpdate(ctx, conn, update); err != nil {
				return err
			}
		}
	}
}

func writeUpdate(ctx context.Context, conn *websocket.Conn, update StreamUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
