package rpc

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"rfqsettle/core/events"
	"rfqsettle/core/types"
)

type payload struct{ evt *types.Event }

func (p payload) EventType() string   { return p.evt.Type }
func (p payload) Event() *types.Event { return p.evt }

func rfqEvent(typ string, id types.Address) payload {
	return payload{evt: &types.Event{Type: typ, Attributes: map[string]string{"rfq": id.Hex()}}}
}

func TestEventHubBacklogFromCursor(t *testing.T) {
	hub := NewEventHub()
	hub.Emit(rfqEvent("rfq.created", addr(1)))
	hub.Emit(events.Transfer{Asset: usdc, Amount: 5})
	hub.Emit(rfqEvent("rfq.opened", addr(1)))

	_, cancel, backlog := hub.Subscribe(context.Background(), "")
	cancel()
	if len(backlog) != 2 {
		t.Fatalf("expected transfers to be skipped, got %d updates", len(backlog))
	}
	if backlog[0].Cursor != "1" || backlog[1].Type != "rfq.opened" {
		t.Fatalf("unexpected backlog %+v", backlog)
	}

	_, cancel, backlog = hub.Subscribe(context.Background(), "1")
	cancel()
	if len(backlog) != 1 || backlog[0].Sequence != 2 {
		t.Fatalf("cursor not honoured: %+v", backlog)
	}
}

func TestEventHubDeliversLiveUpdates(t *testing.T) {
	hub := NewEventHub()
	ctx, stop := context.WithCancel(context.Background())
	updates, _, _ := hub.Subscribe(ctx, "")
	hub.Emit(rfqEvent("rfq.settled", addr(2)))

	select {
	case update := <-updates:
		if update.Type != "rfq.settled" || update.RFQ != addr(2).Hex() {
			t.Fatalf("unexpected update %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatalf("no update delivered")
	}

	stop()
	select {
	case _, ok := <-updates:
		if ok {
			t.Fatalf("expected channel to close after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not released")
	}
}

func TestEventHubWebsocketFilter(t *testing.T) {
	hub := NewEventHub()
	hub.Emit(rfqEvent("rfq.created", addr(1)))
	hub.Emit(rfqEvent("rfq.created", addr(2)))

	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?rfq=" + addr(2).Hex()
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var update StreamUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if update.RFQ != addr(2).Hex() || update.Sequence != 2 {
		t.Fatalf("filter not applied: %+v", update)
	}
}
