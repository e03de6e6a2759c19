package web

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"xplane-position/internal/position"
)

// Event is one websocket message. Type is "snapshot" for the first message
// on a connection, then "status" or "position".
type Event struct {
	Type     string                `json:"type"`
	Status   *position.Status      `json:"status,omitempty"`
	Position *position.Coordinates `json:"position,omitempty"`
	Accuracy *position.Accuracy    `json:"accuracy,omitempty"`
	Snapshot *position.Snapshot    `json:"snapshot,omitempty"`
	Stamp    int64                 `json:"stamp"`
}

// Hub fans provider notifications out to websocket clients. Slow clients
// miss messages rather than stall the provider.
type Hub struct {
	view     ProviderView
	upgrader websocket.Upgrader
	now      func() time.Time

	mu     sync.RWMutex
	subs   map[int]chan []byte
	nextID int
}

const (
	subscriberBuffer = 64
	writeTimeout     = 5 * time.Second
)

func NewHub(view ProviderView) *Hub {
	return &Hub{
		view: view,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:  time.Now,
		subs: make(map[int]chan []byte),
	}
}

func (h *Hub) Subscribe(buffer int) (int, <-chan []byte) {
	if buffer <= 0 {
		buffer = subscriberBuffer
	}
	ch := make(chan []byte, buffer)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.mu.Unlock()
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	ch, ok := h.subs[id]
	delete(h.subs, id)
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) StatusChanged(s position.Status) {
	h.broadcast(Event{Type: "status", Status: &s})
}

func (h *Hub) PositionChanged(pos position.Coordinates, acc position.Accuracy) {
	h.broadcast(Event{Type: "position", Position: &pos, Accuracy: &acc})
}

func (h *Hub) broadcast(ev Event) {
	ev.Stamp = h.now().UnixMilli()
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- b:
		default:
			// Client too slow, skip
		}
	}
}

func (h *Hub) snapshotEvent() ([]byte, error) {
	now := h.now()
	snap := h.view.Snapshot(now.UTC())
	return json.Marshal(Event{Type: "snapshot", Snapshot: &snap, Stamp: now.UnixMilli()})
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	id, ch := h.Subscribe(subscriberBuffer)
	log.Printf("ws client connected id=%d total=%d", id, h.Clients())

	first, err := h.snapshotEvent()
	if err != nil {
		h.Unsubscribe(id)
		_ = conn.Close()
		return
	}

	// Writer goroutine: the only writer on conn.
	go func() {
		defer conn.Close()
		msgs := [][]byte{first}
		for {
			for _, m := range msgs {
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, m); err != nil {
					h.Unsubscribe(id)
					return
				}
			}
			m, ok := <-ch
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			msgs = [][]byte{m}
		}
	}()

	// Reader: only detects the client going away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.Unsubscribe(id)
	log.Printf("ws client disconnected id=%d total=%d", id, h.Clients())
}
