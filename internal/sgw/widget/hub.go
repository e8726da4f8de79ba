// Package widget serves the browser widget's long-lived pub/sub
// socket, keyed by a room identifier (the agent extension), per
// spec.md §4.4/§6. Grounded on the teacher's events.Publisher
// interface shape (services/signaling/events/publisher.go) for the
// publish-side contract, and on internal/ctl's client-side use of
// gobwas/ws for the wire protocol — here used server-side via
// ws.UpgradeHTTP, the same library's other half.
package widget

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Event is anything published to a room; it is JSON-encoded as-is.
type Event = any

// Hub fans out published events to every subscriber currently
// connected to a room.
type Hub struct {
	mu   sync.RWMutex
	rooms map[string]map[*subscriber]struct{}
}

type subscriber struct {
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*subscriber]struct{})}
}

// Publish marshals event and fans it out to every subscriber of room.
// Matches events.Publisher.PublishAsync's non-blocking, best-effort
// contract: a slow subscriber's channel being full drops the event for
// that subscriber rather than stalling the publisher.
func (h *Hub) Publish(room string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("[SGW] widget event marshal failed", "room", room, "error", err)
		return
	}

	h.mu.RLock()
	subs := h.rooms[room]
	targets := make([]*subscriber, 0, len(subs))
	for s := range subs {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		select {
		case s.send <- payload:
		default:
			slog.Warn("[SGW] widget subscriber slow, dropping event", "room", room)
		}
	}
}

// ServeHTTP upgrades the connection and registers it as a subscriber
// of the room named by the "room" query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		slog.Error("[SGW] widget upgrade failed", "room", room, "error", err)
		return
	}

	sub := &subscriber{send: make(chan []byte, 32)}
	h.register(room, sub)
	defer h.unregister(room, sub)
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := wsutil.ReadClientData(conn); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case payload := <-sub.send:
			if err := wsutil.WriteServerText(conn, payload); err != nil {
				return
			}
		}
	}
}

func (h *Hub) register(room string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*subscriber]struct{})
	}
	h.rooms[room][s] = struct{}{}
}

func (h *Hub) unregister(room string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[room]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
	}
}

// SubscriberCount reports how many sockets are subscribed across all
// rooms, for /metrics.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.rooms {
		n += len(subs)
	}
	return n
}
