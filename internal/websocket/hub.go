// Package websocket pushes visitor changes to every open reception screen so
// the active list stays in sync across desks without polling.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event reports a change to the visitor log. Active and Deleted are the
// counts right after the change; screens refetch lists themselves.
type Event struct {
	Type      string    `json:"type"`
	VisitorID int64     `json:"visitor_id,omitempty"`
	Active    int64     `json:"active"`
	Deleted   int64     `json:"deleted"`
	At        time.Time `json:"at"`
}

// VisitorEvent builds the event sent after a visitor mutation. action is one
// of created, checked_out, deleted, purged.
func VisitorEvent(action string, id, active, deleted int64) Event {
	return Event{
		Type:      "visitor_" + action,
		VisitorID: id,
		Active:    active,
		Deleted:   deleted,
		At:        time.Now().UTC(),
	}
}

// Hub tracks connected screens. The most recent event is replayed to a
// screen when it registers so its counters are filled immediately.
type Hub struct {
	mu      sync.Mutex
	screens map[*Client]struct{}
	last    []byte
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		screens: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.screens[c] = struct{}{}
	if h.last != nil {
		c.offer(h.last)
	}
	h.logger.Debug("screen connected", "remote", c.remote, "screens", len(h.screens))
}

// Unregister drops c and closes its queue. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.screens[c]; !ok {
		return
	}
	delete(h.screens, c)
	close(c.send)
	h.logger.Debug("screen disconnected",
		"remote", c.remote,
		"connected_for", time.Since(c.since).Round(time.Second),
		"screens", len(h.screens),
	)
}

// Broadcast queues ev for every screen. A screen with a full queue misses it.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("encode visitor event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = data
	dropped := 0
	for c := range h.screens {
		if !c.offer(data) {
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("screens missed visitor event", "type", ev.Type, "dropped", dropped)
	}
}

// CloseAll disconnects every screen. Used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.screens)
	for c := range h.screens {
		delete(h.screens, c)
		close(c.send)
	}
	if n > 0 {
		h.logger.Info("closed screen connections", "screens", n)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.screens)
}
