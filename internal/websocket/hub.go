package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/dukerupert/habits/internal/model"
)

const (
	EventPublished   = "habit_published"
	EventUpdated     = "habit_updated"
	EventUnpublished = "habit_unpublished"
	EventSnapshot    = "snapshot"
)

// Event is one change to the public habit feed.
type Event struct {
	Type    string              `json:"type"`
	HabitID int64               `json:"habit_id,omitempty"`
	Habit   *model.PublicHabit  `json:"habit,omitempty"`
	Habits  []model.PublicHabit `json:"habits,omitempty"`
}

// PublicChange describes how a write moved a habit in or out of the feed.
// It returns false when nothing visible changed.
func PublicChange(before, after *model.Habit) (Event, bool) {
	wasPublic := before != nil && before.IsPublic
	isPublic := after != nil && after.IsPublic

	switch {
	case isPublic && !wasPublic:
		p := after.Public()
		return Event{Type: EventPublished, HabitID: after.ID, Habit: &p}, true
	case isPublic && wasPublic:
		p := after.Public()
		if p == before.Public() {
			return Event{}, false
		}
		return Event{Type: EventUpdated, HabitID: after.ID, Habit: &p}, true
	case wasPublic:
		return Event{Type: EventUnpublished, HabitID: before.ID}, true
	}
	return Event{}, false
}

// Hub fans public feed events out to every connected client.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client and closes its send channel. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast queues ev for every client. Clients with a full buffer miss it.
func (h *Hub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshal event", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Debug("client buffer full, event dropped", "type", ev.Type)
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
