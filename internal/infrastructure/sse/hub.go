// Package sse keeps live Server-Sent Events subscriptions and pushes events
// to the users they are addressed to.
package sse

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/event"
)

// Client is one open SSE connection.
type Client struct {
	ClientID string
	UserID   uuid.UUID
	// All receives every event regardless of recipients (admin consoles).
	All         bool
	ConnectedAt time.Time
	Messages    chan event.Event
}

// Hub manages SSE clients. It implements the event bus sink contract.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	buffer  int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 100
	}
	return &Hub{
		clients: make(map[string]*Client),
		buffer:  buffer,
	}
}

// Register opens a subscription for userID.
func (h *Hub) Register(userID uuid.UUID, all bool) *Client {
	c := &Client{
		ClientID:    uuid.NewString(),
		UserID:      userID,
		All:         all,
		ConnectedAt: time.Now().UTC(),
		Messages:    make(chan event.Event, h.buffer),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ClientID] = c
	return c
}

func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[clientID]; ok {
		close(c.Messages)
		delete(h.clients, clientID)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Name() string { return "sse" }

// Deliver pushes e to every connection of its recipients. Slow clients miss
// events rather than stalling the bus.
func (h *Hub) Deliver(_ context.Context, e event.Event) error {
	recipients := make(map[uuid.UUID]struct{}, len(e.Recipients))
	for _, id := range e.Recipients {
		recipients[id] = struct{}{}
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if _, ok := recipients[c.UserID]; ok || c.All {
			trySend(c, e)
		}
	}
	return nil
}

func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.Messages)
		delete(h.clients, id)
	}
}

func trySend(c *Client, e event.Event) bool {
	select {
	case c.Messages <- e:
		return true
	default:
		return false
	}
}
