package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dentlab/api/internal/events"
	"github.com/google/uuid"
)

var errHubStopped = errors.New("websocket hub stopped")

// adminRoom holds admin connections, which receive every clinic's events.
var adminRoom = uuid.Nil

// routedEvent pairs an encoded event with the clinic it belongs to.
type routedEvent struct {
	clinicID uuid.UUID
	message  []byte
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by clinic ID; admins live in adminRoom
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan routedEvent

	// Closed when Run returns
	done chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan routedEvent, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled.
// This should be called as a goroutine: go hub.Run(ctx)
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.room] == nil {
				h.rooms[client.room] = make(map[*Client]bool)
			}
			h.rooms[client.room][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.mu.Lock()
			h.deliver(ev.clinicID, ev.message)
			if ev.clinicID != adminRoom {
				h.deliver(adminRoom, ev.message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver sends message to one room. Caller holds mu.
func (h *Hub) deliver(room uuid.UUID, message []byte) {
	for client := range h.rooms[room] {
		select {
		case client.send <- message:
		default:
			// Slow consumer; drop the connection rather than block the hub.
			h.remove(client)
		}
	}
}

// remove closes and forgets a client. Caller holds mu.
func (h *Hub) remove(client *Client) {
	clients, ok := h.rooms[client.room]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.room)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.remove(client)
		}
	}
}

// Publish queues an order event for the owning clinic's room and the admin room.
func (h *Hub) Publish(ctx context.Context, e events.Event) error {
	message, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	select {
	case h.broadcast <- routedEvent{clinicID: e.ClinicID, message: message}:
		return nil
	case <-h.done:
		return errHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
