package kds

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-table-cart/events"
	"github.com/yeremiapane/restaurant-table-cart/utils"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Hub holds the connected staff screens (chef, staff, admin) keyed by role.
type Hub struct {
	clients map[Conn]string
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[Conn]string)}
}

var defaultHub = NewHub()

// Default returns the process-wide hub used by the websocket endpoint.
func Default() *Hub {
	return defaultHub
}

// RegisterClient -> menambahkan connection ke set dengan role
func (h *Hub) RegisterClient(conn Conn, role string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = role
}

// UnregisterClient -> melepaskan connection
func (h *Hub) UnregisterClient(conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Publish implements events.Publisher so lifecycle events reach staff screens.
// Chefs only receive events that concern the kitchen.
func (h *Hub) Publish(_ context.Context, event events.Event) error {
	h.broadcast(Message{Event: event.Type, Data: event}, func(role string) bool {
		if role != "chef" {
			return true
		}
		return event.Type == events.OrderPlaced || event.Type == events.OrderUpdated || event.Type == events.OrderItemMarked
	})
	return nil
}

func (h *Hub) broadcast(msg Message, want func(role string) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling message: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, role := range h.clients {
		if !want(role) {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithField("role", role).Printf("Error sending message to client: %v", err)
			delete(h.clients, conn)
			conn.Close()
		}
	}
}
