// Package hub tracks live WebSocket clients grouped by the identity they
// are bound to. An identity is either an end user's id or the reserved
// admin identity; every broadcast to an identity reaches all of its
// currently connected clients.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/nayon117/custome-chat-server/internal/config"
	"github.com/nayon117/custome-chat-server/pkg/log"
)

type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // identity -> clientID -> client
	register   chan *Client
	unregister chan *Client
	deliver    chan *roomMessage
	mu         sync.RWMutex
	config     config.WebSocketConfig
}

type roomMessage struct {
	Identity string
	Message  []byte
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan *roomMessage, 256),
		config:     cfg,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case msg := <-h.deliver:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	room, ok := h.rooms[client.Identity]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[client.Identity] = room
	}
	room[client.ID] = client
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Str(log.FieldIdentity, client.Identity).Msg("client registered")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		if room, ok := h.rooms[client.Identity]; ok {
			delete(room, client.ID)
			if len(room) == 0 {
				delete(h.rooms, client.Identity)
			}
		}
		delete(h.clients, client.ID)
		client.closeSend()
	}
	h.mu.Unlock()

	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Str(log.FieldIdentity, client.Identity).Msg("client unregistered")
}

func (h *Hub) fanOut(msg *roomMessage) {
	h.mu.RLock()
	for _, client := range h.rooms[msg.Identity] {
		select {
		case client.Send <- msg.Message:
		default:
			// Slow or vanished client; drop it rather than failing
			// the whole delivery.
			go h.Unregister(client)
		}
	}
	h.mu.RUnlock()
}

// Register adds a client to the room of its bound identity.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from its room. No-op for unknown clients.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Deliver sends a message to every client bound to identity.
// Identities with no live clients are a silent no-op.
func (h *Hub) Deliver(identity string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.deliver <- &roomMessage{
		Identity: identity,
		Message:  data,
	}
	return nil
}

// ClientCount returns the number of live clients bound to identity.
func (h *Hub) ClientCount(identity string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[identity])
}
