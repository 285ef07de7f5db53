// Package realtime fans newly stored chat messages out to the websocket
// clients currently viewing each room.
package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client represents a single connected chat viewer.
type Client struct {
	Conn   *websocket.Conn
	RoomID string
	UserID string
	Send   chan []byte
}

func NewClient(conn *websocket.Conn, roomID, userID string) *Client {
	return &Client{Conn: conn, RoomID: roomID, UserID: userID, Send: make(chan []byte, 32)}
}

type roomEvent struct {
	roomID  string
	exclude string
	payload []byte
}

// Hub manages all connected chat clients grouped by room and broadcasts
// stored messages to them. Register/unregister/broadcast are serialized
// through the Run loop.
type Hub struct {
	roomClients map[string]map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	broadcast   chan roomEvent
	mu          sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		roomClients: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan roomEvent, 64),
	}
}

// Run starts the hub's main loop. This should be run as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if _, ok := h.roomClients[client.RoomID]; !ok {
				h.roomClients[client.RoomID] = make(map[*Client]bool)
			}
			h.roomClients[client.RoomID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.roomClients[client.RoomID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.roomClients, client.RoomID)
					}
				}
			}
			h.mu.Unlock()

		case ev := <-h.broadcast:
			h.deliver(ev)
		}
	}
}

// Register queues a client for registration.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister queues a client for unregistration.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Publish sends a stored message to every open viewer of the room except
// the excluded sender, whose copy is already rendered locally. Implements
// services.MessageFeed.
func (h *Hub) Publish(roomID string, payload []byte, excludeUserID string) {
	h.broadcast <- roomEvent{roomID: roomID, exclude: excludeUserID, payload: payload}
}

func (h *Hub) deliver(ev roomEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.roomClients[ev.roomID] {
		if client.UserID == ev.exclude {
			continue
		}
		select {
		case client.Send <- ev.payload:
		default:
			// slow consumer; drop rather than stall the room
			log.Printf("realtime: dropping message for slow client in room %s", ev.roomID)
		}
	}
}

// WritePump drains the client's send queue onto the websocket connection.
// It returns when the queue is closed or the connection fails.
func (c *Client) WritePump() {
	defer func() { _ = c.Conn.Close() }()
	for payload := range c.Send {
		_ = c.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump discards inbound frames (sends travel over the REST path) and
// unregisters the client when the connection drops.
func (c *Client) ReadPump(h *Hub) {
	defer func() {
		h.Unregister(c)
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(4096)
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
