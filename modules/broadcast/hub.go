package broadcast

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the part of a WebSocket connection the hub writes to.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a connected WebSocket client.
type Client struct {
	ID       string
	UserID   string
	Username string
	Conn     Conn

	roomID string
	mu     sync.Mutex // guards roomID and writes to Conn
}

// RoomID returns the room the client currently receives events for.
func (c *Client) RoomID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID
}

func (c *Client) setRoom(roomID string) {
	c.mu.Lock()
	c.roomID = roomID
	c.mu.Unlock()
}

func (c *Client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

// Envelope is the frame pushed to WebSocket clients.
type Envelope struct {
	Type   string `json:"type"`
	RoomID string `json:"room_id,omitempty"`
	Data   any    `json:"data,omitempty"`
	Error  string `json:"error,omitempty"`
}

type subscription struct {
	clientID string
	roomID   string
}

// Hub manages WebSocket connections and message broadcasting.
type Hub struct {
	clients    map[string]*Client         // clientID -> Client
	rooms      map[string]map[string]bool // roomID -> set of clientIDs
	users      map[string]map[string]bool // userID -> set of clientIDs
	register   chan *Client
	unregister chan *Client
	subscribe  chan subscription
	broadcast  chan *Envelope
	closeUser  chan string
	done       chan struct{}
	mu         sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]bool),
		users:      make(map[string]map[string]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		subscribe:  make(chan subscription),
		broadcast:  make(chan *Envelope, 256),
		closeUser:  make(chan string),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case sub := <-h.subscribe:
			h.handleSubscribe(sub)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		case userID := <-h.closeUser:
			h.handleCloseUser(userID)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
	h.users = make(map[string]map[string]bool)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	if client.UserID != "" {
		if h.users[client.UserID] == nil {
			h.users[client.UserID] = make(map[string]bool)
		}
		h.users[client.UserID][client.ID] = true
	}
	log.Printf("[hub] Client %s (%s) registered", client.ID, client.Username)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	h.removeFromRoom(client)
	removeFromSet(h.users, client.UserID, client.ID)
	log.Printf("[hub] Client %s (%s) unregistered", client.ID, client.Username)
}

func (h *Hub) handleSubscribe(sub subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[sub.clientID]
	if !ok {
		return
	}
	h.removeFromRoom(client)
	client.setRoom(sub.roomID)
	if sub.roomID == "" {
		log.Printf("[hub] Client %s left its room", client.ID)
		return
	}
	if h.rooms[sub.roomID] == nil {
		h.rooms[sub.roomID] = make(map[string]bool)
	}
	h.rooms[sub.roomID][client.ID] = true
	log.Printf("[hub] Client %s joined room %s", client.ID, sub.roomID)
}

// removeFromRoom must be called with h.mu held.
func (h *Hub) removeFromRoom(client *Client) {
	removeFromSet(h.rooms, client.RoomID(), client.ID)
}

func removeFromSet(index map[string]map[string]bool, key, clientID string) {
	if key == "" || index[key] == nil {
		return
	}
	delete(index[key], clientID)
	if len(index[key]) == 0 {
		delete(index, key)
	}
}

func (h *Hub) handleBroadcast(msg *Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[hub] Failed to marshal broadcast message: %v", err)
		return
	}

	if msg.RoomID == "" {
		for _, client := range h.clients {
			h.sendToClient(client, data)
		}
		return
	}
	for clientID := range h.rooms[msg.RoomID] {
		if client, ok := h.clients[clientID]; ok {
			h.sendToClient(client, data)
		}
	}
}

func (h *Hub) handleCloseUser(userID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for clientID := range h.users[userID] {
		if client, ok := h.clients[clientID]; ok {
			_ = client.Conn.Close()
		}
	}
	log.Printf("[hub] Closed connections of user %s", userID)
}

func (h *Hub) sendToClient(client *Client, data []byte) {
	if err := client.write(data); err != nil {
		log.Printf("[hub] Failed to send to client %s: %v", client.ID, err)
	}
}

// Send writes one envelope to a single client.
func (h *Hub) Send(client *Client, msg Envelope) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return client.write(data)
}

// SendToUser writes one envelope to every connection of a user.
func (h *Hub) SendToUser(userID string, msg Envelope) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[hub] Failed to marshal user message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for clientID := range h.users[userID] {
		if client, ok := h.clients[clientID]; ok {
			h.sendToClient(client, data)
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// JoinRoom moves a client to a room. Events for its previous room stop.
func (h *Hub) JoinRoom(clientID, roomID string) {
	select {
	case h.subscribe <- subscription{clientID: clientID, roomID: roomID}:
	case <-h.done:
	}
}

// LeaveRoom stops room event delivery to a client.
func (h *Hub) LeaveRoom(clientID string) {
	h.JoinRoom(clientID, "")
}

// Broadcast sends a message to all clients in a room, or to every client
// when roomID is empty.
func (h *Hub) Broadcast(roomID, msgType string, payload any) {
	select {
	case h.broadcast <- &Envelope{Type: msgType, RoomID: roomID, Data: payload}:
	case <-h.done:
	}
}

// CloseUser closes every connection owned by a user.
func (h *Hub) CloseUser(userID string) {
	select {
	case h.closeUser <- userID:
	case <-h.done:
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of clients in a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// UserClientCount returns the number of connections a user holds.
func (h *Hub) UserClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}
