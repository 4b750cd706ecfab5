package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

// Message types pushed to clients
const (
	MessageRideStatus    = "ride_status"
	MessageRideRequested = "ride_requested"
	MessagePong          = "pong"
	MessageError         = "error"
)

// Hub maintains active client connections indexed by user
type Hub struct {
	users      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *logger.Logger
}

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewHub creates a new WebSocket hub
func NewHub(logger *logger.Logger) *Hub {
	return &Hub{
		users:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop; it returns after Stop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			set, ok := h.users[client.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				h.users[client.UserID] = set
			}
			set[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Info("Client registered",
				logger.String("client_id", client.ID),
				logger.String("user_id", client.UserID),
				logger.String("user_type", client.UserType),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()

		case <-h.done:
			h.mu.Lock()
			for _, set := range h.users {
				for client := range set {
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every connection and ends Run
func (h *Hub) Stop() {
	close(h.done)
}

// Register registers a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister unregisters a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser sends a message to every connection of one user
func (h *Hub) SendToUser(userID string, message Message) int {
	data, ok := h.encode(message)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for client := range h.users[userID] {
		if h.trySend(client, data) {
			sent++
		}
	}
	return sent
}

// BroadcastToType sends a message to all clients of a specific type
func (h *Hub) BroadcastToType(userType string, message Message) int {
	return h.broadcastWhere(message, func(c *Client) bool { return c.UserType == userType })
}

// BroadcastToRide sends a message to every client subscribed to rideID
func (h *Hub) BroadcastToRide(rideID string, message Message) int {
	return h.broadcastWhere(message, func(c *Client) bool { return c.Watching(rideID) })
}

// sendToClient delivers a reply to one connection if it is still registered
func (h *Hub) sendToClient(client *Client, message Message) bool {
	data, ok := h.encode(message)
	if !ok {
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.users[client.UserID][client]; !ok {
		return false
	}
	return h.trySend(client, data)
}

// GetActiveConnections returns the number of active connections
func (h *Hub) GetActiveConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.users {
		n += len(set)
	}
	return n
}

// GetClientsByUserType counts connections whose user has the given role
func (h *Hub) GetClientsByUserType(userType string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, set := range h.users {
		for client := range set {
			if client.UserType == userType {
				n++
			}
		}
	}
	return n
}

func (h *Hub) broadcastWhere(message Message, match func(*Client) bool) int {
	data, ok := h.encode(message)
	if !ok {
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, set := range h.users {
		for client := range set {
			if match(client) && h.trySend(client, data) {
				sent++
			}
		}
	}
	return sent
}

func (h *Hub) encode(message Message) ([]byte, bool) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to encode message", logger.String("type", message.Type), logger.Err(err))
		return nil, false
	}
	return data, true
}

// trySend never blocks; a full buffer drops the message for that client
func (h *Hub) trySend(client *Client, data []byte) bool {
	select {
	case client.Send <- data:
		return true
	default:
		h.logger.Warn("Client send buffer full",
			logger.String("user_id", client.UserID),
			logger.String("client_id", client.ID),
		)
		return false
	}
}

func (h *Hub) removeLocked(client *Client) {
	set, ok := h.users[client.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.users, client.UserID)
	}
	close(client.Send)
	h.logger.Info("Client unregistered",
		logger.String("client_id", client.ID),
		logger.String("user_id", client.UserID),
	)
}
