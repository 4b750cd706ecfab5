package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// Inbound message types
const (
	ClientSubscribe   = "subscribe"
	ClientUnsubscribe = "unsubscribe"
	ClientPing        = "ping"
)

// Client is one authenticated WebSocket connection
type Client struct {
	ID       string
	UserID   string
	UserType string // "rider", "driver" or "admin"
	Hub      *Hub
	Conn     *websocket.Conn
	// Send is owned by the hub, which closes it on unregister.
	Send chan []byte

	mu      sync.RWMutex
	watched map[string]struct{}
	logger  *logger.Logger
}

// ClientMessage is a frame sent by the client
type ClientMessage struct {
	Type     string `json:"type"`
	EntityID string `json:"entity_id,omitempty"`
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, userID, userType string, log *logger.Logger) *Client {
	return &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		UserType: userType,
		Hub:      hub,
		Conn:     conn,
		Send:     make(chan []byte, sendBuffer),
		watched:  make(map[string]struct{}),
		logger:   log.With(logger.String("user_id", userID)),
	}
}

// ReadPump reads client frames until the connection fails, then unregisters
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error", logger.String("client_id", c.ID), logger.Err(err))
			}
			return
		}
		if reply := c.handleMessage(frame); reply != nil {
			c.Hub.sendToClient(c, *reply)
		}
	}
}

// WritePump writes one text frame per queued message and keeps the connection alive
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage applies one client frame and returns the reply, if any
func (c *Client) handleMessage(frame []byte) *Message {
	var msg ClientMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return &Message{Type: MessageError, Data: "malformed message"}
	}

	switch msg.Type {
	case ClientSubscribe:
		// parties already receive their own rides; watching others is for admins
		if c.UserType != "admin" {
			return &Message{Type: MessageError, Data: "subscribe is restricted to admins"}
		}
		if _, err := uuid.Parse(msg.EntityID); err != nil {
			return &Message{Type: MessageError, Data: "entity_id must be a ride id"}
		}
		c.Watch(msg.EntityID)
		return nil
	case ClientUnsubscribe:
		c.Unwatch(msg.EntityID)
		return nil
	case ClientPing:
		return &Message{Type: MessagePong}
	default:
		c.logger.Debug("Unknown client message", logger.String("type", msg.Type))
		return &Message{Type: MessageError, Data: "unknown message type"}
	}
}

// Watch adds rideID to the rides this client follows
func (c *Client) Watch(rideID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watched[rideID] = struct{}{}
}

// Unwatch stops following rideID
func (c *Client) Unwatch(rideID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.watched, rideID)
}

// Watching reports whether the client follows rideID
func (c *Client) Watching(rideID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.watched[rideID]
	return ok
}
