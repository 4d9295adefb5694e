package websocket

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512

	// maxSubscriptions bounds the addresses one connection may follow
	maxSubscriptions = 64
)

// Client is one WebSocket connection and the addresses it follows
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu        sync.RWMutex
	addresses map[string]struct{}

	logger *zap.Logger
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, 256),
		addresses: make(map[string]struct{}),
		logger:    logger,
	}
}

// IsSubscribed reports whether the client follows address
func (c *Client) IsSubscribed(address string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.addresses[address]
	return ok
}

func (c *Client) subscribe(address string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.addresses[address]; !ok && len(c.addresses) >= maxSubscriptions {
		return false
	}
	c.addresses[address] = struct{}{}
	return true
}

func (c *Client) unsubscribe(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.addresses, address)
}

// ReadPump reads client requests until the connection fails
func (c *Client) ReadPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(message)
	}
}

// WritePump writes queued messages and keepalive pings
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg Message
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case TypeSubscribe, TypeUnsubscribe:
		var req SubscribeRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			c.sendError("invalid " + msg.Type + " request")
			return
		}
		address := strings.TrimSpace(req.Address)
		if address == "" {
			c.sendError("address is required")
			return
		}
		if msg.Type == TypeUnsubscribe {
			c.unsubscribe(address)
			c.sendSuccess("unsubscribed from " + address)
			return
		}
		if !c.subscribe(address) {
			c.sendError("too many subscriptions")
			return
		}
		c.sendSuccess("subscribed to " + address)
		c.logger.Debug("client subscribed", zap.String("address", address))
	case TypePing:
		c.sendMessage(Message{Type: TypePong})
	default:
		c.sendError("unknown message type: " + msg.Type)
	}
}

func (c *Client) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	// the hub owns c.send and may have closed it already
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("client send buffer full, dropping message")
	}
}

func (c *Client) sendError(errMsg string) {
	payload, _ := json.Marshal(ErrorMessage{Error: errMsg})
	c.sendMessage(Message{Type: TypeError, Payload: payload})
}

func (c *Client) sendSuccess(message string) {
	payload, _ := json.Marshal(SuccessMessage{Message: message})
	c.sendMessage(Message{Type: TypeSuccess, Payload: payload})
}
