package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks connected clients and fans address notifications out to the
// clients subscribed to that address
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	events     chan *TransactionsEvent

	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	logger *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan *TransactionsEvent, 256),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		logger:     logger,
	}
}

// Run serves the hub until Stop
func (h *Hub) Run() {
	defer close(h.stopped)
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", zap.Int("total_clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client unregistered", zap.Int("total_clients", n))

		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev *TransactionsEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}
	data, err := json.Marshal(Message{Type: TypeTransactions, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal message", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for c := range h.clients {
		if !c.IsSubscribed(ev.Address) {
			continue
		}
		select {
		case c.send <- data:
			sent++
		default:
			h.logger.Warn("client buffer full, closing connection", zap.String("address", ev.Address))
			close(c.send)
			delete(h.clients, c)
		}
	}

	h.logger.Debug("transactions pushed",
		zap.String("address", ev.Address),
		zap.Int("hashes", len(ev.Hashes)),
		zap.Int("recipients", sent))
}

// Notify queues hashes newly indexed for address. It never blocks; when
// the queue is full the notification is dropped.
func (h *Hub) Notify(address string, hashes []string) {
	ev := &TransactionsEvent{Address: address, Hashes: append([]string(nil), hashes...)}
	select {
	case h.events <- ev:
	case <-h.done:
	default:
		h.logger.Warn("event queue full, dropping notification", zap.String("address", address))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Stop closes every client connection and waits for Run to return
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
	<-h.stopped
	h.logger.Info("hub stopped")
}
