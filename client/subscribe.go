package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/internal/constants"
)

// NewBlockQuery is the event query for committed blocks
const NewBlockQuery = "tm.event='NewBlock'"

// SubscriberConfig configures a new block subscription
type SubscriberConfig struct {
	// Endpoint accepts ws(s):// or http(s):// node URLs
	Endpoint       string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	PongTimeout    time.Duration
	Dialer         *websocket.Dialer
	Metrics        *Metrics
	Logger         *zap.Logger
}

// Subscriber streams new block heights from the node websocket
type Subscriber struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	pongTimeout    time.Duration
	dialer         *websocket.Dialer
	metrics        *Metrics
	logger         *zap.Logger
}

type subscribeRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	ID      int               `json:"id"`
	Params  map[string]string `json:"params"`
}

type subscriptionMessage struct {
	Result *struct {
		Query string `json:"query"`
		Data  struct {
			Type  string `json:"type"`
			Value struct {
				Block *struct {
					Header Header `json:"header"`
				} `json:"block"`
			} `json:"value"`
		} `json:"data"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Data    string `json:"data"`
	} `json:"error"`
}

// NewSubscriber validates cfg and prepares a subscriber; no connection is
// made until Run
func NewSubscriber(cfg *SubscriberConfig) (*Subscriber, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	wsURL, err := WebSocketURL(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	s := &Subscriber{
		url:            wsURL,
		reconnectDelay: cfg.ReconnectDelay,
		pingInterval:   cfg.PingInterval,
		pongTimeout:    cfg.PongTimeout,
		dialer:         cfg.Dialer,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
	}
	if s.reconnectDelay <= 0 {
		s.reconnectDelay = constants.DefaultWSReconnectDelay
	}
	if s.pongTimeout <= 0 {
		s.pongTimeout = constants.DefaultWSPongTimeout
	}
	if s.pingInterval <= 0 {
		s.pingInterval = constants.DefaultWSPingInterval
	}
	if s.pingInterval >= s.pongTimeout {
		s.pingInterval = (s.pongTimeout * 9) / 10
	}
	if s.dialer == nil {
		s.dialer = websocket.DefaultDialer
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// URL returns the websocket URL the subscriber dials
func (s *Subscriber) URL() string {
	return s.url
}

// Run delivers each new block height on out until ctx is cancelled,
// reconnecting after connection failures
func (s *Subscriber) Run(ctx context.Context, out chan<- int64) error {
	for {
		err := s.runOnce(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.logger.Warn("block subscription interrupted, reconnecting",
			zap.String("url", s.url),
			zap.Duration("delay", s.reconnectDelay),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.Reconnects.Inc()
		}

		timer := time.NewTimer(s.reconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Subscriber) runOnce(ctx context.Context, out chan<- int64) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", s.url, err)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	req := subscribeRequest{
		JSONRPC: "2.0",
		Method:  "subscribe",
		ID:      1,
		Params:  map[string]string{"query": NewBlockQuery},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(constants.DefaultWSWriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send subscribe: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.pongTimeout))
	})
	go s.pingLoop(conn, done)

	s.logger.Info("subscribed to new blocks", zap.String("url", s.url))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		height, err := parseNewBlock(data)
		if err != nil {
			return err
		}
		if height == 0 {
			continue
		}

		if s.metrics != nil {
			s.metrics.SubscriptionEvents.Inc()
		}
		select {
		case out <- height:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Subscriber) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(constants.DefaultWSWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// parseNewBlock returns the height carried by a NewBlock notification, zero
// for acknowledgements and other messages
func parseNewBlock(data []byte) (int64, error) {
	var msg subscriptionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, &ProtocolError{Method: "subscribe", Err: err}
	}
	if msg.Error != nil {
		return 0, &ProtocolError{
			Method: "subscribe",
			Code:   msg.Error.Code,
			Err:    errors.New(strings.TrimSpace(msg.Error.Message + " " + msg.Error.Data)),
		}
	}
	if msg.Result == nil || msg.Result.Data.Value.Block == nil {
		return 0, nil
	}
	return int64(msg.Result.Data.Value.Block.Header.Height), nil
}

// WebSocketURL derives the node websocket URL from an RPC endpoint
func WebSocketURL(endpoint string) (string, error) {
	if endpoint == "" {
		return "", fmt.Errorf("endpoint cannot be empty")
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no host", endpoint)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/websocket"
	}
	return u.String(), nil
}
