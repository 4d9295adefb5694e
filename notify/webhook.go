// Package notify delivers newly indexed transactions to webhook endpoints.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// EventTransactions is the event type of a discovery notification
const EventTransactions = "transactions"

// DefaultSignatureHeader carries the HMAC-SHA256 of the body, hex encoded
// with a "sha256=" prefix
const DefaultSignatureHeader = "X-Signature-256"

// Endpoint is one webhook receiver
type Endpoint struct {
	URL     string
	Secret  string
	Headers map[string]string
}

// Config holds webhook delivery configuration
type Config struct {
	Endpoints []Endpoint

	// Timeout bounds a single HTTP attempt
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first one
	MaxRetries int

	// RetryDelay is doubled after every failed attempt
	RetryDelay time.Duration

	// MaxConcurrent bounds parallel deliveries; QueueSize bounds waiting ones
	MaxConcurrent int
	QueueSize     int

	SignatureHeader string
}

// Validate checks the endpoints and fills defaults
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return errors.New("at least one webhook endpoint is required")
	}
	for _, ep := range c.Endpoints {
		u, err := url.Parse(ep.URL)
		if err != nil {
			return fmt.Errorf("invalid webhook URL %q: %w", ep.URL, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("webhook URL %q must use http or https", ep.URL)
		}
		if u.Host == "" {
			return fmt.Errorf("webhook URL %q has no host", ep.URL)
		}
	}
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}

	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.SignatureHeader == "" {
		c.SignatureHeader = DefaultSignatureHeader
	}
	return nil
}

// Payload is the JSON body posted to every endpoint
type Payload struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Timestamp string    `json:"timestamp"`
	Data      Discovery `json:"data"`
}

// Discovery lists hashes newly indexed for one address
type Discovery struct {
	Address string   `json:"address"`
	Hashes  []string `json:"hashes"`
}

// Webhook posts discovery notifications in the background
type Webhook struct {
	config  *Config
	client  *http.Client
	pool    pond.Pool
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewWebhook validates cfg and starts the delivery pool
func NewWebhook(cfg *Config, logger *zap.Logger) (*Webhook, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Webhook{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		pool:   pond.NewPool(cfg.MaxConcurrent, pond.WithQueueSize(cfg.QueueSize), pond.WithNonBlocking(true)),
		logger: logger,
		now:    time.Now,
	}, nil
}

// SetMetrics attaches delivery metrics
func (w *Webhook) SetMetrics(m *Metrics) {
	w.metrics = m
}

// Notify queues one delivery per endpoint and returns immediately. It has
// the signature of a wallet discovery handler. Deliveries are dropped when
// the queue is full.
func (w *Webhook) Notify(address string, hashes []string) {
	if len(hashes) == 0 {
		return
	}

	payload := Payload{
		ID:        eventID(address, hashes),
		EventType: EventTransactions,
		Timestamp: w.now().UTC().Format(time.RFC3339),
		Data:      Discovery{Address: address, Hashes: hashes},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		w.logger.Error("failed to marshal webhook payload", zap.Error(err))
		return
	}

	for _, ep := range w.config.Endpoints {
		err := w.pool.Go(func() {
			w.deliver(context.Background(), ep, payload.ID, body)
		})
		if err != nil {
			w.metrics.record(resultDropped)
			w.logger.Warn("webhook delivery dropped",
				zap.String("url", ep.URL),
				zap.String("address", address),
				zap.Error(err))
		}
	}
}

// Close stops accepting notifications and waits for queued deliveries
func (w *Webhook) Close() {
	w.pool.StopAndWait()
	w.client.CloseIdleConnections()
}

func (w *Webhook) deliver(ctx context.Context, ep Endpoint, id string, body []byte) {
	logger := w.logger.With(zap.String("url", ep.URL), zap.String("id", id))
	delay := w.config.RetryDelay

	for attempt := 0; ; attempt++ {
		err := w.post(ctx, ep, id, body)
		if err == nil {
			w.metrics.record(resultDelivered)
			logger.Debug("webhook delivered", zap.Int("attempt", attempt+1))
			return
		}
		if attempt >= w.config.MaxRetries {
			w.metrics.record(resultFailed)
			logger.Warn("webhook delivery failed", zap.Int("attempts", attempt+1), zap.Error(err))
			return
		}

		logger.Debug("webhook attempt failed, retrying", zap.Duration("delay", delay), zap.Error(err))
		select {
		case <-ctx.Done():
			w.metrics.record(resultFailed)
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (w *Webhook) post(ctx context.Context, ep Endpoint, id string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "wallet-indexer-webhook/1.0")
	req.Header.Set("X-Webhook-ID", id)
	req.Header.Set("X-Event-Type", EventTransactions)
	for key, value := range ep.Headers {
		req.Header.Set(key, value)
	}
	if ep.Secret != "" {
		req.Header.Set(w.config.SignatureHeader, "sha256="+Sign(body, ep.Secret))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 10*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of payload under secret
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value against payload. Receivers can use
// it to authenticate deliveries.
func Verify(payload []byte, signature, secret string) bool {
	expected, err := hex.DecodeString(strings.TrimPrefix(signature, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(expected, mac.Sum(nil))
}

// eventID is stable for the same discovery so receivers can deduplicate
func eventID(address string, hashes []string) string {
	h := sha256.New()
	h.Write([]byte(address))
	for _, hash := range hashes {
		h.Write([]byte{0})
		h.Write([]byte(hash))
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}
