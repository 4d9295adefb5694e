package websocket

import (
	"encoding/json"
)

// Message types exchanged with clients
const (
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypePing         = "ping"
	TypePong         = "pong"
	TypeTransactions = "transactions"
	TypeSuccess      = "success"
	TypeError        = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribeRequest names the wallet address a client wants pushes for
type SubscribeRequest struct {
	Address string `json:"address"`
}

// TransactionsEvent carries hashes newly indexed for an address
type TransactionsEvent struct {
	Address string   `json:"address"`
	Hashes  []string `json:"hashes"`
}

// ErrorMessage represents an error message
type ErrorMessage struct {
	Error string `json:"error"`
}

// SuccessMessage represents a success message
type SuccessMessage struct {
	Message string `json:"message"`
}
