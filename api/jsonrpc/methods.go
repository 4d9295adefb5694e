package jsonrpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/client"
	"github.com/0xmhha/wallet-indexer/codec"
	"github.com/0xmhha/wallet-indexer/fetch"
	"github.com/0xmhha/wallet-indexer/storage"
)

// Wallet is the indexer surface exposed over JSON-RPC
type Wallet interface {
	Scan(ctx context.Context, address string) (*fetch.ScanResult, error)
	Hashes(ctx context.Context, address string, limit int) ([]string, error)
	Details(ctx context.Context, address string, limit int) ([]fetch.TransactionRecord, error)
	History(ctx context.Context, address string, limit int) ([]fetch.TransactionRecord, *fetch.ScanResult, error)
	Broadcast(ctx context.Context, address string, tx []byte) (*client.BroadcastResult, error)
	Tracked() []string
	Track(address string)
	Untrack(address string)
}

// Handler handles JSON-RPC method calls
type Handler struct {
	wallet Wallet
	logger *zap.Logger
}

// NewHandler creates a new JSON-RPC handler
func NewHandler(wallet Wallet, logger *zap.Logger) *Handler {
	return &Handler{
		wallet: wallet,
		logger: logger,
	}
}

// HandleMethod handles a JSON-RPC method call
func (h *Handler) HandleMethod(ctx context.Context, method string, params json.RawMessage) (interface{}, *Error) {
	switch method {
	case "wallet_getTransactions":
		return h.getTransactions(ctx, params)
	case "wallet_getHashes":
		return h.getHashes(ctx, params)
	case "wallet_scan":
		return h.scan(ctx, params)
	case "wallet_broadcast":
		return h.broadcast(ctx, params)
	case "wallet_tracked":
		return TrackedResult{Addresses: h.wallet.Tracked()}, nil
	case "wallet_track":
		return h.track(params, true)
	case "wallet_untrack":
		return h.track(params, false)
	case "role_encodeChangeRole":
		return h.encodeChangeRole(params)
	case "role_decodeChangeRole":
		return h.decodeChangeRole(params)
	default:
		return nil, NewError(MethodNotFound, "method not found", method)
	}
}

// AccountParams addresses one wallet
type AccountParams struct {
	Address string `json:"address"`
	Limit   int    `json:"limit,omitempty"`
	// Scan defaults to true for wallet_getTransactions
	Scan *bool `json:"scan,omitempty"`
}

// TransactionsResult is returned by wallet_getTransactions
type TransactionsResult struct {
	Address      string                    `json:"address"`
	Transactions []fetch.TransactionRecord `json:"transactions"`
	Scan         *fetch.ScanResult         `json:"scan,omitempty"`
}

// HashesResult is returned by wallet_getHashes
type HashesResult struct {
	Address string   `json:"address"`
	Hashes  []string `json:"hashes"`
}

// TrackedResult is returned by the tracking methods
type TrackedResult struct {
	Addresses []string `json:"addresses"`
}

// BroadcastParams carries a signed transaction
type BroadcastParams struct {
	Address string `json:"address"`
	// Tx is the signed transaction in base64
	Tx string `json:"tx"`
}

// DecodeParams carries an encoded MsgChangeRole in hex or base64
type DecodeParams struct {
	Data string `json:"data"`
}

func parseAccount(params json.RawMessage) (*AccountParams, *Error) {
	var p AccountParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, "invalid params", err.Error())
	}
	p.Address = strings.TrimSpace(p.Address)
	if p.Address == "" {
		return nil, NewError(InvalidParams, "missing required parameter: address", nil)
	}
	if p.Limit < 0 {
		return nil, NewError(InvalidParams, "limit cannot be negative", nil)
	}
	return &p, nil
}

func (h *Handler) getTransactions(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	p, rpcErr := parseAccount(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	res := TransactionsResult{Address: p.Address}
	var err error
	if p.Scan == nil || *p.Scan {
		res.Transactions, res.Scan, err = h.wallet.History(ctx, p.Address, p.Limit)
	} else {
		res.Transactions, err = h.wallet.Details(ctx, p.Address, p.Limit)
	}
	if err != nil {
		return nil, h.mapError("failed to get transactions", p.Address, err)
	}
	return res, nil
}

func (h *Handler) getHashes(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	p, rpcErr := parseAccount(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	hashes, err := h.wallet.Hashes(ctx, p.Address, p.Limit)
	if err != nil {
		return nil, h.mapError("failed to read hashes", p.Address, err)
	}
	if hashes == nil {
		hashes = []string{}
	}
	return HashesResult{Address: p.Address, Hashes: hashes}, nil
}

func (h *Handler) scan(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	p, rpcErr := parseAccount(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	result, err := h.wallet.Scan(ctx, p.Address)
	if err != nil {
		return nil, h.mapError("scan failed", p.Address, err)
	}
	return result, nil
}

func (h *Handler) broadcast(ctx context.Context, params json.RawMessage) (interface{}, *Error) {
	var p BroadcastParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, "invalid params", err.Error())
	}
	if strings.TrimSpace(p.Address) == "" {
		return nil, NewError(InvalidParams, "missing required parameter: address", nil)
	}
	tx, err := base64.StdEncoding.DecodeString(p.Tx)
	if err != nil || len(tx) == 0 {
		return nil, NewError(InvalidParams, "tx must be non-empty base64", nil)
	}

	res, err := h.wallet.Broadcast(ctx, p.Address, tx)
	if err != nil {
		return nil, h.mapError("broadcast failed", p.Address, err)
	}
	return res, nil
}

func (h *Handler) track(params json.RawMessage, add bool) (interface{}, *Error) {
	p, rpcErr := parseAccount(params)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if add {
		h.wallet.Track(p.Address)
	} else {
		h.wallet.Untrack(p.Address)
	}
	return TrackedResult{Addresses: h.wallet.Tracked()}, nil
}

func (h *Handler) encodeChangeRole(params json.RawMessage) (interface{}, *Error) {
	var msg codec.MsgChangeRole
	if err := json.Unmarshal(params, &msg); err != nil {
		return nil, NewError(InvalidParams, "invalid params", err.Error())
	}
	enc, err := codec.Encode(&msg)
	if err != nil {
		return nil, NewError(InvalidParams, "invalid message", err.Error())
	}
	return enc, nil
}

func (h *Handler) decodeChangeRole(params json.RawMessage) (interface{}, *Error) {
	var p DecodeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, NewError(InvalidParams, "invalid params", err.Error())
	}
	msg, err := codec.DecodeText(p.Data)
	if err != nil {
		return nil, NewError(InvalidParams, "decode failed", err.Error())
	}
	return msg, nil
}

func (h *Handler) mapError(message, address string, err error) *Error {
	switch {
	case errors.Is(err, storage.ErrInvalidKey):
		return NewError(InvalidParams, message, err.Error())
	case client.IsNetwork(err) || client.IsProtocol(err):
		return NewError(NodeUnavailable, "node unavailable", err.Error())
	}
	h.logger.Error(message, zap.String("address", address), zap.Error(err))
	return NewError(InternalError, message, err.Error())
}
