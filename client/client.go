package client

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/0xmhha/wallet-indexer/internal/constants"
)

// Client wraps a CometBFT JSON-RPC connection with request throttling
type Client struct {
	rpcClient *rpc.Client
	endpoint  string
	limiter   *rate.Limiter
	metrics   *Metrics
	logger    *zap.Logger
}

// Config holds client configuration
type Config struct {
	Endpoint string
	Timeout  time.Duration

	// RequestsPerSecond caps outgoing calls; zero or less disables throttling
	RequestsPerSecond float64
	Burst             int

	// SkipPing opens the client without a status round trip
	SkipPing bool

	Metrics *Metrics
	Logger  *zap.Logger
}

// NewClient dials the node and verifies it answers status
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if !strings.HasPrefix(cfg.Endpoint, "http://") && !strings.HasPrefix(cfg.Endpoint, "https://") {
		return nil, fmt.Errorf("unsupported endpoint scheme: %s", cfg.Endpoint)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRPCTimeout
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = constants.DefaultRequestBurst
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	rpcClient, err := rpc.DialOptions(ctx, cfg.Endpoint,
		rpc.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	client := &Client{
		rpcClient: rpcClient,
		endpoint:  cfg.Endpoint,
		limiter:   rate.NewLimiter(limit, burst),
		metrics:   cfg.Metrics,
		logger:    logger,
	}

	if !cfg.SkipPing {
		if err := client.Ping(ctx); err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("failed to ping RPC endpoint: %w", err)
		}
	}

	logger.Info("connected to node RPC",
		zap.String("endpoint", cfg.Endpoint))

	return client, nil
}

// Endpoint returns the node URL the client talks to
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Ping verifies the connection to the RPC endpoint
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Status(ctx)
	return err
}

// Close closes the client connection
func (c *Client) Close() {
	if c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

func (c *Client) call(ctx context.Context, result interface{}, method, key string, args ...interface{}) error {
	waitStart := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Method: method, Err: err}
	}
	c.metrics.ObserveWait(time.Since(waitStart))

	start := time.Now()
	err := classify(method, key, c.rpcClient.CallContext(ctx, result, method, args...))
	c.metrics.ObserveRequest(method, time.Since(start), err)

	if err != nil {
		c.logger.Debug("rpc call failed",
			zap.String("method", method),
			zap.String("key", key),
			zap.Error(err))
	}
	return err
}

// Status returns the node status
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var status *Status
	if err := c.call(ctx, &status, "status", ""); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	if status == nil {
		return nil, fmt.Errorf("failed to get status: %w", &ProtocolError{Method: "status", Err: rpc.ErrNoResult})
	}
	return status, nil
}

// LatestHeight returns the node's latest committed height
func (c *Client) LatestHeight(ctx context.Context) (int64, error) {
	status, err := c.Status(ctx)
	if err != nil {
		return 0, err
	}
	return int64(status.SyncInfo.LatestBlockHeight), nil
}

// Block fetches the block at height
func (c *Client) Block(ctx context.Context, height int64) (*Block, error) {
	key := strconv.FormatInt(height, 10)

	var block *Block
	if err := c.call(ctx, &block, "block", key, key); err != nil {
		return nil, fmt.Errorf("failed to get block %d: %w", height, err)
	}
	if block == nil {
		return nil, fmt.Errorf("failed to get block %d: %w", height, &NotFoundError{Method: "block", Key: key})
	}
	return block, nil
}

// BlockResults fetches the per-transaction execution results at height
func (c *Client) BlockResults(ctx context.Context, height int64) (*BlockResults, error) {
	key := strconv.FormatInt(height, 10)

	var results *BlockResults
	if err := c.call(ctx, &results, "block_results", key, key); err != nil {
		return nil, fmt.Errorf("failed to get block results %d: %w", height, err)
	}
	if results == nil {
		return nil, fmt.Errorf("failed to get block results %d: %w", height, &NotFoundError{Method: "block_results", Key: key})
	}
	return results, nil
}

// Tx looks up one transaction by its hex hash. A node that does not know the
// hash, or answers with something other than JSON, yields a NotFoundError.
func (c *Client) Tx(ctx context.Context, hash string) (*TxResponse, error) {
	raw, err := hex.DecodeString(hash)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction hash %q: %w", hash, err)
	}

	var tx *TxResponse
	err = c.call(ctx, &tx, "tx", hash, raw, false)
	if err != nil {
		if IsProtocol(err) {
			err = &NotFoundError{Method: "tx", Key: hash, Err: err}
		}
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash, err)
	}
	if tx == nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash, &NotFoundError{Method: "tx", Key: hash})
	}
	if err := checkTx(tx, hash); err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", hash,
			&NotFoundError{Method: "tx", Key: hash, Err: &ProtocolError{Method: "tx", Err: err}})
	}
	return tx, nil
}

// checkTx rejects replies that do not describe a committed transaction
// with the requested hash
func checkTx(tx *TxResponse, hash string) error {
	if tx.Height <= 0 {
		return fmt.Errorf("response has no height")
	}
	if tx.Hash != "" && !strings.EqualFold(tx.Hash, hash) {
		return fmt.Errorf("response is for transaction %s", tx.Hash)
	}
	return nil
}

// BroadcastTxSync submits raw transaction bytes and waits for CheckTx
func (c *Client) BroadcastTxSync(ctx context.Context, tx []byte) (*BroadcastResult, error) {
	if len(tx) == 0 {
		return nil, fmt.Errorf("transaction cannot be empty")
	}

	var result *BroadcastResult
	if err := c.call(ctx, &result, "broadcast_tx_sync", "", tx); err != nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("failed to broadcast transaction: %w", &ProtocolError{Method: "broadcast_tx_sync", Err: rpc.ErrNoResult})
	}
	return result, nil
}
