package fetch

import (
	"context"
	"time"

	"github.com/0xmhha/wallet-indexer/client"
)

// Client defines the node RPC operations the scanner and fetcher use
type Client interface {
	LatestHeight(ctx context.Context) (int64, error)
	Block(ctx context.Context, height int64) (*client.Block, error)
	BlockResults(ctx context.Context, height int64) (*client.BlockResults, error)
	Tx(ctx context.Context, hash string) (*client.TxResponse, error)
}

// Storage defines the index operations the scanner and fetcher use
type Storage interface {
	Append(ctx context.Context, address, hash string) (bool, error)
	Read(ctx context.Context, address string, limit int) ([]string, error)
	Cursor(ctx context.Context, address string) (time.Time, bool, error)
	TouchCursor(ctx context.Context, address string, now time.Time) error
}

// Status is the execution outcome of a transaction
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// StatusFromCode maps an ABCI result code to a Status
func StatusFromCode(code uint32) Status {
	if code == 0 {
		return StatusSuccess
	}
	return StatusFailed
}

// TransactionRecord is the decoded view of one indexed transaction
type TransactionRecord struct {
	Hash      string    `json:"hash"`
	Height    int64     `json:"height"`
	Timestamp time.Time `json:"timestamp"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    string    `json:"amount"`
	Denom     string    `json:"denom"`
	Status    Status    `json:"status"`
}

// SkipReason explains why a scan did not walk any heights
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipRateLimited     SkipReason = "rate_limited"
	SkipNodeUnavailable SkipReason = "node_unavailable"
)

// ScanResult summarizes one Scan call
type ScanResult struct {
	Address       string     `json:"address"`
	Skipped       bool       `json:"skipped"`
	SkipReason    SkipReason `json:"skipReason,omitempty"`
	Latest        int64      `json:"latest"`
	Floor         int64      `json:"floor"`
	Heights       int        `json:"heights"`
	FailedHeights []int64    `json:"failedHeights,omitempty"`
	Matched       int        `json:"matched"`
	Discovered    []string   `json:"discovered,omitempty"`
	Interrupted   bool       `json:"interrupted,omitempty"`
}
