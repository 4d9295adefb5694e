package client

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strconv"
	"time"

	"github.com/0xmhha/wallet-indexer/events"
)

// Int64 decodes the node's integers, which arrive either as JSON numbers or
// as decimal strings depending on the field
type Int64 int64

// UnmarshalJSON accepts 42 and "42"
func (i *Int64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*i = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*i = 0
			return nil
		}
		data = []byte(s)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return &json.UnmarshalTypeError{Value: "integer " + string(data), Type: reflect.TypeOf(int64(0))}
	}
	*i = Int64(n)
	return nil
}

// MarshalJSON encodes as a decimal string, matching the node
func (i Int64) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatInt(int64(i), 10))
}

// Status is the subset of the status response the indexer reads
type Status struct {
	NodeInfo struct {
		Network string `json:"network"`
		Moniker string `json:"moniker"`
		Version string `json:"version"`
	} `json:"node_info"`
	SyncInfo SyncInfo `json:"sync_info"`
}

// SyncInfo carries the node's view of the chain head
type SyncInfo struct {
	LatestBlockHeight Int64     `json:"latest_block_height"`
	LatestBlockTime   time.Time `json:"latest_block_time"`
	CatchingUp        bool      `json:"catching_up"`
}

// Header is the subset of a block header the indexer reads
type Header struct {
	ChainID string    `json:"chain_id"`
	Height  Int64     `json:"height"`
	Time    time.Time `json:"time"`
}

// Block is the block response; Txs holds the raw transaction bytes by index
type Block struct {
	BlockID struct {
		Hash string `json:"hash"`
	} `json:"block_id"`
	Block struct {
		Header Header `json:"header"`
		Data   struct {
			Txs [][]byte `json:"txs"`
		} `json:"data"`
	} `json:"block"`
}

// Txs returns the raw transactions of the block
func (b *Block) Txs() [][]byte {
	return b.Block.Data.Txs
}

// TxResult is the execution result of one transaction
type TxResult struct {
	Code      uint32         `json:"code"`
	Codespace string         `json:"codespace,omitempty"`
	Log       string         `json:"log,omitempty"`
	GasWanted Int64          `json:"gas_wanted,omitempty"`
	GasUsed   Int64          `json:"gas_used,omitempty"`
	Events    []events.Event `json:"events"`
}

// BlockResults holds per-transaction results for one height, in block order
type BlockResults struct {
	Height     Int64      `json:"height"`
	TxsResults []TxResult `json:"txs_results"`
}

// TxResponse is the point lookup response for one transaction hash
type TxResponse struct {
	Hash     string   `json:"hash"`
	Height   Int64    `json:"height"`
	Index    uint32   `json:"index"`
	TxResult TxResult `json:"tx_result"`
	Tx       []byte   `json:"tx,omitempty"`
}

// BroadcastResult is the broadcast_tx_sync response (CheckTx outcome)
type BroadcastResult struct {
	Code      uint32 `json:"code"`
	Data      string `json:"data,omitempty"`
	Log       string `json:"log,omitempty"`
	Codespace string `json:"codespace,omitempty"`
	Hash      string `json:"hash"`
}
