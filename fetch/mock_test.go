package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/wallet-indexer/client"
	"github.com/0xmhha/wallet-indexer/events"
)

// mockClient is an in-memory node
type mockClient struct {
	mu sync.Mutex

	latest    int64
	statusErr error
	blocks    map[int64]*client.Block
	results   map[int64]*client.BlockResults
	txs       map[string]*client.TxResponse

	failResults map[int64]bool
	failBlocks  map[int64]bool

	resultCalls []int64
	blockCalls  []int64
	txCalls     int
	statusCalls int
}

func newMockClient() *mockClient {
	return &mockClient{
		blocks:      make(map[int64]*client.Block),
		results:     make(map[int64]*client.BlockResults),
		txs:         make(map[string]*client.TxResponse),
		failResults: make(map[int64]bool),
		failBlocks:  make(map[int64]bool),
	}
}

type mockTx struct {
	raw    []byte
	code   uint32
	events []events.Event
}

// addBlock stores a block and makes its transactions resolvable by hash
func (m *mockClient) addBlock(height int64, blockTime time.Time, txs ...mockTx) {
	m.mu.Lock()
	defer m.mu.Unlock()

	block := &client.Block{}
	block.Block.Header.Height = client.Int64(height)
	block.Block.Header.Time = blockTime
	results := &client.BlockResults{Height: client.Int64(height)}

	for i, tx := range txs {
		block.Block.Data.Txs = append(block.Block.Data.Txs, tx.raw)
		res := client.TxResult{Code: tx.code, Events: tx.events}
		results.TxsResults = append(results.TxsResults, res)
		m.txs[TxHash(tx.raw)] = &client.TxResponse{
			Hash:     TxHash(tx.raw),
			Height:   client.Int64(height),
			Index:    uint32(i),
			TxResult: res,
		}
	}

	m.blocks[height] = block
	m.results[height] = results
	if height > m.latest {
		m.latest = height
	}
}

func (m *mockClient) LatestHeight(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	if m.statusErr != nil {
		return 0, m.statusErr
	}
	return m.latest, nil
}

func (m *mockClient) Block(ctx context.Context, height int64) (*client.Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blockCalls = append(m.blockCalls, height)
	if m.failBlocks[height] {
		return nil, &client.NetworkError{Method: "block", Err: fmt.Errorf("connection reset")}
	}
	block, ok := m.blocks[height]
	if !ok {
		return nil, &client.ProtocolError{Method: "block", Err: fmt.Errorf("height %d unavailable", height)}
	}
	return block, nil
}

func (m *mockClient) BlockResults(ctx context.Context, height int64) (*client.BlockResults, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resultCalls = append(m.resultCalls, height)
	if m.failResults[height] {
		return nil, &client.ProtocolError{Method: "block_results", StatusCode: 500, Err: fmt.Errorf("internal error")}
	}
	results, ok := m.results[height]
	if !ok {
		return &client.BlockResults{Height: client.Int64(height)}, nil
	}
	return results, nil
}

func (m *mockClient) Tx(ctx context.Context, hash string) (*client.TxResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCalls++
	tx, ok := m.txs[hash]
	if !ok {
		return nil, &client.NotFoundError{Method: "tx", Key: hash}
	}
	return tx, nil
}

// mockStorage is an in-memory index
type mockStorage struct {
	mu        sync.Mutex
	hashes    map[string][]string
	cursors   map[string]time.Time
	appendErr error
	readErr   error
	touches   int
}

func newMockStorage() *mockStorage {
	return &mockStorage{
		hashes:  make(map[string][]string),
		cursors: make(map[string]time.Time),
	}
}

func (m *mockStorage) Append(ctx context.Context, address, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return false, m.appendErr
	}
	for _, h := range m.hashes[address] {
		if h == hash {
			return false, nil
		}
	}
	m.hashes[address] = append([]string{hash}, m.hashes[address]...)
	return true, nil
}

func (m *mockStorage) Read(ctx context.Context, address string, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	list := m.hashes[address]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return append([]string(nil), list...), nil
}

func (m *mockStorage) Cursor(ctx context.Context, address string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.cursors[address]
	return t, ok, nil
}

func (m *mockStorage) TouchCursor(ctx context.Context, address string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touches++
	m.cursors[address] = now
	return nil
}

func (m *mockStorage) list(address string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.hashes[address]...)
}

// receive builds events for a transfer into to
func receive(from, to, amount string) []events.Event {
	return []events.Event{
		{Type: events.TypeTransfer, Attributes: []events.Attribute{
			events.PlainAttribute(events.KeyRecipient, to),
			events.PlainAttribute(events.KeySender, from),
			events.PlainAttribute(events.KeyAmount, amount),
		}},
	}
}
