package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/codec"
	"github.com/0xmhha/wallet-indexer/fetch"
)

const alice = "volnix1alice000000000000000000000000000000"

type fakeWallet struct {
	mu      sync.Mutex
	records []fetch.TransactionRecord
	hashes  []string
	scan    *fetch.ScanResult
	err     error
	scans   int
	tracked map[string]bool
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{tracked: make(map[string]bool)}
}

func (f *fakeWallet) Scan(ctx context.Context, address string) (*fetch.ScanResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	if f.err != nil {
		return nil, f.err
	}
	if f.scan != nil {
		return f.scan, nil
	}
	return &fetch.ScanResult{Address: address}, nil
}

func (f *fakeWallet) Hashes(ctx context.Context, address string, limit int) ([]string, error) {
	return f.hashes, f.err
}

func (f *fakeWallet) Details(ctx context.Context, address string, limit int) ([]fetch.TransactionRecord, error) {
	return f.records, f.err
}

func (f *fakeWallet) History(ctx context.Context, address string, limit int) ([]fetch.TransactionRecord, *fetch.ScanResult, error) {
	scan, err := f.Scan(ctx, address)
	if err != nil {
		return nil, nil, err
	}
	return f.records, scan, nil
}

func (f *fakeWallet) Tracked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for a := range f.tracked {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (f *fakeWallet) Track(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked[address] = true
}

func (f *fakeWallet) Untrack(address string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tracked, address)
}

func newTestHandler(t *testing.T, w Wallet) *Handler {
	t.Helper()
	h, err := NewHandler(w, zap.NewNop())
	require.NoError(t, err)
	return h
}

func exec(t *testing.T, h *Handler, query string, vars map[string]interface{}) map[string]interface{} {
	t.Helper()
	res := h.ExecuteQuery(context.Background(), query, vars)
	require.Empty(t, res.Errors, "%v", res.Errors)
	data, ok := res.Data.(map[string]interface{})
	require.True(t, ok)
	return data
}

func TestTransactionsQuery(t *testing.T) {
	w := newFakeWallet()
	w.records = []fetch.TransactionRecord{
		{
			Hash:      "BB",
			Height:    42,
			Timestamp: time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC),
			From:      "volnix1bob",
			To:        alice,
			Amount:    "1000000",
			Denom:     "uwrt",
			Status:    fetch.StatusSuccess,
		},
		{Hash: "AA", Height: 7, From: alice, To: alice, Status: fetch.StatusFailed},
	}
	h := newTestHandler(t, w)

	data := exec(t, h, `query($a: String!) {
		transactions(address: $a, limit: 10) { hash height timestamp from to amount denom status }
	}`, map[string]interface{}{"a": alice})

	txs := data["transactions"].([]interface{})
	require.Len(t, txs, 2)
	assert.Equal(t, map[string]interface{}{
		"hash":      "BB",
		"height":    "42",
		"timestamp": "2026-07-01T09:30:00Z",
		"from":      "volnix1bob",
		"to":        alice,
		"amount":    "1000000",
		"denom":     "uwrt",
		"status":    "SUCCESS",
	}, txs[0])
	second := txs[1].(map[string]interface{})
	assert.Nil(t, second["timestamp"])
	assert.Equal(t, "FAILED", second["status"])
	assert.Equal(t, 1, w.scans)

	exec(t, h, fmt.Sprintf(`{ transactions(address: %q, scan: false) { hash } }`, alice), nil)
	assert.Equal(t, 1, w.scans, "scan: false skips the scanner")
}

func TestHashesAndTracking(t *testing.T) {
	w := newFakeWallet()
	h := newTestHandler(t, w)

	data := exec(t, h, fmt.Sprintf(`{ hashes(address: %q) }`, alice), nil)
	assert.Equal(t, []interface{}{}, data["hashes"])

	w.hashes = []string{"BB", "AA"}
	data = exec(t, h, fmt.Sprintf(`{ hashes(address: %q, limit: 2) }`, alice), nil)
	assert.Equal(t, []interface{}{"BB", "AA"}, data["hashes"])

	data = exec(t, h, fmt.Sprintf(`mutation { track(address: %q) }`, alice), nil)
	assert.Equal(t, []interface{}{alice}, data["track"])
	data = exec(t, h, `{ trackedAddresses }`, nil)
	assert.Equal(t, []interface{}{alice}, data["trackedAddresses"])
	data = exec(t, h, fmt.Sprintf(`mutation { untrack(address: %q) }`, alice), nil)
	assert.Equal(t, []interface{}{}, data["untrack"])
}

func TestScanMutation(t *testing.T) {
	w := newFakeWallet()
	w.scan = &fetch.ScanResult{
		Address:       alice,
		Latest:        10,
		Floor:         1,
		Heights:       9,
		FailedHeights: []int64{4},
		Matched:       1,
		Discovered:    []string{"AA"},
	}
	h := newTestHandler(t, w)

	data := exec(t, h, fmt.Sprintf(`mutation {
		scan(address: %q) { address skipped skipReason latest floor heights failedHeights matched discovered interrupted }
	}`, alice), nil)
	assert.Equal(t, map[string]interface{}{
		"address":       alice,
		"skipped":       false,
		"skipReason":    nil,
		"latest":        "10",
		"floor":         "1",
		"heights":       9,
		"failedHeights": []interface{}{"4"},
		"matched":       1,
		"discovered":    []interface{}{"AA"},
		"interrupted":   false,
	}, data["scan"])
}

func TestChangeRole(t *testing.T) {
	h := newTestHandler(t, newFakeWallet())

	data := exec(t, h, `mutation($m: MsgChangeRoleInput!) { encodeChangeRole(msg: $m) { typeUrl base64 hex } }`,
		map[string]interface{}{"m": map[string]interface{}{
			"address":   alice,
			"newRole":   "ROLE_CITIZEN",
			"zkpProof":  "proof",
			"changeFee": map[string]interface{}{"denom": "uwrt", "amount": "100"},
		}})
	enc := data["encodeChangeRole"].(map[string]interface{})
	assert.Equal(t, codec.TypeURL, enc["typeUrl"])

	data = exec(t, h, `query($d: String!) { decodeChangeRole(data: $d) { address newRole zkpProof changeFee { denom amount } } }`,
		map[string]interface{}{"d": enc["hex"]})
	assert.Equal(t, map[string]interface{}{
		"address":   alice,
		"newRole":   "ROLE_CITIZEN",
		"zkpProof":  "proof",
		"changeFee": map[string]interface{}{"denom": "uwrt", "amount": "100"},
	}, data["decodeChangeRole"])

	res := h.ExecuteQuery(context.Background(), `{ decodeChangeRole(data: "0a") { address } }`, nil)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "decode")
}

func TestResolverErrors(t *testing.T) {
	w := newFakeWallet()
	h := newTestHandler(t, w)

	res := h.ExecuteQuery(context.Background(), `{ hashes(address: "  ") }`, nil)
	assert.NotEmpty(t, res.Errors)

	res = h.ExecuteQuery(context.Background(), fmt.Sprintf(`{ hashes(address: %q, limit: -1) }`, alice), nil)
	assert.NotEmpty(t, res.Errors)

	w.err = fmt.Errorf("storage closed")
	res = h.ExecuteQuery(context.Background(), fmt.Sprintf(`{ transactions(address: %q) { hash } }`, alice), nil)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "storage closed")
}

func TestHandlerHTTP(t *testing.T) {
	h := newTestHandler(t, newFakeWallet())

	body := `{"query":"{ trackedAddresses }"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []interface{}{}, resp.Data["trackedAddresses"])
}
