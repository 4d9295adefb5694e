package testutil

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/0xmhha/wallet-indexer/events"
)

// Tx is one transaction held by the fake node
type Tx struct {
	Raw    []byte
	Code   uint32
	Log    string
	Events []events.Event
}

// Block is one committed block held by the fake node
type Block struct {
	Height int64
	Time   time.Time
	Txs    []Tx

	// ExtraResults appends results with no matching raw transaction
	ExtraResults []Tx
}

type storedTx struct {
	tx     Tx
	height int64
	index  int
}

// Node is an in-process CometBFT JSON-RPC node backed by httptest
type Node struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	latest     int64
	blocks     map[int64]*Block
	txs        map[string]storedTx
	failures   map[string]int
	calls      map[string]int
	broadcasts [][]byte
	broadcast  func(raw []byte) (code uint32, log string)
	raw        map[string]string
	wsConns    map[*websocket.Conn]struct{}
}

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// subscribeRequest carries named params, as CometBFT's websocket expects
type subscribeRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params map[string]string `json:"params"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewNode starts a fake node; it is closed when the test ends
func NewNode(t *testing.T) *Node {
	t.Helper()

	n := &Node{
		t:        t,
		blocks:   make(map[int64]*Block),
		txs:      make(map[string]storedTx),
		failures: make(map[string]int),
		calls:    make(map[string]int),
		raw:      make(map[string]string),
		wsConns:  make(map[*websocket.Conn]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/websocket", n.serveWebSocket)
	mux.HandleFunc("/", n.serveRPC)
	n.server = httptest.NewServer(mux)
	t.Cleanup(n.Close)

	return n
}

// URL returns the node's HTTP endpoint
func (n *Node) URL() string {
	return n.server.URL
}

// WebSocketURL returns the node's websocket endpoint
func (n *Node) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(n.server.URL, "http") + "/websocket"
}

// Close shuts the node down
func (n *Node) Close() {
	n.mu.Lock()
	for conn := range n.wsConns {
		conn.Close()
		delete(n.wsConns, conn)
	}
	n.mu.Unlock()
	n.server.Close()
}

// AddBlock stores a block and indexes its transactions by hash. The latest
// height follows the highest block added unless SetLatest overrides it.
func (n *Node) AddBlock(b Block) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if b.Time.IsZero() {
		b.Time = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(b.Height) * time.Second)
	}
	copied := b
	n.blocks[b.Height] = &copied
	for i, tx := range b.Txs {
		n.txs[TxHash(tx.Raw)] = storedTx{tx: tx, height: b.Height, index: i}
	}
	if b.Height > n.latest {
		n.latest = b.Height
	}
}

// SetLatest sets the height reported by status
func (n *Node) SetLatest(height int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.latest = height
}

// Fail makes method answer with an HTTP status and JSON-RPC error. height
// restricts the failure to one height; zero fails every call.
func (n *Node) Fail(method string, height int64, status int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures[failureKey(method, height)] = status
}

// RespondRaw makes method answer with body verbatim and HTTP 200
func (n *Node) RespondRaw(method, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.raw[method] = body
}

// OnBroadcast overrides the CheckTx outcome of broadcast_tx_sync
func (n *Node) OnBroadcast(fn func(raw []byte) (code uint32, log string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcast = fn
}

// Calls returns how many times method was called
func (n *Node) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

// Broadcasts returns the raw transactions submitted so far
func (n *Node) Broadcasts() [][]byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([][]byte, len(n.broadcasts))
	copy(out, n.broadcasts)
	return out
}

// Subscribers returns the number of open websocket connections
func (n *Node) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.wsConns)
}

// PushNewBlock sends a NewBlock notification to every subscriber
func (n *Node) PushNewBlock(height int64) {
	msg := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"result": map[string]interface{}{
			"query": "tm.event='NewBlock'",
			"data": map[string]interface{}{
				"type": "tendermint/event/NewBlock",
				"value": map[string]interface{}{
					"block": map[string]interface{}{
						"header": map[string]interface{}{
							"height": strconv.FormatInt(height, 10),
						},
					},
				},
			},
		},
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for conn := range n.wsConns {
		_ = conn.WriteJSON(msg)
	}
}

func failureKey(method string, height int64) string {
	return method + "@" + strconv.FormatInt(height, 10)
}

func (n *Node) serveRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls[req.Method]++
	raw, hasRaw := n.raw[req.Method]
	n.mu.Unlock()

	if hasRaw {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(raw))
		return
	}

	height := paramHeight(req.Params)
	n.mu.Lock()
	status, failAll := n.failures[failureKey(req.Method, 0)]
	if !failAll && height != 0 {
		status, failAll = n.failures[failureKey(req.Method, height)]
	}
	n.mu.Unlock()
	if failAll {
		writeError(w, req.ID, status, -32603, "Internal error", "injected failure")
		return
	}

	switch req.Method {
	case "status":
		n.handleStatus(w, req)
	case "block":
		n.handleBlock(w, req, height)
	case "block_results":
		n.handleBlockResults(w, req, height)
	case "tx":
		n.handleTx(w, req)
	case "broadcast_tx_sync":
		n.handleBroadcast(w, req)
	default:
		writeError(w, req.ID, http.StatusOK, -32601, "Method not found", req.Method)
	}
}

func (n *Node) handleStatus(w http.ResponseWriter, req rpcRequest) {
	n.mu.Lock()
	latest := n.latest
	n.mu.Unlock()

	writeResult(w, req.ID, map[string]interface{}{
		"node_info": map[string]string{"network": "volnix-test", "moniker": "fake"},
		"sync_info": map[string]interface{}{
			"latest_block_height": strconv.FormatInt(latest, 10),
			"catching_up":         false,
		},
	})
}

func (n *Node) handleBlock(w http.ResponseWriter, req rpcRequest, height int64) {
	n.mu.Lock()
	b, ok := n.blocks[height]
	n.mu.Unlock()
	if !ok {
		writeError(w, req.ID, http.StatusInternalServerError, -32603, "Internal error",
			fmt.Sprintf("height %d must be less than or equal to the current blockchain height", height))
		return
	}

	txs := make([]string, len(b.Txs))
	for i, tx := range b.Txs {
		txs[i] = base64.StdEncoding.EncodeToString(tx.Raw)
	}
	writeResult(w, req.ID, map[string]interface{}{
		"block_id": map[string]string{"hash": fmt.Sprintf("%064X", b.Height)},
		"block": map[string]interface{}{
			"header": map[string]interface{}{
				"chain_id": "volnix-test",
				"height":   strconv.FormatInt(b.Height, 10),
				"time":     b.Time.UTC().Format(time.RFC3339Nano),
			},
			"data": map[string]interface{}{"txs": txs},
		},
	})
}

func (n *Node) handleBlockResults(w http.ResponseWriter, req rpcRequest, height int64) {
	n.mu.Lock()
	b, ok := n.blocks[height]
	n.mu.Unlock()
	if !ok {
		writeError(w, req.ID, http.StatusInternalServerError, -32603, "Internal error",
			fmt.Sprintf("could not find results for height #%d", height))
		return
	}

	all := append(append([]Tx{}, b.Txs...), b.ExtraResults...)
	results := make([]interface{}, len(all))
	for i, tx := range all {
		results[i] = txResult(tx)
	}
	writeResult(w, req.ID, map[string]interface{}{
		"height":      strconv.FormatInt(b.Height, 10),
		"txs_results": results,
	})
}

func (n *Node) handleTx(w http.ResponseWriter, req rpcRequest) {
	var raw []byte
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params[0], &raw)
	}
	hash := strings.ToUpper(hex.EncodeToString(raw))

	n.mu.Lock()
	stored, ok := n.txs[hash]
	n.mu.Unlock()
	if !ok {
		writeError(w, req.ID, http.StatusInternalServerError, -32603, "Internal error",
			fmt.Sprintf("tx (%s) not found", hash))
		return
	}

	writeResult(w, req.ID, map[string]interface{}{
		"hash":      hash,
		"height":    strconv.FormatInt(stored.height, 10),
		"index":     stored.index,
		"tx_result": txResult(stored.tx),
		"tx":        base64.StdEncoding.EncodeToString(stored.tx.Raw),
	})
}

func (n *Node) handleBroadcast(w http.ResponseWriter, req rpcRequest) {
	var raw []byte
	if len(req.Params) > 0 {
		_ = json.Unmarshal(req.Params[0], &raw)
	}

	n.mu.Lock()
	n.broadcasts = append(n.broadcasts, raw)
	fn := n.broadcast
	n.mu.Unlock()

	var code uint32
	var log string
	if fn != nil {
		code, log = fn(raw)
	}
	writeResult(w, req.ID, map[string]interface{}{
		"code": code,
		"log":  log,
		"hash": TxHash(raw),
	})
}

func (n *Node) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	// wait for the subscribe request before announcing the connection
	var req subscribeRequest
	if err := conn.ReadJSON(&req); err != nil || req.Method != "subscribe" || req.Params["query"] == "" {
		conn.Close()
		return
	}

	n.mu.Lock()
	_ = conn.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": map[string]interface{}{}})
	n.wsConns[conn] = struct{}{}
	n.mu.Unlock()

	go func() {
		defer func() {
			n.mu.Lock()
			delete(n.wsConns, conn)
			n.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func txResult(tx Tx) map[string]interface{} {
	evts := tx.Events
	if evts == nil {
		evts = []events.Event{}
	}
	return map[string]interface{}{
		"code":   tx.Code,
		"log":    tx.Log,
		"events": evts,
	}
}

func paramHeight(params []json.RawMessage) int64 {
	if len(params) == 0 {
		return 0
	}
	var s string
	if err := json.Unmarshal(params[0], &s); err != nil {
		return 0
	}
	h, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return h
}

func writeResult(w http.ResponseWriter, id json.RawMessage, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func writeError(w http.ResponseWriter, id json.RawMessage, status, code int, message, data string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
			"data":    data,
		},
	})
}
