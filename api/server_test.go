package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/wallet-indexer/api/websocket"
	"github.com/0xmhha/wallet-indexer/client"
	"github.com/0xmhha/wallet-indexer/codec"
	"github.com/0xmhha/wallet-indexer/events"
	"github.com/0xmhha/wallet-indexer/fetch"
	"github.com/0xmhha/wallet-indexer/internal/testutil"
	"github.com/0xmhha/wallet-indexer/storage"
	"github.com/0xmhha/wallet-indexer/wallet"
)

const (
	alice = "volnix1alice000000000000000000000000000000"
	bob   = "volnix1bob00000000000000000000000000000000"
)

type fixture struct {
	node   *testutil.Node
	wallet *wallet.Service
	server *Server
	http   *httptest.Server
}

func setup(t *testing.T, cfg *Config) *fixture {
	t.Helper()

	node := testutil.NewNode(t)
	node.AddBlock(testutil.Block{Height: 1})

	c, err := client.NewClient(&client.Config{Endpoint: node.URL(), Timeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	store, err := storage.NewPebbleStorage(storage.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := wallet.NewService(c, store, nil, testutil.NewTestLogger(t))
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	if cfg == nil {
		cfg = DefaultConfig()
	}
	srv, err := NewServer(cfg, testutil.NewTestLogger(t), svc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })

	hs := httptest.NewServer(srv.Router())
	t.Cleanup(hs.Close)

	return &fixture{node: node, wallet: svc, server: srv, http: hs}
}

func (f *fixture) do(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestNewServer(t *testing.T) {
	valid := func(mod func(c *Config)) *Config {
		c := DefaultConfig()
		mod(c)
		return c
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{"default config", DefaultConfig(), false},
		{"invalid port", valid(func(c *Config) { c.Port = 0 }), true},
		{"empty host", valid(func(c *Config) { c.Host = "" }), true},
		{"zero shutdown timeout", valid(func(c *Config) { c.ShutdownTimeout = 0 }), true},
		{"duplicate paths", valid(func(c *Config) { c.JSONRPCPath = c.GraphQLPath }), true},
		{"relative path", valid(func(c *Config) { c.WebSocketPath = "ws" }), true},
		{"rate limit without budget", valid(func(c *Config) { c.EnableRateLimit = true; c.RateLimitPerSecond = 0 }), true},
		{"only REST", valid(func(c *Config) { c.EnableGraphQL, c.EnableJSONRPC, c.EnableWebSocket = false, false, false }), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := NewServer(DefaultConfig(), nil, nil)
	assert.Error(t, err, "nil wallet")
}

func TestConfigAddress(t *testing.T) {
	c := DefaultConfig()
	c.Host, c.Port = "0.0.0.0", 9090
	assert.Equal(t, "0.0.0.0:9090", c.Address())
}

func TestHealthVersionMetrics(t *testing.T) {
	f := setup(t, nil)
	f.wallet.Track(alice)

	var health HealthResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", "", &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 1, health.TrackedAddresses)

	var version map[string]string
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/version", "", &version))
	assert.Equal(t, "wallet-indexer", version["name"])

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/metrics", "", nil))
}

func TestTransactionsEndpoint(t *testing.T) {
	f := setup(t, nil)
	raw := []byte("bob-pays-alice")
	blockTime := time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC)
	f.node.AddBlock(testutil.Block{
		Height: 42,
		Time:   blockTime,
		Txs: []testutil.Tx{
			{Raw: raw, Events: testutil.TransferEvents(bob, alice, "1000000uwrt", events.EncodingBase64)},
		},
	})

	var resp TransactionsResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/accounts/"+alice+"/transactions?limit=10", "", &resp))
	assert.Equal(t, alice, resp.Address)
	require.NotNil(t, resp.Scan)
	assert.Equal(t, []string{testutil.TxHash(raw)}, resp.Scan.Discovered)
	require.Len(t, resp.Transactions, 1)
	assert.Equal(t, fetch.TransactionRecord{
		Hash:      testutil.TxHash(raw),
		Height:    42,
		Timestamp: blockTime,
		From:      bob,
		To:        alice,
		Amount:    "1000000",
		Denom:     "uwrt",
		Status:    fetch.StatusSuccess,
	}, resp.Transactions[0])

	var hashes HashesResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/accounts/"+alice+"/hashes", "", &hashes))
	assert.Equal(t, []string{testutil.TxHash(raw)}, hashes.Hashes)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/accounts/"+bob+"/hashes", "", &hashes))
	assert.Equal(t, []string{}, hashes.Hashes)

	resp = TransactionsResponse{}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/accounts/"+bob+"/transactions?scan=false", "", &resp))
	assert.Nil(t, resp.Scan)
	assert.Equal(t, []fetch.TransactionRecord{}, resp.Transactions)
}

func TestTransactionsNodeDown(t *testing.T) {
	f := setup(t, nil)
	f.node.Fail("status", 0, http.StatusInternalServerError)

	var resp TransactionsResponse
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/accounts/"+alice+"/transactions", "", &resp))
	require.NotNil(t, resp.Scan)
	assert.True(t, resp.Scan.Skipped)
	assert.Equal(t, fetch.SkipNodeUnavailable, resp.Scan.SkipReason)
	assert.Empty(t, resp.Transactions)
}

func TestScanEndpoint(t *testing.T) {
	f := setup(t, nil)
	raw := []byte("scan-me")
	f.node.AddBlock(testutil.Block{Height: 5, Txs: []testutil.Tx{
		{Raw: raw, Events: testutil.TransferEvents(alice, bob, "3uwrt", events.EncodingPlain)},
	}})

	var result fetch.ScanResult
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/accounts/"+alice+"/scan", "", &result))
	assert.Equal(t, int64(5), result.Latest)
	assert.Equal(t, []string{testutil.TxHash(raw)}, result.Discovered)

	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/accounts/"+alice+"/scan", "", &result))
	assert.True(t, result.Skipped)
	assert.Equal(t, fetch.SkipRateLimited, result.SkipReason)
}

func TestBadRequests(t *testing.T) {
	f := setup(t, nil)

	tests := []struct {
		name, method, path, body string
	}{
		{"bad limit", http.MethodGet, "/v1/accounts/" + alice + "/hashes?limit=ten", ""},
		{"negative limit", http.MethodGet, "/v1/accounts/" + alice + "/transactions?limit=-1", ""},
		{"bad scan flag", http.MethodGet, "/v1/accounts/" + alice + "/transactions?scan=maybe", ""},
		{"broadcast without tx", http.MethodPost, "/v1/accounts/" + alice + "/broadcast", `{}`},
		{"broadcast unknown field", http.MethodPost, "/v1/accounts/" + alice + "/broadcast", `{"txs":"AA=="}`},
		{"encode without role", http.MethodPost, "/v1/msgs/change-role/encode", `{"address":"a","zkp_proof":"p"}`},
		{"encode bad role", http.MethodPost, "/v1/msgs/change-role/encode", `{"address":"a","new_role":"admin","zkp_proof":"p"}`},
		{"decode truncated", http.MethodPost, "/v1/msgs/change-role/decode", `{"data":"0a"}`},
		{"decode garbage", http.MethodPost, "/v1/msgs/change-role/decode", `{"data":"!!"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			assert.Equal(t, http.StatusBadRequest, f.do(t, tt.method, tt.path, tt.body, &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestBroadcastEndpoint(t *testing.T) {
	f := setup(t, nil)
	tx := []byte("signed-send")
	body := `{"tx":"` + base64.StdEncoding.EncodeToString(tx) + `"}`

	var res client.BroadcastResult
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/accounts/"+alice+"/broadcast", body, &res))
	assert.Equal(t, uint32(0), res.Code)
	assert.Equal(t, [][]byte{tx}, f.node.Broadcasts())

	var hashes HashesResponse
	f.do(t, http.MethodGet, "/v1/accounts/"+alice+"/hashes", "", &hashes)
	assert.Equal(t, []string{testutil.TxHash(tx)}, hashes.Hashes)

	f.node.OnBroadcast(func([]byte) (uint32, string) { return 5, "insufficient funds" })
	assert.Equal(t, http.StatusUnprocessableEntity, f.do(t, http.MethodPost, "/v1/accounts/"+alice+"/broadcast", `{"tx":"eA=="}`, &res))
	assert.Equal(t, uint32(5), res.Code)
}

func TestBroadcastEndpointErrors(t *testing.T) {
	f := setup(t, nil)
	body := `{"tx":"` + base64.StdEncoding.EncodeToString([]byte("signed")) + `"}`

	var errResp ErrorResponse
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/v1/accounts/volnix1:alice/broadcast", body, &errResp))
	assert.Empty(t, f.node.Broadcasts(), "an unindexable sender is rejected before broadcasting")

	f.node.Fail("broadcast_tx_sync", 0, http.StatusInternalServerError)
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodPost, "/v1/accounts/"+alice+"/broadcast", body, &errResp))
	assert.Equal(t, "node unavailable", errResp.Error)
}

func TestTrackedEndpoints(t *testing.T) {
	f := setup(t, nil)

	var out map[string][]string
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/v1/tracked/"+bob, "", &out))
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/v1/tracked/"+alice, "", &out))
	assert.Equal(t, []string{alice, bob}, out["addresses"])

	require.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/v1/tracked/"+bob, "", &out))
	assert.Equal(t, []string{alice}, out["addresses"])

	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/v1/tracked", "", &out))
	assert.Equal(t, []string{alice}, out["addresses"])
	assert.Equal(t, []string{alice}, f.wallet.Tracked())
}

func TestChangeRoleEndpoints(t *testing.T) {
	f := setup(t, nil)

	body := `{"address":"` + alice + `","new_role":"citizen","zkp_proof":"proof","change_fee":{"denom":"uwrt","amount":"100"}}`
	var enc codec.Encoded
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/msgs/change-role/encode", body, &enc))
	assert.Equal(t, codec.TypeURL, enc.TypeURL)

	want := codec.MsgChangeRole{
		Address:   alice,
		NewRole:   codec.RoleCitizen,
		ZkpProof:  "proof",
		ChangeFee: &codec.Coin{Denom: "uwrt", Amount: "100"},
	}
	assert.Equal(t, base64.StdEncoding.EncodeToString(want.Marshal()), enc.Base64)

	var msg codec.MsgChangeRole
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/msgs/change-role/decode", `{"data":"`+enc.Base64+`"}`, &msg))
	assert.Equal(t, want, msg)
}

func TestGraphQLAndJSONRPCMounted(t *testing.T) {
	f := setup(t, nil)
	f.wallet.Track(alice)

	var gql struct {
		Data map[string][]string `json:"data"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/graphql", `{"query":"{ trackedAddresses }"}`, &gql))
	assert.Equal(t, []string{alice}, gql.Data["trackedAddresses"])

	var rpc struct {
		Result map[string][]string `json:"result"`
	}
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/rpc", `{"jsonrpc":"2.0","id":1,"method":"wallet_tracked"}`, &rpc))
	assert.Equal(t, []string{alice}, rpc.Result["addresses"])

	cfg := DefaultConfig()
	cfg.EnableGraphQL, cfg.EnableJSONRPC, cfg.EnableWebSocket = false, false, false
	rest := setup(t, cfg)
	assert.Equal(t, http.StatusNotFound, rest.do(t, http.MethodPost, "/graphql", `{"query":"{ trackedAddresses }"}`, nil))
}

func TestWebSocketPush(t *testing.T) {
	f := setup(t, nil)

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type":    websocket.TypeSubscribe,
		"payload": websocket.SubscribeRequest{Address: alice},
	}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, websocket.TypeSuccess, msg.Type)

	tx := []byte("pushed")
	body := `{"tx":"` + base64.StdEncoding.EncodeToString(tx) + `"}`
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/v1/accounts/"+alice+"/broadcast", body, nil))

	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, websocket.TypeTransactions, msg.Type)
	var ev websocket.TransactionsEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &ev))
	assert.Equal(t, alice, ev.Address)
	assert.Equal(t, []string{testutil.TxHash(tx)}, ev.Hashes)
}

func TestRateLimitAndCORS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EnableRateLimit = true
	cfg.RateLimitPerSecond = 0.001
	cfg.RateLimitBurst = 1
	f := setup(t, cfg)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/version", "", nil))
	assert.Equal(t, http.StatusTooManyRequests, f.do(t, http.MethodGet, "/version", "", nil))

	open := setup(t, nil)
	req, err := http.NewRequest(http.MethodOptions, open.http.URL+"/v1/tracked", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://wallet.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://wallet.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
