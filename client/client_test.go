package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/events"
	nodeutil "github.com/0xmhha/wallet-indexer/internal/testutil"
)

func newTestClient(t *testing.T, node *nodeutil.Node) *Client {
	t.Helper()

	c, err := NewClient(&Config{
		Endpoint: node.URL(),
		Timeout:  5 * time.Second,
		Logger:   nodeutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "nil config",
			config:  nil,
			wantErr: true,
		},
		{
			name: "empty endpoint",
			config: &Config{
				Endpoint: "",
			},
			wantErr: true,
		},
		{
			name: "invalid endpoint",
			config: &Config{
				Endpoint: "invalid://endpoint",
				Timeout:  5 * time.Second,
			},
			wantErr: true,
		},
		{
			name: "unreachable node",
			config: &Config{
				Endpoint: "http://127.0.0.1:1",
				Timeout:  2 * time.Second,
			},
			wantErr: true,
		},
		{
			name: "unreachable node without ping",
			config: &Config{
				Endpoint: "http://127.0.0.1:1",
				SkipPing: true,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if client != nil {
				client.Close()
			}
		})
	}
}

func TestClientStatus(t *testing.T) {
	node := nodeutil.NewNode(t)
	node.AddBlock(nodeutil.Block{Height: 42})
	c := newTestClient(t, node)

	latest, err := c.LatestHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), latest)

	status, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "volnix-test", status.NodeInfo.Network)
	assert.False(t, status.SyncInfo.CatchingUp)
}

func TestClientBlockAndResults(t *testing.T) {
	ctx := context.Background()
	node := nodeutil.NewNode(t)
	blockTime := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	node.AddBlock(nodeutil.Block{
		Height: 42,
		Time:   blockTime,
		Txs: []nodeutil.Tx{
			{Raw: []byte("tx-one"), Events: nodeutil.TransferEvents("volnix1a", "volnix1b", "5uvx", events.EncodingPlain)},
			{Raw: []byte("tx-two"), Code: 5},
		},
	})
	c := newTestClient(t, node)

	block, err := c.Block(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), int64(block.Block.Header.Height))
	assert.True(t, block.Block.Header.Time.Equal(blockTime))
	assert.Equal(t, [][]byte{[]byte("tx-one"), []byte("tx-two")}, block.Txs())

	results, err := c.BlockResults(ctx, 42)
	require.NoError(t, err)
	require.Len(t, results.TxsResults, 2)
	assert.Equal(t, uint32(0), results.TxsResults[0].Code)
	assert.Equal(t, uint32(5), results.TxsResults[1].Code)
	require.Len(t, results.TxsResults[0].Events, 4)
	assert.Equal(t, events.EncodingPlain, results.TxsResults[0].Events[1].Attributes[0].Encoding)

	_, err = c.Block(ctx, 99)
	require.Error(t, err)
	assert.True(t, IsProtocol(err), "unknown height is a protocol error, got %v", err)
}

func TestClientTx(t *testing.T) {
	ctx := context.Background()
	node := nodeutil.NewNode(t)
	raw := []byte("tx-one")
	node.AddBlock(nodeutil.Block{Height: 9, Txs: []nodeutil.Tx{{Raw: raw, Code: 0}}})
	c := newTestClient(t, node)

	hash := nodeutil.TxHash(raw)
	tx, err := c.Tx(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, hash, tx.Hash)
	assert.Equal(t, int64(9), int64(tx.Height))
	assert.Equal(t, uint32(0), tx.TxResult.Code)

	t.Run("unknown hash", func(t *testing.T) {
		_, err := c.Tx(ctx, nodeutil.TxHash([]byte("missing")))
		require.Error(t, err)
		assert.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("invalid hex", func(t *testing.T) {
		_, err := c.Tx(ctx, "zz")
		require.Error(t, err)
		assert.False(t, IsNotFound(err))
	})

	t.Run("non json body", func(t *testing.T) {
		node.RespondRaw("tx", "<html>bad gateway</html>")
		_, err := c.Tx(ctx, hash)
		require.Error(t, err)
		assert.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("reply without height", func(t *testing.T) {
		node.RespondRaw("tx", `{"jsonrpc":"2.0","id":1,"result":{"unexpected":true}}`)
		_, err := c.Tx(ctx, hash)
		require.Error(t, err)
		assert.True(t, IsNotFound(err), "got %v", err)
		assert.True(t, IsProtocol(err), "got %v", err)
	})

	t.Run("reply for another hash", func(t *testing.T) {
		other := nodeutil.TxHash([]byte("other"))
		node.RespondRaw("tx", `{"jsonrpc":"2.0","id":1,"result":{"hash":"`+other+`","height":"9","tx_result":{"code":0}}}`)
		_, err := c.Tx(ctx, hash)
		require.Error(t, err)
		assert.True(t, IsNotFound(err), "got %v", err)
	})
}

func TestClientBroadcastTxSync(t *testing.T) {
	ctx := context.Background()
	node := nodeutil.NewNode(t)
	node.AddBlock(nodeutil.Block{Height: 1})
	c := newTestClient(t, node)

	res, err := c.BroadcastTxSync(ctx, []byte("signed"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), res.Code)
	assert.Equal(t, nodeutil.TxHash([]byte("signed")), res.Hash)
	assert.Equal(t, [][]byte{[]byte("signed")}, node.Broadcasts())

	node.OnBroadcast(func([]byte) (uint32, string) { return 13, "insufficient fee" })
	res, err = c.BroadcastTxSync(ctx, []byte("cheap"))
	require.NoError(t, err)
	assert.Equal(t, uint32(13), res.Code)
	assert.Equal(t, "insufficient fee", res.Log)

	_, err = c.BroadcastTxSync(ctx, nil)
	assert.Error(t, err)
}

func TestClientErrorClassification(t *testing.T) {
	ctx := context.Background()
	node := nodeutil.NewNode(t)
	node.AddBlock(nodeutil.Block{Height: 3})
	c := newTestClient(t, node)

	node.Fail("block_results", 3, http.StatusInternalServerError)
	_, err := c.BlockResults(ctx, 3)
	require.Error(t, err)
	var pe *ProtocolError
	require.True(t, errors.As(err, &pe), "got %T", err)
	assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
	assert.Equal(t, -32603, pe.Code)

	node.Close()
	_, err = c.Status(ctx)
	require.Error(t, err)
	assert.True(t, IsNetwork(err), "closed node is a network error, got %v", err)
}

func TestClientRateLimit(t *testing.T) {
	node := nodeutil.NewNode(t)
	node.AddBlock(nodeutil.Block{Height: 1})

	c, err := NewClient(&Config{
		Endpoint:          node.URL(),
		RequestsPerSecond: 10,
		Burst:             1,
		SkipPing:          true,
	})
	require.NoError(t, err)
	defer c.Close()

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := c.Status(context.Background())
		require.NoError(t, err)
	}
	// burst of one then 100ms per call
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Status(ctx)
	assert.True(t, IsNetwork(err))
}

func TestClientMetrics(t *testing.T) {
	node := nodeutil.NewNode(t)
	node.AddBlock(nodeutil.Block{Height: 1})
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	c, err := NewClient(&Config{Endpoint: node.URL(), Metrics: metrics, Logger: zap.NewNop()})
	require.NoError(t, err)
	defer c.Close()

	_, _ = c.Tx(context.Background(), nodeutil.TxHash([]byte("nope")))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("status", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.RequestsTotal.WithLabelValues("tx", "not_found")))
}

func TestInt64UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: `"42"`, want: 42},
		{in: `42`, want: 42},
		{in: `""`, want: 0},
		{in: `null`, want: 0},
		{in: `"4x"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v Int64
			err := v.UnmarshalJSON([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, int64(v))
		})
	}
}
