package constants

import "time"

// API Server Constants
const (
	// DefaultAPIHost is the default API server host
	DefaultAPIHost = "localhost"

	// DefaultAPIPort is the default API server port
	DefaultAPIPort = 8080

	// MinPort is the minimum valid port number
	MinPort = 1

	// MaxPort is the maximum valid port number
	MaxPort = 65535

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxHeaderBytes is the default maximum request header size (1 MB)
	DefaultMaxHeaderBytes = BytesPerMB

	// DefaultGraphQLPath is the default GraphQL endpoint path
	DefaultGraphQLPath = "/graphql"

	// DefaultJSONRPCPath is the default JSON-RPC endpoint path
	DefaultJSONRPCPath = "/rpc"

	// DefaultWebSocketPath is the default WebSocket endpoint path
	DefaultWebSocketPath = "/ws"

	// DefaultRateLimitPerSecond is the per-IP request rate when rate limiting is on
	DefaultRateLimitPerSecond = 100

	// DefaultRateLimitBurst is the per-IP burst when rate limiting is on
	DefaultRateLimitBurst = 200

	// MaxJSONRPCBatchSize caps the number of calls in one JSON-RPC batch
	MaxJSONRPCBatchSize = 100

	// MaxJSONRPCBodyBytes caps the size of a JSON-RPC request body
	MaxJSONRPCBodyBytes = 2 * BytesPerMB
)

// Node RPC Constants
const (
	// DefaultRPCTimeout bounds a single JSON-RPC round trip to the node
	DefaultRPCTimeout = 30 * time.Second

	// DefaultRequestsPerSecond is the client-side request budget against the node
	DefaultRequestsPerSecond = 20

	// DefaultRequestBurst is the client-side burst allowance
	DefaultRequestBurst = 20
)

// Scanner Constants
const (
	// DefaultScanWindow is the number of most recent heights walked per scan
	DefaultScanWindow = 100

	// DefaultScanMinInterval is the minimum time between two scans of one address
	DefaultScanMinInterval = 30 * time.Second
)

// Detail Fetcher Constants
const (
	// DefaultHistoryLimit is the default number of records returned for an address
	DefaultHistoryLimit = 50

	// MaxHistoryLimit caps the records returned by a single request
	MaxHistoryLimit = 500

	// DefaultDetailWorkers bounds concurrent point lookups
	DefaultDetailWorkers = 16
)

// Storage Constants
const (
	// DefaultCacheSize is the default cache size in MB for PebbleDB
	DefaultCacheSize = 32

	// DefaultMaxOpenFiles is the default maximum number of open files for PebbleDB
	DefaultMaxOpenFiles = 500

	// DefaultWriteBuffer is the default write buffer size in MB for PebbleDB
	DefaultWriteBuffer = 16

	// DefaultRedisKeyPrefix namespaces every Redis key written by the index
	DefaultRedisKeyPrefix = "walletidx"

	// DefaultRedisPoolSize is the go-redis connection pool size
	DefaultRedisPoolSize = 20
)

// WebSocket Constants
const (
	// DefaultWSReconnectDelay is the wait before redialing a dropped subscription
	DefaultWSReconnectDelay = 5 * time.Second

	// DefaultWSPongTimeout is the read deadline extended on every pong
	DefaultWSPongTimeout = 60 * time.Second

	// DefaultWSPingInterval is how often the subscriber pings the node
	DefaultWSPingInterval = 30 * time.Second

	// DefaultWSWriteTimeout is the write deadline for control frames
	DefaultWSWriteTimeout = 10 * time.Second
)

// Webhook Constants
const (
	// DefaultWebhookTimeout bounds one delivery attempt
	DefaultWebhookTimeout = 10 * time.Second

	// DefaultWebhookRetries is the number of attempts after the first failed one
	DefaultWebhookRetries = 3
)

// Size Constants
const (
	BytesPerKB = 1024
	BytesPerMB = 1024 * BytesPerKB
)
