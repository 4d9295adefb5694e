package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/wallet-indexer/internal/constants"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override
const EnvPrefix = "WALLETIDX_"

// Storage backends
const (
	BackendPebble = "pebble"
	BackendRedis  = "redis"
)

// Config holds all configuration for the wallet indexer
type Config struct {
	RPC      RPCConfig      `yaml:"rpc"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Details  DetailsConfig  `yaml:"details"`
	API      APIConfig      `yaml:"api"`
	Watch    WatchConfig    `yaml:"watch"`
	Notify   NotifyConfig   `yaml:"notify"`
}

// RPCConfig holds node RPC client configuration
type RPCConfig struct {
	// Endpoint is the CometBFT RPC URL, e.g. http://localhost:26657
	Endpoint string `yaml:"endpoint"`
	// WSEndpoint is the websocket URL used by watch mode; derived from Endpoint when empty
	WSEndpoint string        `yaml:"ws_endpoint"`
	Timeout    time.Duration `yaml:"timeout"`
	// RequestsPerSecond throttles all calls made against the node
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// DatabaseConfig selects and configures the transaction index backend
type DatabaseConfig struct {
	// Backend is "pebble" (default) or "redis"
	Backend  string      `yaml:"backend"`
	Path     string      `yaml:"path"`
	ReadOnly bool        `yaml:"readonly"`
	Redis    RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ScannerConfig holds block scanner settings
type ScannerConfig struct {
	// Window is the number of most recent heights walked per scan
	Window uint64 `yaml:"window"`
	// MinInterval is the per-address rate limit between scans
	MinInterval time.Duration `yaml:"min_interval"`
	// Schedule is a cron spec for periodic scans of Addresses; empty disables it
	Schedule string `yaml:"schedule"`
	// Addresses are scanned on Schedule and on every new block in watch mode
	Addresses []string `yaml:"addresses"`
}

// DetailsConfig holds detail fetcher settings
type DetailsConfig struct {
	Limit   int `yaml:"limit"`
	Workers int `yaml:"workers"`
}

// APIConfig holds API server configuration
type APIConfig struct {
	Enabled         bool     `yaml:"enabled"`
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	EnableGraphQL   bool     `yaml:"enable_graphql"`
	EnableJSONRPC   bool     `yaml:"enable_jsonrpc"`
	EnableWebSocket bool     `yaml:"enable_websocket"`
	EnableCORS      bool     `yaml:"enable_cors"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	// RateLimitPerSecond enables per-IP rate limiting when positive
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
}

// WatchConfig controls the NewBlock subscription
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NotifyConfig configures webhook delivery of newly indexed transactions
type NotifyConfig struct {
	Webhooks   []WebhookConfig `yaml:"webhooks"`
	Timeout    time.Duration   `yaml:"timeout"`
	MaxRetries int             `yaml:"max_retries"`
}

// WebhookConfig is one webhook receiver
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Secret  string            `yaml:"secret,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults sets default values for the configuration
func (c *Config) SetDefaults() {
	if c.RPC.Timeout == 0 {
		c.RPC.Timeout = constants.DefaultRPCTimeout
	}
	if c.RPC.RequestsPerSecond == 0 {
		c.RPC.RequestsPerSecond = constants.DefaultRequestsPerSecond
	}
	if c.RPC.Burst == 0 {
		c.RPC.Burst = constants.DefaultRequestBurst
	}

	if c.Database.Backend == "" {
		c.Database.Backend = BackendPebble
	}
	if c.Database.Redis.PoolSize == 0 {
		c.Database.Redis.PoolSize = constants.DefaultRedisPoolSize
	}
	if c.Database.Redis.KeyPrefix == "" {
		c.Database.Redis.KeyPrefix = constants.DefaultRedisKeyPrefix
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}

	if c.Scanner.Window == 0 {
		c.Scanner.Window = constants.DefaultScanWindow
	}
	if c.Scanner.MinInterval == 0 {
		c.Scanner.MinInterval = constants.DefaultScanMinInterval
	}

	if c.Details.Limit == 0 {
		c.Details.Limit = constants.DefaultHistoryLimit
	}
	if c.Details.Workers == 0 {
		c.Details.Workers = constants.DefaultDetailWorkers
	}

	if c.API.Host == "" {
		c.API.Host = constants.DefaultAPIHost
	}
	if c.API.Port == 0 {
		c.API.Port = constants.DefaultAPIPort
	}
	if c.API.RateLimitPerSecond > 0 && c.API.RateLimitBurst == 0 {
		c.API.RateLimitBurst = max(1, int(c.API.RateLimitPerSecond*2))
	}
	if c.API.AllowedOrigins == nil {
		c.API.AllowedOrigins = []string{"*"}
	}

	if c.Notify.Timeout == 0 {
		c.Notify.Timeout = constants.DefaultWebhookTimeout
	}
	if c.Notify.MaxRetries == 0 {
		c.Notify.MaxRetries = constants.DefaultWebhookRetries
	}
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables take precedence over file configuration.
func (c *Config) LoadFromEnv() error {
	if v := env("RPC_ENDPOINT"); v != "" {
		c.RPC.Endpoint = v
	}
	if v := env("RPC_WS_ENDPOINT"); v != "" {
		c.RPC.WSEndpoint = v
	}
	if v := env("RPC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sRPC_TIMEOUT: %w", EnvPrefix, err)
		}
		c.RPC.Timeout = d
	}
	if v := env("RPC_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sRPC_RPS: %w", EnvPrefix, err)
		}
		c.RPC.RequestsPerSecond = f
	}

	if v := env("DB_BACKEND"); v != "" {
		c.Database.Backend = v
	}
	if v := env("DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := env("DB_READONLY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sDB_READONLY: %w", EnvPrefix, err)
		}
		c.Database.ReadOnly = b
	}
	if v := env("REDIS_ADDR"); v != "" {
		c.Database.Redis.Addr = v
	}
	if v := env("REDIS_PASSWORD"); v != "" {
		c.Database.Redis.Password = v
	}
	if v := env("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sREDIS_DB: %w", EnvPrefix, err)
		}
		c.Database.Redis.DB = n
	}

	if v := env("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	if v := env("SCAN_WINDOW"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %sSCAN_WINDOW: %w", EnvPrefix, err)
		}
		c.Scanner.Window = n
	}
	if v := env("SCAN_MIN_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %sSCAN_MIN_INTERVAL: %w", EnvPrefix, err)
		}
		c.Scanner.MinInterval = d
	}
	if v := env("SCAN_SCHEDULE"); v != "" {
		c.Scanner.Schedule = v
	}
	if v := env("ADDRESSES"); v != "" {
		c.Scanner.Addresses = splitList(v)
	}

	if v := env("DETAIL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sDETAIL_WORKERS: %w", EnvPrefix, err)
		}
		c.Details.Workers = n
	}

	if v := env("API_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sAPI_ENABLED: %w", EnvPrefix, err)
		}
		c.API.Enabled = b
	}
	if v := env("API_HOST"); v != "" {
		c.API.Host = v
	}
	if v := env("API_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sAPI_PORT: %w", EnvPrefix, err)
		}
		c.API.Port = n
	}
	if v := env("API_GRAPHQL"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sAPI_GRAPHQL: %w", EnvPrefix, err)
		}
		c.API.EnableGraphQL = b
	}
	if v := env("API_JSONRPC"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sAPI_JSONRPC: %w", EnvPrefix, err)
		}
		c.API.EnableJSONRPC = b
	}
	if v := env("API_WEBSOCKET"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sAPI_WEBSOCKET: %w", EnvPrefix, err)
		}
		c.API.EnableWebSocket = b
	}
	if v := env("API_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %sAPI_RATE_LIMIT: %w", EnvPrefix, err)
		}
		c.API.RateLimitPerSecond = f
	}

	if v := env("WATCH_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %sWATCH_ENABLED: %w", EnvPrefix, err)
		}
		c.Watch.Enabled = b
	}

	if v := env("WEBHOOK_URLS"); v != "" {
		secret := env("WEBHOOK_SECRET")
		c.Notify.Webhooks = nil
		for _, u := range splitList(v) {
			c.Notify.Webhooks = append(c.Notify.Webhooks, WebhookConfig{URL: u, Secret: secret})
		}
	}

	return nil
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("RPC endpoint is required")
	}
	if c.RPC.Timeout <= 0 {
		return fmt.Errorf("RPC timeout must be positive")
	}
	if c.RPC.RequestsPerSecond <= 0 {
		return fmt.Errorf("RPC requests per second must be positive")
	}

	switch c.Database.Backend {
	case BackendPebble:
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for the pebble backend")
		}
	case BackendRedis:
		if c.Database.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid database backend %q, must be one of: pebble, redis", c.Database.Backend)
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Log.Level)
	}

	validLogFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format %q, must be one of: json, console", c.Log.Format)
	}

	if c.Scanner.Window == 0 {
		return fmt.Errorf("scan window must be positive")
	}
	if c.Scanner.MinInterval < 0 {
		return fmt.Errorf("scan min interval cannot be negative")
	}
	if c.Details.Workers <= 0 {
		return fmt.Errorf("detail workers must be positive")
	}
	if c.Details.Limit <= 0 || c.Details.Limit > constants.MaxHistoryLimit {
		return fmt.Errorf("detail limit must be between 1 and %d", constants.MaxHistoryLimit)
	}

	if c.API.Enabled {
		if c.API.Port < constants.MinPort || c.API.Port > constants.MaxPort {
			return fmt.Errorf("invalid API port %d", c.API.Port)
		}
		if c.API.RateLimitPerSecond < 0 {
			return fmt.Errorf("API rate limit cannot be negative")
		}
	}

	for i, hook := range c.Notify.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has no URL", i)
		}
	}
	if c.Notify.MaxRetries < 0 {
		return fmt.Errorf("webhook max retries cannot be negative")
	}

	return nil
}

// Load loads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configFile string) (*Config, error) {
	cfg := NewConfig()

	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
