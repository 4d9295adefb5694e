package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/client"
	"github.com/0xmhha/wallet-indexer/fetch"
	"github.com/0xmhha/wallet-indexer/internal/config"
	"github.com/0xmhha/wallet-indexer/internal/logger"
	"github.com/0xmhha/wallet-indexer/storage"
	"github.com/0xmhha/wallet-indexer/wallet"
)

const metricsNamespace = "walletidx"

// cli carries state shared by the subcommands
type cli struct {
	ctx  context.Context
	out  io.Writer
	opts Options

	// registerer defaults to the process-wide prometheus registry
	registerer prometheus.Registerer
}

// app is the set of components a node-backed command works with
type app struct {
	cfg           *config.Config
	log           *zap.Logger
	registerer    prometheus.Registerer
	node          *client.Client
	clientMetrics *client.Metrics
	store         storage.Store
	wallet        *wallet.Service
}

// loadConfig resolves defaults, the config file, the environment and the
// global flags, in increasing order of priority, then validates the result
func (c *cli) loadConfig(apply func(*config.Config)) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	if c.opts.Config != "" {
		if err := cfg.LoadFromFile(c.opts.Config); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	applyFlags(cfg, &c.opts)
	if apply != nil {
		apply(cfg)
	}
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies the global command-line flags to configuration
func applyFlags(cfg *config.Config, opts *Options) {
	if opts.RPC != "" {
		cfg.RPC.Endpoint = opts.RPC
	}
	if opts.Backend != "" {
		cfg.Database.Backend = opts.Backend
	}
	if opts.DB != "" {
		cfg.Database.Path = opts.DB
	}
	if opts.RedisAddr != "" {
		cfg.Database.Redis.Addr = opts.RedisAddr
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
}

// open builds the node client, the index and the wallet service
func (c *cli) open(cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	reg := c.registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	clientMetrics := client.NewMetrics(reg, metricsNamespace)
	node, err := client.NewClient(&client.Config{
		Endpoint:          cfg.RPC.Endpoint,
		Timeout:           cfg.RPC.Timeout,
		RequestsPerSecond: cfg.RPC.RequestsPerSecond,
		Burst:             cfg.RPC.Burst,
		Metrics:           clientMetrics,
		Logger:            logger.WithComponent(log, "client"),
	})
	if err != nil {
		_ = log.Sync()
		return nil, fmt.Errorf("failed to create node client: %w", err)
	}

	store, err := storage.Open(c.ctx, backendConfig(cfg), logger.WithComponent(log, "storage"))
	if err != nil {
		node.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	svc, err := wallet.NewService(node, store, &wallet.Config{
		Scanner: &fetch.ScannerConfig{
			Window:      cfg.Scanner.Window,
			MinInterval: cfg.Scanner.MinInterval,
		},
		Fetcher: &fetch.FetcherConfig{
			Workers:      cfg.Details.Workers,
			DefaultLimit: cfg.Details.Limit,
		},
		Addresses: cfg.Scanner.Addresses,
	}, logger.WithComponent(log, "wallet"))
	if err != nil {
		_ = store.Close()
		node.Close()
		_ = log.Sync()
		return nil, fmt.Errorf("failed to create wallet service: %w", err)
	}
	svc.SetMetrics(fetch.NewMetrics(reg, metricsNamespace))

	return &app{
		cfg:           cfg,
		log:           log,
		registerer:    reg,
		node:          node,
		clientMetrics: clientMetrics,
		store:         store,
		wallet:        svc,
	}, nil
}

// Close releases the components in reverse order of creation
func (a *app) Close() {
	a.wallet.Close()
	if err := a.store.Close(); err != nil {
		a.log.Error("failed to close index", zap.Error(err))
	}
	a.node.Close()
	_ = a.log.Sync()
}

func backendConfig(cfg *config.Config) *storage.BackendConfig {
	if cfg.Database.Backend == config.BackendRedis {
		return &storage.BackendConfig{
			Type: storage.BackendTypeRedis,
			Redis: &storage.RedisConfig{
				Addr:      cfg.Database.Redis.Addr,
				Password:  cfg.Database.Redis.Password,
				DB:        cfg.Database.Redis.DB,
				PoolSize:  cfg.Database.Redis.PoolSize,
				KeyPrefix: cfg.Database.Redis.KeyPrefix,
			},
		}
	}

	pebbleConfig := storage.DefaultConfig(cfg.Database.Path)
	pebbleConfig.ReadOnly = cfg.Database.ReadOnly
	return &storage.BackendConfig{
		Type:   storage.BackendTypePebble,
		Pebble: pebbleConfig,
	}
}

func (c *cli) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
