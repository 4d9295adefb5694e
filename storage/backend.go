package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// BackendType identifies the type of storage backend
type BackendType string

const (
	// BackendTypePebble stores the index in a local PebbleDB directory
	BackendTypePebble BackendType = "pebble"

	// BackendTypeRedis stores the index in a Redis instance
	BackendTypeRedis BackendType = "redis"
)

// BackendConfig selects a backend and carries its settings
type BackendConfig struct {
	Type   BackendType
	Pebble *Config
	Redis  *RedisConfig
}

// Open creates the Store described by cfg
func Open(ctx context.Context, cfg *BackendConfig, logger *zap.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Type {
	case BackendTypePebble, "":
		s, err := NewPebbleStorage(cfg.Pebble)
		if err != nil {
			return nil, err
		}
		s.SetLogger(logger)
		logger.Info("opened pebble index", zap.String("path", cfg.Pebble.Path), zap.Bool("readonly", cfg.Pebble.ReadOnly))
		return s, nil

	case BackendTypeRedis:
		s, err := NewRedisStorage(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		s.SetLogger(logger)
		logger.Info("connected redis index", zap.String("addr", cfg.Redis.Addr), zap.Int("db", cfg.Redis.DB))
		return s, nil

	default:
		return nil, fmt.Errorf("unsupported backend type %q", cfg.Type)
	}
}
