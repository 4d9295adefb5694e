package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig holds Redis index configuration
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Validate checks if the configuration is valid
func (c *RedisConfig) Validate() error {
	if c.Addr == "" {
		return errors.New("redis address cannot be empty")
	}
	if c.KeyPrefix == "" {
		return errors.New("redis key prefix cannot be empty")
	}
	return nil
}

// appendScript adds the hash to the dedupe set and, only if it was new,
// pushes it onto the head of the list and registers the address.
// KEYS: set, list, addresses. ARGV: hash, address.
var appendScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
	redis.call('LPUSH', KEYS[2], ARGV[1])
	redis.call('SADD', KEYS[3], ARGV[2])
	return 1
end
return 0
`)

// RedisStorage implements Store on Redis lists and sets
type RedisStorage struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
	closed atomic.Bool
}

var _ Store = (*RedisStorage)(nil)

// NewRedisStorage connects to Redis and verifies the connection
func NewRedisStorage(ctx context.Context, cfg *RedisConfig) (*RedisStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStorage{
		client: client,
		prefix: cfg.KeyPrefix,
		logger: zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for the storage
func (s *RedisStorage) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

func (s *RedisStorage) listKey(address string) string {
	return s.prefix + ":txs:" + address
}

func (s *RedisStorage) setKey(address string) string {
	return s.prefix + ":txset:" + address
}

func (s *RedisStorage) cursorKey(address string) string {
	return s.prefix + ":cursor:" + address
}

func (s *RedisStorage) addressesKey() string {
	return s.prefix + ":addresses"
}

func (s *RedisStorage) ensureNotClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// Close closes the Redis client
func (s *RedisStorage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}

// Append inserts hash at the head of address's list unless already present
func (s *RedisStorage) Append(ctx context.Context, address, hash string) (bool, error) {
	if err := s.ensureNotClosed(); err != nil {
		return false, err
	}
	if err := ValidateAddress(address); err != nil {
		return false, err
	}
	if err := validateHash(hash); err != nil {
		return false, err
	}

	keys := []string{s.setKey(address), s.listKey(address), s.addressesKey()}
	added, err := appendScript.Run(ctx, s.client, keys, hash, address).Int()
	if err != nil {
		return false, fmt.Errorf("failed to append hash: %w", err)
	}

	if added == 1 {
		s.logger.Debug("hash appended", zap.String("address", address), zap.String("hash", hash))
	}
	return added == 1, nil
}

// Read returns up to limit hashes for address, newest first
func (s *RedisStorage) Read(ctx context.Context, address string, limit int) ([]string, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	hashes, err := s.client.LRange(ctx, s.listKey(address), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read hashes: %w", err)
	}
	return hashes, nil
}

// Count returns the number of hashes indexed for address
func (s *RedisStorage) Count(ctx context.Context, address string) (int, error) {
	if err := s.ensureNotClosed(); err != nil {
		return 0, err
	}
	if err := ValidateAddress(address); err != nil {
		return 0, err
	}

	n, err := s.client.LLen(ctx, s.listKey(address)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count hashes: %w", err)
	}
	return int(n), nil
}

// Cursor returns the last scan time recorded for address
func (s *RedisStorage) Cursor(ctx context.Context, address string) (time.Time, bool, error) {
	if err := s.ensureNotClosed(); err != nil {
		return time.Time{}, false, err
	}
	if err := ValidateAddress(address); err != nil {
		return time.Time{}, false, err
	}

	raw, err := s.client.Get(ctx, s.cursorKey(address)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get cursor: %w", err)
	}

	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: cursor %q", ErrInvalidData, raw)
	}
	return time.Unix(0, nanos), true, nil
}

// TouchCursor records now as the last scan time for address
func (s *RedisStorage) TouchCursor(ctx context.Context, address string, now time.Time) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if err := ValidateAddress(address); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.cursorKey(address), strconv.FormatInt(now.UnixNano(), 10), 0).Err(); err != nil {
		return fmt.Errorf("failed to set cursor: %w", err)
	}
	return nil
}

// Addresses lists every address with at least one indexed hash, sorted
func (s *RedisStorage) Addresses(ctx context.Context) ([]string, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	addresses, err := s.client.SMembers(ctx, s.addressesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	sort.Strings(addresses)
	return addresses, nil
}
