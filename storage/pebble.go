package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// PebbleStorage implements Store using PebbleDB
type PebbleStorage struct {
	db     *pebble.DB
	config *Config
	logger *zap.Logger
	closed atomic.Bool

	// appendMu serializes the check-then-insert of Append so two
	// concurrent appends of one hash cannot both win
	appendMu sync.Mutex
}

var _ Store = (*PebbleStorage)(nil)

// NewPebbleStorage opens (or creates) a PebbleDB index at cfg.Path
func NewPebbleStorage(cfg *Config) (*PebbleStorage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(int64(cfg.Cache) << 20),
		MaxOpenFiles: cfg.MaxOpenFiles,
		MemTableSize: uint64(cfg.WriteBuffer) << 20,
		ReadOnly:     cfg.ReadOnly,
	}
	defer opts.Cache.Unref()

	db, err := pebble.Open(cfg.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &PebbleStorage{
		db:     db,
		config: cfg,
		logger: zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for the storage
func (s *PebbleStorage) SetLogger(logger *zap.Logger) {
	s.logger = logger
}

func (s *PebbleStorage) ensureNotClosed() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func (s *PebbleStorage) ensureNotReadOnly() error {
	if s.config.ReadOnly {
		return ErrReadOnly
	}
	return nil
}

// Close closes the storage and releases resources
func (s *PebbleStorage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// get copies the value for key out of pebble's buffer
func (s *PebbleStorage) get(key []byte) ([]byte, error) {
	value, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// nextSeq returns the sequence number the next append for address will use
func (s *PebbleStorage) nextSeq(address string) (uint64, error) {
	value, err := s.get(AddressSeqKey(address))
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}
	return DecodeUint64(value)
}

// Append inserts hash at the head of address's list unless already present
func (s *PebbleStorage) Append(ctx context.Context, address, hash string) (bool, error) {
	if err := s.ensureNotClosed(); err != nil {
		return false, err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return false, err
	}
	if err := ValidateAddress(address); err != nil {
		return false, err
	}
	if err := validateHash(hash); err != nil {
		return false, err
	}

	s.appendMu.Lock()
	defer s.appendMu.Unlock()

	if _, err := s.get(AddressHashKey(address, hash)); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	seq, err := s.nextSeq(address)
	if err != nil {
		return false, err
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(AddressTransactionKey(address, seq), []byte(hash), nil); err != nil {
		return false, err
	}
	if err := batch.Set(AddressHashKey(address, hash), EncodeUint64(seq), nil); err != nil {
		return false, err
	}
	if err := batch.Set(AddressSeqKey(address), EncodeUint64(seq+1), nil); err != nil {
		return false, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return false, fmt.Errorf("failed to commit append: %w", err)
	}

	s.logger.Debug("hash appended",
		zap.String("address", address),
		zap.String("hash", hash),
		zap.Uint64("seq", seq),
	)
	return true, nil
}

// Read returns up to limit hashes for address, newest first
func (s *PebbleStorage) Read(ctx context.Context, address string, limit int) ([]string, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}

	prefix := AddressTransactionKeyPrefix(address)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	hashes := []string{}
	for iter.First(); iter.Valid(); iter.Next() {
		if limit > 0 && len(hashes) >= limit {
			break
		}
		hashes = append(hashes, string(iter.Value()))
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}

	return hashes, nil
}

// Count returns the number of hashes indexed for address
func (s *PebbleStorage) Count(ctx context.Context, address string) (int, error) {
	if err := s.ensureNotClosed(); err != nil {
		return 0, err
	}
	if err := ValidateAddress(address); err != nil {
		return 0, err
	}

	seq, err := s.nextSeq(address)
	if err != nil {
		return 0, err
	}
	return int(seq), nil
}

// Cursor returns the last scan time recorded for address
func (s *PebbleStorage) Cursor(ctx context.Context, address string) (time.Time, bool, error) {
	if err := s.ensureNotClosed(); err != nil {
		return time.Time{}, false, err
	}
	if err := ValidateAddress(address); err != nil {
		return time.Time{}, false, err
	}

	value, err := s.get(CursorKey(address))
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get cursor: %w", err)
	}

	nanos, err := DecodeUint64(value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to decode cursor: %w", err)
	}
	return time.Unix(0, int64(nanos)), true, nil
}

// TouchCursor records now as the last scan time for address
func (s *PebbleStorage) TouchCursor(ctx context.Context, address string, now time.Time) error {
	if err := s.ensureNotClosed(); err != nil {
		return err
	}
	if err := s.ensureNotReadOnly(); err != nil {
		return err
	}
	if err := ValidateAddress(address); err != nil {
		return err
	}

	return s.db.Set(CursorKey(address), EncodeUint64(uint64(now.UnixNano())), pebble.Sync)
}

// Addresses lists every address with at least one indexed hash
func (s *PebbleStorage) Addresses(ctx context.Context) ([]string, error) {
	if err := s.ensureNotClosed(); err != nil {
		return nil, err
	}

	prefix := []byte(prefixAddrSeq)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var addresses []string
	for iter.First(); iter.Valid(); iter.Next() {
		address, err := ParseAddressSeqKey(iter.Key())
		if err != nil {
			s.logger.Warn("skipping malformed sequence key", zap.ByteString("key", iter.Key()))
			continue
		}
		addresses = append(addresses, address)
	}

	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iterator error: %w", err)
	}
	return addresses, nil
}
