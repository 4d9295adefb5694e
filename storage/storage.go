package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/0xmhha/wallet-indexer/internal/constants"
)

// Common errors
var (
	// ErrNotFound is returned when a key is not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidKey is returned when an address or hash cannot be used as a key
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidData is returned when a stored value cannot be decoded
	ErrInvalidData = errors.New("invalid data")

	// ErrClosed is returned when operating on a closed storage
	ErrClosed = errors.New("storage closed")

	// ErrReadOnly is returned when attempting to write to a read-only storage
	ErrReadOnly = errors.New("storage is read-only")
)

// Reader provides read access to the per-address transaction index
type Reader interface {
	// Read returns up to limit hashes for address, newest first.
	// A limit <= 0 returns every hash.
	Read(ctx context.Context, address string, limit int) ([]string, error)

	// Count returns the number of hashes indexed for address
	Count(ctx context.Context, address string) (int, error)

	// Cursor returns the last scan time for address; ok is false when the
	// address was never scanned
	Cursor(ctx context.Context, address string) (last time.Time, ok bool, err error)

	// Addresses lists every address that has at least one indexed hash
	Addresses(ctx context.Context) ([]string, error)
}

// Writer provides write access to the per-address transaction index
type Writer interface {
	// Append inserts hash at the head of address's list. It is a no-op
	// returning false when the hash is already present.
	Append(ctx context.Context, address, hash string) (added bool, err error)

	// TouchCursor records now as the last scan time for address
	TouchCursor(ctx context.Context, address string, now time.Time) error
}

// Store is the durable transaction index
type Store interface {
	Reader
	Writer
	io.Closer
}

// ValidateAddress rejects addresses that would break the key layout of
// either backend
func ValidateAddress(address string) error {
	if address == "" || strings.ContainsAny(address, "/: \t\n") {
		return ErrInvalidKey
	}
	return nil
}

func validateHash(hash string) error {
	if hash == "" || strings.ContainsAny(hash, "/: \t\n") {
		return ErrInvalidKey
	}
	return nil
}

// Config holds PebbleDB configuration
type Config struct {
	// Path to the database directory
	Path string

	// Cache size in MB
	Cache int

	// MaxOpenFiles is the maximum number of open files
	MaxOpenFiles int

	// WriteBuffer size in MB
	WriteBuffer int

	// ReadOnly opens the database in read-only mode
	ReadOnly bool
}

// DefaultConfig returns a default configuration
func DefaultConfig(path string) *Config {
	return &Config{
		Path:         path,
		Cache:        constants.DefaultCacheSize,
		MaxOpenFiles: constants.DefaultMaxOpenFiles,
		WriteBuffer:  constants.DefaultWriteBuffer,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("path cannot be empty")
	}
	if c.Cache < 0 {
		return errors.New("cache size cannot be negative")
	}
	if c.MaxOpenFiles < 0 {
		return errors.New("max open files cannot be negative")
	}
	if c.WriteBuffer < 0 {
		return errors.New("write buffer size cannot be negative")
	}
	return nil
}
