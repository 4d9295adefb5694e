// Package wallet ties the node client, the transaction index, the scanner and
// the detail fetcher into one handle that callers construct once and pass
// around.
package wallet

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/client"
	"github.com/0xmhha/wallet-indexer/fetch"
	"github.com/0xmhha/wallet-indexer/internal/constants"
	"github.com/0xmhha/wallet-indexer/storage"
)

// Node is the node RPC surface the service needs
type Node interface {
	fetch.Client
	BroadcastTxSync(ctx context.Context, tx []byte) (*client.BroadcastResult, error)
}

// Config holds service configuration
type Config struct {
	Scanner *fetch.ScannerConfig
	Fetcher *fetch.FetcherConfig

	// Addresses are tracked from startup
	Addresses []string

	// MaxLimit caps the number of records one call may request
	MaxLimit int
}

// DiscoveryHandler is called with hashes newly indexed for an address
type DiscoveryHandler func(address string, hashes []string)

// Service is the explicit wallet indexer handle
type Service struct {
	node    Node
	store   storage.Store
	scanner *fetch.Scanner
	fetcher *fetch.Fetcher
	config  *Config
	logger  *zap.Logger

	scanLocks sync.Map // address -> *sync.Mutex

	mu       sync.RWMutex
	tracked  map[string]struct{}
	handlers []DiscoveryHandler

	scheduler *scheduler
}

// NewService creates the service. The caller keeps ownership of node and store.
func NewService(node Node, store storage.Store, config *Config, logger *zap.Logger) (*Service, error) {
	if node == nil {
		return nil, fmt.Errorf("node cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil {
		config = &Config{}
	}
	if config.Scanner == nil {
		config.Scanner = fetch.DefaultScannerConfig()
	}
	if config.Fetcher == nil {
		config.Fetcher = &fetch.FetcherConfig{}
	}
	if config.MaxLimit <= 0 {
		config.MaxLimit = constants.MaxHistoryLimit
	}
	if err := config.Scanner.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scanner config: %w", err)
	}
	if err := config.Fetcher.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fetcher config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		node:    node,
		store:   store,
		scanner: fetch.NewScanner(node, store, config.Scanner, logger.Named("scanner")),
		fetcher: fetch.NewFetcher(node, store, config.Fetcher, logger.Named("fetcher")),
		config:  config,
		logger:  logger,
		tracked: make(map[string]struct{}),
	}
	for _, addr := range config.Addresses {
		s.Track(addr)
	}
	return s, nil
}

// SetMetrics attaches scanner and fetcher metrics
func (s *Service) SetMetrics(m *fetch.Metrics) {
	s.scanner.SetMetrics(m)
	s.fetcher.SetMetrics(m)
}

// OnDiscovered registers a handler for newly indexed hashes
func (s *Service) OnDiscovered(h DiscoveryHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

// Close stops scheduling and releases the fetcher's workers
func (s *Service) Close() {
	s.StopSchedule()
	s.fetcher.Close()
}

// Scan runs one scan for address. Scans of the same address are serialized.
func (s *Service) Scan(ctx context.Context, address string) (*fetch.ScanResult, error) {
	lock, _ := s.scanLocks.LoadOrStore(address, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	result, err := s.scanner.Scan(ctx, address)
	if result != nil && len(result.Discovered) > 0 {
		s.notify(address, result.Discovered)
	}
	return result, err
}

// Hashes returns up to limit indexed hashes for address, newest first
func (s *Service) Hashes(ctx context.Context, address string, limit int) ([]string, error) {
	return s.store.Read(ctx, address, s.clampLimit(limit))
}

// Details resolves indexed hashes into records without scanning first
func (s *Service) Details(ctx context.Context, address string, limit int) ([]fetch.TransactionRecord, error) {
	return s.fetcher.FetchDetails(ctx, address, s.clampLimit(limit))
}

// History scans address and then returns its records. A scan that fails on
// the index is reported; node trouble only makes the result incomplete.
func (s *Service) History(ctx context.Context, address string, limit int) ([]fetch.TransactionRecord, *fetch.ScanResult, error) {
	result, err := s.Scan(ctx, address)
	if err != nil {
		return nil, result, err
	}
	records, err := s.Details(ctx, address, limit)
	if err != nil {
		return nil, result, err
	}
	return records, result, nil
}

// Broadcast submits a signed transaction for address. When CheckTx accepts
// it the transaction hash is indexed immediately.
func (s *Service) Broadcast(ctx context.Context, address string, tx []byte) (*client.BroadcastResult, error) {
	// the sender must be indexable before anything reaches the node
	if err := storage.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", address, err)
	}

	res, err := s.node.BroadcastTxSync(ctx, tx)
	if err != nil {
		return nil, err
	}
	if res.Code != 0 {
		s.logger.Warn("broadcast rejected",
			zap.String("address", address),
			zap.Uint32("code", res.Code),
			zap.String("log", res.Log))
		return res, nil
	}

	hash := fetch.TxHash(tx)
	added, err := s.store.Append(ctx, address, hash)
	if err != nil {
		return res, fmt.Errorf("failed to index broadcast %s: %w", hash, err)
	}
	if added {
		s.notify(address, []string{hash})
	}
	s.logger.Info("broadcast accepted",
		zap.String("address", address),
		zap.String("hash", hash))
	return res, nil
}

// Track adds address to the set scanned by ScanTracked
func (s *Service) Track(address string) {
	if address == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracked[address] = struct{}{}
}

// Untrack removes address from the tracked set
func (s *Service) Untrack(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracked, address)
}

// Tracked returns the tracked addresses in sorted order
func (s *Service) Tracked() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.tracked))
	for addr := range s.tracked {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// ScanTracked scans every tracked address, one at a time
func (s *Service) ScanTracked(ctx context.Context) []*fetch.ScanResult {
	var results []*fetch.ScanResult
	for _, addr := range s.Tracked() {
		if ctx.Err() != nil {
			break
		}
		result, err := s.Scan(ctx, addr)
		if err != nil {
			s.logger.Error("scan failed", zap.String("address", addr), zap.Error(err))
			continue
		}
		results = append(results, result)
	}
	return results
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		limit = constants.DefaultHistoryLimit
	}
	if limit > s.config.MaxLimit {
		return s.config.MaxLimit
	}
	return limit
}

func (s *Service) notify(address string, hashes []string) {
	s.mu.RLock()
	handlers := append([]DiscoveryHandler(nil), s.handlers...)
	s.mu.RUnlock()

	for _, h := range handlers {
		h(address, hashes)
	}
}
