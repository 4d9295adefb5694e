package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/client"
	"github.com/0xmhha/wallet-indexer/events"
	"github.com/0xmhha/wallet-indexer/internal/constants"
	applog "github.com/0xmhha/wallet-indexer/internal/logger"
)

// FetcherConfig holds fetcher configuration
type FetcherConfig struct {
	// Workers bounds concurrent point lookups. If 0, defaults to 16
	Workers int

	// DefaultLimit applies when FetchDetails is called with limit <= 0
	DefaultLimit int
}

// Validate validates the fetcher configuration
func (c *FetcherConfig) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	if c.DefaultLimit < 0 {
		return fmt.Errorf("default limit cannot be negative")
	}
	return nil
}

// Fetcher turns indexed hashes into TransactionRecords with point lookups
type Fetcher struct {
	client  Client
	storage Storage
	config  *FetcherConfig
	pool    pond.Pool
	logger  *zap.Logger
	metrics *Metrics
}

// NewFetcher creates a new Fetcher with its own worker pool. Call Close to
// release the pool.
func NewFetcher(client Client, storage Storage, config *FetcherConfig, logger *zap.Logger) *Fetcher {
	if config == nil {
		config = &FetcherConfig{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	workers := config.Workers
	if workers <= 0 {
		workers = constants.DefaultDetailWorkers
	}

	return &Fetcher{
		client:  client,
		storage: storage,
		config:  config,
		pool:    pond.NewPool(workers),
		logger:  logger,
	}
}

// SetMetrics attaches Prometheus metrics
func (f *Fetcher) SetMetrics(m *Metrics) {
	f.metrics = m
}

// Close stops the worker pool after running tasks finish
func (f *Fetcher) Close() {
	f.pool.StopAndWait()
}

// FetchDetails returns up to limit records for address, newest first.
//
// Every hash is resolved with its own tx lookup. A hash whose lookup fails
// for any reason is dropped from the output with a warning. The error return
// is reserved for index read failures.
func (f *Fetcher) FetchDetails(ctx context.Context, address string, limit int) ([]TransactionRecord, error) {
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}
	if limit <= 0 {
		limit = f.config.DefaultLimit
		if limit <= 0 {
			limit = constants.DefaultHistoryLimit
		}
	}

	start := time.Now()
	defer func() { f.metrics.observeFetch(time.Since(start)) }()

	hashes, err := f.storage.Read(ctx, address, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read index for %s: %w", address, err)
	}
	if len(hashes) == 0 {
		return []TransactionRecord{}, nil
	}

	logger := applog.WithAddress(f.logger, address)
	slots := make([]*TransactionRecord, len(hashes))

	group := f.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, hash := range hashes {
		group.Submit(func() {
			if groupCtx.Err() != nil {
				return
			}
			slots[i] = f.lookup(groupCtx, logger, address, hash)
		})
	}
	if err := group.Wait(); err != nil {
		logger.Debug("lookup group ended early", zap.Error(err))
	}

	records := make([]TransactionRecord, 0, len(slots))
	for _, rec := range slots {
		if rec != nil {
			records = append(records, *rec)
		}
	}

	f.fillTimestamps(ctx, logger, records)
	return records, nil
}

// lookup resolves one hash, returning nil when the record must be dropped
func (f *Fetcher) lookup(ctx context.Context, logger *zap.Logger, address, hash string) *TransactionRecord {
	resp, err := f.client.Tx(ctx, hash)
	if err != nil {
		logger.Warn("dropping transaction",
			zap.String("hash", hash),
			zap.Bool("not_found", client.IsNotFound(err)),
			zap.Error(err))
		f.metrics.recordLookup(false)
		return nil
	}
	f.metrics.recordLookup(true)

	transfer := events.Extract(resp.TxResult.Events)
	rec := &TransactionRecord{
		Hash:   hash,
		Height: int64(resp.Height),
		From:   transfer.From,
		To:     transfer.To,
		Amount: transfer.Amount,
		Denom:  transfer.Denom,
		Status: StatusFromCode(resp.TxResult.Code),
	}
	if rec.From == "" {
		rec.From = address
	}
	if rec.To == "" {
		rec.To = address
	}
	return rec
}

// fillTimestamps sets each record's block time, reading every distinct
// height's header once. Unreadable headers leave a zero timestamp.
func (f *Fetcher) fillTimestamps(ctx context.Context, logger *zap.Logger, records []TransactionRecord) {
	seen := make(map[int64]bool)
	var heights []int64
	for _, rec := range records {
		if rec.Height > 0 && !seen[rec.Height] {
			seen[rec.Height] = true
			heights = append(heights, rec.Height)
		}
	}
	if len(heights) == 0 {
		return
	}

	var mu sync.Mutex
	times := make(map[int64]time.Time, len(heights))

	group := f.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for _, height := range heights {
		group.Submit(func() {
			block, err := f.client.Block(groupCtx, height)
			if err != nil {
				logger.Debug("block time unavailable",
					zap.Int64("height", height),
					zap.Error(err))
				return
			}
			mu.Lock()
			times[height] = block.Block.Header.Time
			mu.Unlock()
		})
	}
	_ = group.Wait()

	for i := range records {
		records[i].Timestamp = times[records[i].Height]
	}
}
