package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/0xmhha/wallet-indexer/client"
	"github.com/0xmhha/wallet-indexer/events"
	"github.com/0xmhha/wallet-indexer/internal/constants"
	applog "github.com/0xmhha/wallet-indexer/internal/logger"
)

// ScannerConfig holds scanner configuration
type ScannerConfig struct {
	// Window is the number of most recent heights walked per scan
	Window uint64

	// MinInterval is the minimum time between two scans of one address
	MinInterval time.Duration
}

// DefaultScannerConfig returns the default window and rate gate
func DefaultScannerConfig() *ScannerConfig {
	return &ScannerConfig{
		Window:      constants.DefaultScanWindow,
		MinInterval: constants.DefaultScanMinInterval,
	}
}

// Validate validates the scanner configuration
func (c *ScannerConfig) Validate() error {
	if c.Window == 0 {
		return fmt.Errorf("scan window must be positive")
	}
	if c.MinInterval < 0 {
		return fmt.Errorf("scan min interval cannot be negative")
	}
	return nil
}

// Scanner walks a bounded window of recent blocks and records transactions
// received by an address into the index
type Scanner struct {
	client  Client
	storage Storage
	config  *ScannerConfig
	logger  *zap.Logger
	metrics *Metrics
	now     func() time.Time
}

// NewScanner creates a new Scanner. A nil config uses DefaultScannerConfig.
func NewScanner(client Client, storage Storage, config *ScannerConfig, logger *zap.Logger) *Scanner {
	if config == nil {
		config = DefaultScannerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		client:  client,
		storage: storage,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// SetMetrics attaches Prometheus metrics
func (s *Scanner) SetMetrics(m *Metrics) {
	s.metrics = m
}

// SetClock replaces the time source used for the rate gate and cursor
func (s *Scanner) SetClock(now func() time.Time) {
	s.now = now
}

// Window returns the lowest height a scan at latest would walk
func (s *Scanner) Window(latest int64) int64 {
	floor := latest - int64(s.config.Window) + 1
	if s.config.Window > uint64(latest) || floor < 1 {
		return 1
	}
	return floor
}

// Scan discovers transactions received by address in the recent block window.
//
// Node failures never surface as errors: an unreachable status endpoint skips
// the scan and a failing height is logged and passed over. The returned error
// is reserved for index failures. The scan cursor is touched after the walk
// even when heights failed or ctx was cancelled part way.
func (s *Scanner) Scan(ctx context.Context, address string) (*ScanResult, error) {
	if address == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	result := &ScanResult{Address: address}
	logger := applog.WithAddress(s.logger, address)

	last, scanned, err := s.storage.Cursor(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to read scan cursor for %s: %w", address, err)
	}
	if scanned && s.now().Sub(last) < s.config.MinInterval {
		logger.Debug("scan rate limited", zap.Time("last_scan", last))
		result.Skipped = true
		result.SkipReason = SkipRateLimited
		s.metrics.recordScan(string(SkipRateLimited))
		return result, nil
	}

	latest, err := s.client.LatestHeight(ctx)
	if err != nil {
		logger.Warn("node status unavailable, skipping scan", zap.Error(err))
		result.Skipped = true
		result.SkipReason = SkipNodeUnavailable
		s.metrics.recordScan(string(SkipNodeUnavailable))
		return result, nil
	}

	start := time.Now()
	result.Latest = latest
	result.Floor = s.Window(latest)

	var walkErr error
	for height := latest; height >= result.Floor && height > 0; height-- {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		if err := s.scanHeight(ctx, logger, address, height, result); err != nil {
			walkErr = err
			break
		}
	}

	// cancellation of ctx must not prevent recording the attempt
	if err := s.storage.TouchCursor(context.WithoutCancel(ctx), address, s.now()); err != nil {
		if walkErr == nil {
			walkErr = fmt.Errorf("failed to touch scan cursor for %s: %w", address, err)
		}
	}

	s.metrics.recordDiscovered(len(result.Discovered))
	s.metrics.observeScan(time.Since(start))
	if walkErr != nil {
		s.metrics.recordScan("error")
		return result, walkErr
	}
	s.metrics.recordScan("scanned")

	logger.Info("scan complete",
		zap.Int64("latest", result.Latest),
		zap.Int64("floor", result.Floor),
		zap.Int("heights", result.Heights),
		zap.Int("failed_heights", len(result.FailedHeights)),
		zap.Int("matched", result.Matched),
		zap.Int("discovered", len(result.Discovered)),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// scanHeight handles one height. Node errors are recorded on result and
// swallowed; only index write failures are returned.
func (s *Scanner) scanHeight(ctx context.Context, logger *zap.Logger, address string, height int64, result *ScanResult) error {
	results, err := s.client.BlockResults(ctx, height)
	if err != nil {
		s.heightFailed(logger, height, "block_results", err, result)
		return nil
	}

	var matches []int
	for i, txResult := range results.TxsResults {
		if events.Extract(txResult.Events).To == address {
			matches = append(matches, i)
		}
	}

	if len(matches) == 0 {
		result.Heights++
		s.metrics.recordHeight(true)
		return nil
	}

	block, err := s.client.Block(ctx, height)
	if err != nil {
		s.heightFailed(logger, height, "block", err, result)
		return nil
	}
	result.Heights++
	s.metrics.recordHeight(true)

	txs := block.Txs()
	for _, i := range matches {
		if i >= len(txs) {
			logger.Warn("result index has no raw transaction",
				zap.Int64("height", height),
				zap.Int("index", i),
				zap.Int("txs", len(txs)))
			continue
		}

		hash := TxHash(txs[i])
		result.Matched++

		added, err := s.storage.Append(ctx, address, hash)
		if err != nil {
			return fmt.Errorf("failed to index %s at height %d: %w", hash, height, err)
		}
		if added {
			result.Discovered = append(result.Discovered, hash)
			logger.Debug("discovered transaction",
				zap.Int64("height", height),
				zap.String("hash", hash))
		}
	}
	return nil
}

func (s *Scanner) heightFailed(logger *zap.Logger, height int64, method string, err error, result *ScanResult) {
	logger.Warn("skipping height",
		zap.Int64("height", height),
		zap.String("method", method),
		zap.Bool("not_found", client.IsNotFound(err)),
		zap.Error(err))
	result.FailedHeights = append(result.FailedHeights, height)
	s.metrics.recordHeight(false)
}

// TxHash returns the uppercase hex SHA-256 digest of raw transaction bytes
func TxHash(raw []byte) string {
	sum := sha256.Sum256(raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
