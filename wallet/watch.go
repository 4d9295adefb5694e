package wallet

import (
	"context"

	"go.uber.org/zap"
)

// BlockSource streams new block heights until ctx ends
type BlockSource interface {
	Run(ctx context.Context, out chan<- int64) error
}

// Watch scans the tracked addresses whenever the node reports a new block.
// The scanner's rate gate keeps bursts of blocks from multiplying scans.
func (s *Service) Watch(ctx context.Context, source BlockSource) error {
	heights := make(chan int64, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- source.Run(ctx, heights)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case height := <-heights:
			// drain to the newest height so a slow scan does not queue stale work
			for drained := false; !drained; {
				select {
				case h := <-heights:
					height = h
				default:
					drained = true
				}
			}
			s.logger.Debug("new block", zap.Int64("height", height))
			s.ScanTracked(ctx)
		}
	}
}
