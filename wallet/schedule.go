package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// scheduleParser accepts five or six field specs and @descriptors
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type scheduler struct {
	cron   *cron.Cron
	spec   string
	cancel context.CancelFunc
}

// cronLogger routes cron's own logging through zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

// ValidateSchedule reports whether spec is a schedule StartSchedule accepts
func ValidateSchedule(spec string) error {
	if _, err := scheduleParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// StartSchedule scans the tracked addresses on spec until StopSchedule or
// ctx cancellation. A run that is still going when the next one is due is
// skipped.
func (s *Service) StartSchedule(ctx context.Context, spec string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return fmt.Errorf("schedule already running: %s", s.scheduler.spec)
	}

	logger := cronLogger{logger: s.logger.Named("cron").Sugar()}
	c := cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	_, err := c.AddFunc(spec, func() {
		start := time.Now()
		results := s.ScanTracked(runCtx)
		s.logger.Debug("scheduled scan finished",
			zap.Int("addresses", len(results)),
			zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		cancel()
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	c.Start()
	s.scheduler = &scheduler{cron: c, spec: spec, cancel: cancel}
	s.logger.Info("scan schedule started", zap.String("schedule", spec))
	return nil
}

// StopSchedule stops the schedule and waits for a running scan to finish
func (s *Service) StopSchedule() {
	s.mu.Lock()
	sch := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if sch == nil {
		return
	}
	sch.cancel()
	<-sch.cron.Stop().Done()
	s.logger.Info("scan schedule stopped")
}
