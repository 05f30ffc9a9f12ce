package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type cycleRunner interface {
	RunCycleOnce(ctx context.Context) error
}

// Scheduler drives the tracking cycle on a fixed interval. One pass runs
// at a time; a tick arriving while the previous pass is still in flight
// is skipped rather than queued.
type Scheduler struct {
	runner   cycleRunner
	interval time.Duration
	logger   *zap.Logger

	running uint32
	wg      sync.WaitGroup
}

// NewScheduler constructs the loop. Interval defaults to one minute.
func NewScheduler(runner cycleRunner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{runner: runner, interval: interval, logger: logger}
}

// Start launches the loop. The first pass runs immediately; subsequent
// passes follow the interval until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("scheduler started", zap.Duration("interval", s.interval))

		s.runPass(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopped")
				return
			case <-ticker.C:
				s.runPass(ctx)
			}
		}
	}()
}

// Wait blocks until the loop goroutine has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runPass(ctx context.Context) {
	if !atomic.CompareAndSwapUint32(&s.running, 0, 1) {
		s.logger.Warn("previous tracking pass still running, skipping tick")
		return
	}
	defer atomic.StoreUint32(&s.running, 0)

	if err := s.runner.RunCycleOnce(ctx); err != nil {
		s.logger.Error("tracking pass failed", zap.Error(err))
	}
}
