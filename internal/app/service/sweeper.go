package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically purges expired worries. It runs independently of
// request traffic; an overlapping external cron trigger is harmless
// because the purge itself is idempotent.
type Sweeper struct {
	logger   *zap.Logger
	worries  WorryService
	interval time.Duration
	stopChan chan struct{}
}

// NewSweeper creates a sweeper ticking at the given interval.
func NewSweeper(logger *zap.Logger, worries WorryService, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		logger:   logger,
		worries:  worries,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *Sweeper) Start() {
	go s.run()
}

// Stop halts the periodic sweep.
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepOnce()
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

func (s *Sweeper) sweepOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	purged, err := s.worries.Sweep(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", zap.Error(err))
		return
	}

	if purged > 0 {
		s.logger.Info("expired worries purged", zap.Int64("count", purged))
	}
}
