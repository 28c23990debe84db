// Package worker runs the service's background jobs.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Expirer fails payment attempts that were never confirmed.
type Expirer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically expires abandoned processing payments. It is the only
// component that changes a payment without an external trigger.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSweeper creates a new Sweeper.
func NewSweeper(expirer Expirer, interval time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("payment expiry sweeper started", zap.Duration("interval", s.interval))

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-ctx.Done():
			s.logger.Info("payment expiry sweeper stopped")
			return
		}
	}
}

// RunOnce performs a single sweep and returns the number of expired payments.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	n, err := s.expirer.ExpireStale(ctx, s.now())
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("payment expiry sweep failed", zap.Int("expired", n), zap.Error(err))
		}
		return n
	}
	if n > 0 {
		s.logger.Info("payment expiry sweep finished", zap.Int("expired", n))
	}
	return n
}
