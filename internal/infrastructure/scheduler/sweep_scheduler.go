package scheduler

import (
	"context"
	"time"

	"github.com/gavelworks/auction-settlement-service/internal/application/use_cases"
	"github.com/gavelworks/auction-settlement-service/internal/infrastructure/monitoring"
	"github.com/gavelworks/auction-settlement-service/internal/pkg/logger"
)

// SweepScheduler runs the expiration sweep on a fixed interval. The sweep
// itself is idempotent, so overlapping triggers (manual endpoint plus timer)
// are harmless.
type SweepScheduler struct {
	sweep    *use_cases.SweepUseCase
	interval time.Duration
	logger   *logger.Logger
	stopChan chan struct{}
}

func NewSweepScheduler(sweep *use_cases.SweepUseCase, interval time.Duration, log *logger.Logger) *SweepScheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SweepScheduler{
		sweep:    sweep,
		interval: interval,
		logger:   log,
		stopChan: make(chan struct{}),
	}
}

func (s *SweepScheduler) Start(ctx context.Context) {
	s.logger.Info("Starting sweep scheduler", "interval", s.interval.String())

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweep scheduler stopped")
			return
		case <-s.stopChan:
			s.logger.Info("Sweep scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SweepScheduler) Stop() {
	close(s.stopChan)
}

func (s *SweepScheduler) runOnce(ctx context.Context) {
	monitoring.SweepRunsTotal.Inc()

	result, err := s.sweep.Run(ctx)
	if err != nil {
		s.logger.Error("Scheduled sweep failed", "error", err)
		return
	}

	monitoring.SweepItemsExpiredTotal.Add(float64(result.ExpiredNoBids))
	monitoring.SettlementsCreatedTotal.Add(float64(result.TransactionsCreated))
	monitoring.SettlementsExistingTotal.Add(float64(result.TransactionsExisting))
}
