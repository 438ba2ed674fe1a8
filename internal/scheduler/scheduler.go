package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// TriggerPolicy decides whether a sync should start right now.
type TriggerPolicy interface {
	MaybeAutoSync(ctx context.Context)
}

// Scheduler periodically applies the staleness-based trigger policy so the
// mirror stays fresh even without read traffic. The policy itself enforces the
// freshness window and the one-running-job invariant; the scheduler just ticks.
type Scheduler struct {
	policy   TriggerPolicy
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(policy TriggerPolicy, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		policy:   policy,
		interval: interval,
		logger:   logger,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.policy.MaybeAutoSync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.policy.MaybeAutoSync(ctx)
		}
	}
}
