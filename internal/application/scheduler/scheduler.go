// Package scheduler triggers reconciliation runs on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eshaffer321/invoice-reconciler/internal/application/service"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// Actor is recorded as the trigger of scheduled runs.
const Actor = "scheduler"

// Runner starts a reconciliation run
type Runner interface {
	Run(ctx context.Context, actor string) (*storage.RunRecord, error)
}

// Scheduler calls Runner.Run every interval until its context ends
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *slog.Logger
}

// New creates a scheduler. interval must be positive.
func New(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With("system", "scheduler"),
	}
}

// Start blocks, running once per interval. The first run happens after one
// interval has elapsed. Returns ctx.Err() when the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one scheduled run. A run already in progress is skipped.
func (s *Scheduler) Tick(ctx context.Context) {
	run, err := s.runner.Run(ctx, Actor)
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		s.logger.Info("run already in progress, skipping tick")
	case err != nil:
		s.logger.Error("scheduled run failed", "error", err)
	default:
		s.logger.Info("scheduled run completed", "run_id", run.ID, "links", run.TotalLinks())
	}
}
