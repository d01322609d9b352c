package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// ReconcileService runs the matching cascade over everything in the store.
type ReconcileService struct {
	store   storage.Repository
	matcher *matcher.Matcher
	coord   *Coordinator
	logger  *slog.Logger

	// Only one run at a time; a second request fails fast.
	running sync.Mutex

	now func() time.Time
}

// NewReconcileService creates a new reconcile service.
func NewReconcileService(
	store storage.Repository,
	m *matcher.Matcher,
	coord *Coordinator,
	logger *slog.Logger,
) *ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileService{
		store:   store,
		matcher: m,
		coord:   coord,
		logger:  logger,
		now:     time.Now,
	}
}

// Run resets automatic links and re-matches every invoice. The whole result
// is committed in one transaction; on failure nothing is persisted except
// the failed run record.
func (s *ReconcileService) Run(ctx context.Context, actor string) (*storage.RunRecord, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	unlock := s.coord.Exclusive()
	defer unlock()

	run := &storage.RunRecord{
		ID:        uuid.NewString(),
		Actor:     actorOrDefault(actor),
		StartedAt: s.now().UTC(),
		Status:    storage.RunStatusRunning,
	}
	if err := s.store.StartRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	s.logger.Info("reconciliation run started", "run_id", run.ID, "actor", run.Actor)

	result, err := s.execute(ctx, run)
	if err != nil {
		s.finish(ctx, run, err)
		return run, err
	}

	run.RemovedLinks = result.RemovedLinks
	run.ExactLinks = result.LinksOf(reconcile.MatchExact)
	run.FuzzyLinks = result.LinksOf(reconcile.MatchFuzzy)
	run.PartialLinks = result.LinksOf(reconcile.MatchPartialPayment)
	run.OverpaymentLinks = result.LinksOf(reconcile.MatchOverpayment)
	s.finish(ctx, run, nil)

	s.logger.Info("reconciliation run completed",
		"run_id", run.ID,
		"removed", run.RemovedLinks,
		"exact", run.ExactLinks,
		"fuzzy", run.FuzzyLinks,
		"partial_payment", run.PartialLinks,
		"overpayment", run.OverpaymentLinks,
	)
	return run, nil
}

func (s *ReconcileService) execute(ctx context.Context, run *storage.RunRecord) (*matcher.RunResult, error) {
	invoices, err := s.store.ListInvoices(ctx, storage.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	transactions, err := s.store.ListTransactions(ctx, storage.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	links, err := s.store.ListLinks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}

	ledger := reconcile.NewLedger(invoices, transactions, links, reconcile.WithClock(s.now))
	result, err := s.matcher.Run(ledger)
	if err != nil {
		return nil, err
	}

	cs := ledger.Changes()
	cs.Audit = append(cs.Audit, reconcile.AuditEntry{
		Actor:      run.Actor,
		Action:     ActionReconcileRun,
		EntityType: EntityRun,
		EntityID:   run.ID,
		After: fmt.Sprintf("removed=%d, exact=%d, fuzzy=%d, partial=%d, overpayment=%d",
			result.RemovedLinks,
			result.LinksOf(reconcile.MatchExact),
			result.LinksOf(reconcile.MatchFuzzy),
			result.LinksOf(reconcile.MatchPartialPayment),
			result.LinksOf(reconcile.MatchOverpayment)),
		Timestamp: s.now().UTC(),
	})

	if err := s.store.Commit(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return result, nil
}

func (s *ReconcileService) finish(ctx context.Context, run *storage.RunRecord, runErr error) {
	completed := s.now().UTC()
	run.CompletedAt = &completed
	run.Status = storage.RunStatusCompleted
	if runErr != nil {
		run.Status = storage.RunStatusFailed
		run.ErrorMessage = runErr.Error()
		s.logger.Error("reconciliation run failed", "run_id", run.ID, "error", runErr)
	}
	if err := s.store.CompleteRun(ctx, run); err != nil {
		s.logger.Warn("failed to record run completion", "run_id", run.ID, "error", err)
	}
}
