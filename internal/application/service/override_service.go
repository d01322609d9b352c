package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// manualConfidence is the confidence of every human-made link.
const manualConfidence = 100

// LinkRequest holds parameters for a manual link.
type LinkRequest struct {
	InvoiceID     int64
	TransactionID int64
	Amount        *decimal.Decimal // nil = the transaction's full effective amount
	Reason        string
}

// OverrideService applies human corrections on top of automatic matching.
// Every change is committed together with its audit entry.
type OverrideService struct {
	store  storage.Repository
	coord  *Coordinator
	logger *slog.Logger

	ledgerOpts []reconcile.LedgerOption
	now        func() time.Time
}

// OverrideOption customises an OverrideService.
type OverrideOption func(*OverrideService)

// WithLinkIDs overrides link id generation.
func WithLinkIDs(gen func() string) OverrideOption {
	return func(s *OverrideService) {
		s.ledgerOpts = append(s.ledgerOpts, reconcile.WithIDGenerator(gen))
	}
}

// NewOverrideService creates a new override service.
func NewOverrideService(store storage.Repository, coord *Coordinator, logger *slog.Logger, opts ...OverrideOption) *OverrideService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &OverrideService{
		store:  store,
		coord:  coord,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LinkManually creates a MANUAL_OVERRIDE link between an invoice and a transaction.
func (s *OverrideService) LinkManually(ctx context.Context, actor string, req LinkRequest) (*reconcile.Link, error) {
	unlock := s.coord.Shared(invoiceKey(req.InvoiceID), transactionKey(req.TransactionID))
	defer unlock()

	inv, tx, err := s.loadPair(ctx, req.InvoiceID, req.TransactionID)
	if err != nil {
		return nil, err
	}

	amount := tx.EffectiveAmount()
	if req.Amount != nil {
		amount = *req.Amount
	}

	existing, err := s.linksBetween(ctx, inv.ID, tx.ID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		s.logger.Debug("pair already linked", "invoice_id", inv.ID, "transaction_id", tx.ID, "links", len(existing))
	}

	ledger := s.newLedger(inv, tx, existing)
	link, err := ledger.CreateLink(inv.ID, tx.ID, amount, reconcile.MatchManualOverride, manualConfidence)
	if err != nil {
		return nil, err
	}

	cs := ledger.Changes()
	cs.Audit = []reconcile.AuditEntry{{
		Actor:      actorOrDefault(actor),
		Action:     ActionManualLink,
		EntityType: EntityLink,
		EntityID:   link.ID,
		Reason:     req.Reason,
		Before:     fmt.Sprintf("invoiceId=%d, transactionId=%d, linked=false", inv.ID, tx.ID),
		After:      fmt.Sprintf("linkId=%s, amount=%s", link.ID, link.Amount.StringFixed(2)),
		Timestamp:  s.now().UTC(),
	}}
	if err := s.store.Commit(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to save manual link: %w", err)
	}

	s.logger.Info("manual link created",
		"actor", actorOrDefault(actor),
		"link_id", link.ID,
		"invoice_id", inv.ID,
		"transaction_id", tx.ID,
		"amount", link.Amount.StringFixed(2),
		"invoice_status", string(inv.Status),
	)
	return link, nil
}

// Unlink removes the first link (in creation order) between an invoice and a
// transaction. Call again to remove further links between the same pair.
func (s *OverrideService) Unlink(ctx context.Context, actor string, invoiceID, transactionID int64, reason string) (*reconcile.Link, error) {
	unlock := s.coord.Shared(invoiceKey(invoiceID), transactionKey(transactionID))
	defer unlock()

	inv, tx, err := s.loadPair(ctx, invoiceID, transactionID)
	if err != nil {
		return nil, err
	}
	between, err := s.linksBetween(ctx, invoiceID, transactionID)
	if err != nil {
		return nil, err
	}
	if len(between) == 0 {
		return nil, fmt.Errorf("link between invoice %d and transaction %d: %w", invoiceID, transactionID, reconcile.ErrNotFound)
	}
	target := between[0]

	ledger := s.newLedger(inv, tx, between)
	if err := ledger.DeleteLink(target.ID); err != nil {
		return nil, err
	}

	cs := ledger.Changes()
	cs.Audit = []reconcile.AuditEntry{{
		Actor:      actorOrDefault(actor),
		Action:     ActionManualUnlink,
		EntityType: EntityLink,
		EntityID:   target.ID,
		Reason:     reason,
		Before: fmt.Sprintf("linkId=%s, invoiceId=%d, transactionId=%d, amount=%s, matchType=%s",
			target.ID, invoiceID, transactionID, target.Amount.StringFixed(2), target.MatchType),
		After:     "deleted",
		Timestamp: s.now().UTC(),
	}}
	if err := s.store.Commit(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to remove link: %w", err)
	}

	s.logger.Info("link removed",
		"actor", actorOrDefault(actor),
		"link_id", target.ID,
		"invoice_id", invoiceID,
		"transaction_id", transactionID,
		"remaining", len(between)-1,
	)
	return target, nil
}

// AddInvoiceNotes replaces an invoice's notes. Matching state is untouched.
func (s *OverrideService) AddInvoiceNotes(ctx context.Context, actor string, invoiceID int64, notes, reason string) (*reconcile.Invoice, error) {
	unlock := s.coord.Shared(invoiceKey(invoiceID))
	defer unlock()

	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %d: %w", invoiceID, err)
	}
	if inv == nil {
		return nil, fmt.Errorf("invoice %d: %w", invoiceID, reconcile.ErrNotFound)
	}

	before := inv.Notes
	inv.Notes = notes

	ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, nil, nil)
	ledger.TouchInvoice(inv.ID)
	cs := ledger.Changes()
	cs.Audit = []reconcile.AuditEntry{{
		Actor:      actorOrDefault(actor),
		Action:     ActionUpdateNotes,
		EntityType: EntityInvoice,
		EntityID:   strconv.FormatInt(inv.ID, 10),
		Reason:     reason,
		Before:     before,
		After:      notes,
		Timestamp:  s.now().UTC(),
	}}
	if err := s.store.Commit(ctx, cs); err != nil {
		return nil, fmt.Errorf("failed to save notes: %w", err)
	}

	s.logger.Info("invoice notes updated", "actor", actorOrDefault(actor), "invoice_id", inv.ID)
	return inv, nil
}

func (s *OverrideService) loadPair(ctx context.Context, invoiceID, transactionID int64) (*reconcile.Invoice, *reconcile.BankTransaction, error) {
	inv, err := s.store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load invoice %d: %w", invoiceID, err)
	}
	if inv == nil {
		return nil, nil, fmt.Errorf("invoice %d: %w", invoiceID, reconcile.ErrNotFound)
	}
	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load transaction %d: %w", transactionID, err)
	}
	if tx == nil {
		return nil, nil, fmt.Errorf("transaction %d: %w", transactionID, reconcile.ErrNotFound)
	}
	return inv, tx, nil
}

func (s *OverrideService) linksBetween(ctx context.Context, invoiceID, transactionID int64) ([]*reconcile.Link, error) {
	links, err := s.store.ListLinksByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links of invoice %d: %w", invoiceID, err)
	}
	var between []*reconcile.Link
	for _, l := range links {
		if l.TransactionID == transactionID {
			between = append(between, l)
		}
	}
	return between, nil
}

func (s *OverrideService) newLedger(inv *reconcile.Invoice, tx *reconcile.BankTransaction, links []*reconcile.Link) *reconcile.Ledger {
	opts := append([]reconcile.LedgerOption{reconcile.WithClock(s.now)}, s.ledgerOpts...)
	return reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, links, opts...)
}
