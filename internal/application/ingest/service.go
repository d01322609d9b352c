package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// Kind names an upload
type Kind string

const (
	KindLedger    Kind = "ledger"
	KindStatement Kind = "statement"
)

// ParseKind validates an upload name
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindLedger, KindStatement:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown upload kind %q", s)
}

// Gate keeps imports from interleaving with a reconciliation run
type Gate interface {
	Shared(keys ...string) (unlock func())
}

// Result summarises one import
type Result struct {
	Kind       Kind `json:"kind"`
	Parsed     int  `json:"parsed"`
	Imported   int  `json:"imported"`
	Duplicates int  `json:"duplicates"`
	Skipped    int  `json:"skipped"`
}

// Service imports CSV files into the store
type Service struct {
	store  storage.Repository
	gate   Gate
	logger *slog.Logger
}

// NewService creates a new import service. gate may be nil.
func NewService(store storage.Repository, gate Gate, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, gate: gate, logger: logger}
}

// Import dispatches on kind
func (s *Service) Import(ctx context.Context, kind Kind, r io.Reader) (*Result, error) {
	switch kind {
	case KindLedger:
		return s.ImportLedger(ctx, r)
	case KindStatement:
		return s.ImportStatement(ctx, r)
	}
	return nil, fmt.Errorf("unknown upload kind %q", kind)
}

// ImportLedger parses a customer ledger and stores every invoice whose
// external id is new.
func (s *Service) ImportLedger(ctx context.Context, r io.Reader) (*Result, error) {
	parsed, err := ParseLedger(r, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}

	defer s.enter()()

	result := &Result{Kind: KindLedger, Parsed: len(parsed.Records), Skipped: parsed.Skipped}
	for _, inv := range parsed.Records {
		existing, err := s.store.FindInvoiceByExternalID(ctx, inv.ExternalID)
		if err != nil {
			return result, fmt.Errorf("failed to look up invoice %s: %w", inv.ExternalID, err)
		}
		if existing != nil {
			result.Duplicates++
			continue
		}
		if err := s.store.SaveInvoice(ctx, inv); err != nil {
			if errors.Is(err, reconcile.ErrAlreadyRegistered) {
				result.Duplicates++
				continue
			}
			return result, fmt.Errorf("failed to save invoice %s: %w", inv.ExternalID, err)
		}
		result.Imported++
	}

	s.logResult(result)
	return result, nil
}

// ImportStatement parses a bank statement and stores every transaction whose
// external id is new.
func (s *Service) ImportStatement(ctx context.Context, r io.Reader) (*Result, error) {
	parsed, err := ParseStatement(r, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to parse statement: %w", err)
	}

	defer s.enter()()

	result := &Result{Kind: KindStatement, Parsed: len(parsed.Records), Skipped: parsed.Skipped}
	for _, tx := range parsed.Records {
		existing, err := s.store.FindTransactionByExternalID(ctx, tx.ExternalID)
		if err != nil {
			return result, fmt.Errorf("failed to look up transaction %s: %w", tx.ExternalID, err)
		}
		if existing != nil {
			result.Duplicates++
			continue
		}
		if err := s.store.SaveTransaction(ctx, tx); err != nil {
			if errors.Is(err, reconcile.ErrAlreadyRegistered) {
				result.Duplicates++
				continue
			}
			return result, fmt.Errorf("failed to save transaction %s: %w", tx.ExternalID, err)
		}
		result.Imported++
	}

	s.logResult(result)
	return result, nil
}

func (s *Service) enter() (unlock func()) {
	if s.gate == nil {
		return func() {}
	}
	return s.gate.Shared()
}

func (s *Service) logResult(r *Result) {
	s.logger.Info("import complete",
		"kind", string(r.Kind),
		"parsed", r.Parsed,
		"imported", r.Imported,
		"duplicates", r.Duplicates,
		"skipped", r.Skipped,
	)
}
