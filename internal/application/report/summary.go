// Package report renders dashboard figures and CSV exports from stored
// reconciliation state.
package report

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// Store is the read side of the repository used for reporting
type Store interface {
	storage.InvoiceRepository
	storage.TransactionRepository
	storage.LinkRepository
	storage.AuditRepository
}

// Summary holds dashboard figures
type Summary struct {
	TotalInvoices          int             `json:"total_invoices"`
	TotalTransactions      int             `json:"total_transactions"`
	MatchedInvoices        int             `json:"matched_invoices"`
	MatchedTransactions    int             `json:"matched_transactions"`
	TotalInvoiceAmount     decimal.Decimal `json:"total_invoice_amount"`
	TotalTransactionAmount decimal.Decimal `json:"total_transaction_amount"`
	MatchedAmount          decimal.Decimal `json:"matched_amount"`
	MatchPercentByCount    float64         `json:"match_percent_by_count"`
	MatchPercentByAmount   float64         `json:"match_percent_by_amount"`
	OutstandingBalance     decimal.Decimal `json:"outstanding_balance"`
	OverpaymentCredits     decimal.Decimal `json:"overpayment_credits"`
	StatusCounts           map[string]int  `json:"status_counts"`
}

// Service builds reports
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new report service
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Summary computes the dashboard summary over every invoice and transaction
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	invoices, err := s.store.ListInvoices(ctx, storage.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}
	transactions, err := s.store.ListTransactions(ctx, storage.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	summary := Summarize(invoices, transactions)
	return &summary, nil
}

// Summarize computes dashboard figures. Outstanding balance is total invoiced
// minus matched; overpayment credits sum the surplus of OVERPAID invoices.
func Summarize(invoices []*reconcile.Invoice, transactions []*reconcile.BankTransaction) Summary {
	s := Summary{
		TotalInvoices:          len(invoices),
		TotalTransactions:      len(transactions),
		TotalInvoiceAmount:     decimal.Zero,
		TotalTransactionAmount: decimal.Zero,
		MatchedAmount:          decimal.Zero,
		OverpaymentCredits:     decimal.Zero,
		StatusCounts:           make(map[string]int),
	}

	for _, inv := range invoices {
		s.TotalInvoiceAmount = s.TotalInvoiceAmount.Add(inv.Amount)
		s.MatchedAmount = s.MatchedAmount.Add(inv.MatchedAmount)
		if inv.MatchedAmount.IsPositive() {
			s.MatchedInvoices++
		}
		if inv.Status == reconcile.InvoiceOverpaid {
			s.OverpaymentCredits = s.OverpaymentCredits.Add(inv.MatchedAmount.Sub(inv.Amount))
		}
		s.StatusCounts[string(inv.Status)]++
	}
	for _, tx := range transactions {
		s.TotalTransactionAmount = s.TotalTransactionAmount.Add(tx.Amount)
		if tx.MatchedAmount.IsPositive() {
			s.MatchedTransactions++
		}
		s.StatusCounts[string(tx.Status)]++
	}

	if total := s.TotalInvoices + s.TotalTransactions; total > 0 {
		s.MatchPercentByCount = 100.0 * float64(s.MatchedInvoices+s.MatchedTransactions) / float64(total)
	}
	if s.TotalInvoiceAmount.IsPositive() {
		ratio := s.MatchedAmount.DivRound(s.TotalInvoiceAmount, 4)
		s.MatchPercentByAmount = ratio.Mul(decimal.NewFromInt(100)).InexactFloat64()
	}
	s.OutstandingBalance = s.TotalInvoiceAmount.Sub(s.MatchedAmount)
	return s
}
