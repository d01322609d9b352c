// Package matcher links invoices to bank transactions.
//
// A run discards every automatic link and rebuilds them with a fixed
// cascade of passes. Each pass only sees invoices and transactions that no
// earlier pass settled:
//   - Exact: same amount, same day, same reference (case-insensitive)
//   - Fuzzy: same amount, date within tolerance, similar description
//   - Partial payment: several transactions summing to the invoice
//   - Overpayment: one transaction larger than the invoice
//
// Manual links survive every run and keep their credits.
//
// Example usage:
//
//	m, err := matcher.NewMatcher(matcher.DefaultConfig(), logger)
//	result, err := m.Run(ledger)
//	changes := ledger.Changes()
package matcher

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

// Matcher runs the matching cascade over a ledger
type Matcher struct {
	config     Config
	similarity Similarity
	logger     *slog.Logger
}

// NewMatcher creates a new matcher with the given config
func NewMatcher(config Config, logger *slog.Logger) (*Matcher, error) {
	sim, err := NewSimilarity(config.Similarity)
	if err != nil {
		return nil, err
	}
	if config.MinPartialPayments < 1 {
		config.MinPartialPayments = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{
		config:     config,
		similarity: sim,
		logger:     logger.With(slog.String("component", "matcher")),
	}, nil
}

// Config returns the active configuration.
func (m *Matcher) Config() Config {
	return m.config
}

// settled tracks participants consumed by an earlier pass of the same run.
type settled struct {
	invoices     map[int64]bool
	transactions map[int64]bool
}

// Run resets automatic links and re-runs the cascade. The ledger must hold
// every invoice, transaction and link. Statuses are refreshed on return.
func (m *Matcher) Run(ledger *reconcile.Ledger) (*RunResult, error) {
	removed, err := ledger.ResetAutomatic()
	if err != nil {
		return nil, fmt.Errorf("reset automatic links: %w", err)
	}

	result := &RunResult{
		RemovedLinks: removed,
		Counts:       make(map[reconcile.MatchType]int),
	}
	s := &settled{
		invoices:     make(map[int64]bool),
		transactions: make(map[int64]bool),
	}

	passes := []struct {
		name string
		run  func(*reconcile.Ledger, *settled, *RunResult) error
	}{
		{"exact", m.matchExact},
		{"fuzzy", m.matchFuzzy},
		{"partial_payment", m.matchPartialPayments},
		{"overpayment", m.matchOverpayments},
	}
	for _, pass := range passes {
		before := len(result.Links)
		if err := pass.run(ledger, s, result); err != nil {
			return nil, fmt.Errorf("%s pass: %w", pass.name, err)
		}
		m.logger.Debug("pass complete",
			slog.String("pass", pass.name),
			slog.Int("links", len(result.Links)-before))
	}

	ledger.RefreshStatuses()

	m.logger.Info("matching complete",
		slog.Int("removed", removed),
		slog.Int("exact", result.Counts[reconcile.MatchExact]),
		slog.Int("fuzzy", result.Counts[reconcile.MatchFuzzy]),
		slog.Int("partial_payment", result.Counts[reconcile.MatchPartialPayment]),
		slog.Int("overpayment", result.Counts[reconcile.MatchOverpayment]))

	return result, nil
}

func (m *Matcher) matchExact(ledger *reconcile.Ledger, s *settled, result *RunResult) error {
	for _, inv := range ledger.Invoices() {
		if s.invoices[inv.ID] {
			continue
		}
		for _, tx := range ledger.Transactions() {
			if s.transactions[tx.ID] || !isExactMatch(inv, tx) {
				continue
			}
			if err := m.link(ledger, result, inv, tx, inv.Amount, reconcile.MatchExact, certain); err != nil {
				return err
			}
			s.invoices[inv.ID] = true
			s.transactions[tx.ID] = true
			break
		}
	}
	return nil
}

func (m *Matcher) matchFuzzy(ledger *reconcile.Ledger, s *settled, result *RunResult) error {
	for _, inv := range ledger.Invoices() {
		if s.invoices[inv.ID] {
			continue
		}
		for _, tx := range ledger.Transactions() {
			if s.transactions[tx.ID] {
				continue
			}
			confidence, ok := m.fuzzyConfidence(inv, tx)
			if !ok {
				continue
			}
			if err := m.link(ledger, result, inv, tx, inv.Amount, reconcile.MatchFuzzy, confidence); err != nil {
				return err
			}
			s.invoices[inv.ID] = true
			s.transactions[tx.ID] = true
			break
		}
	}
	return nil
}

func (m *Matcher) matchPartialPayments(ledger *reconcile.Ledger, s *settled, result *RunResult) error {
	for _, inv := range ledger.Invoices() {
		if s.invoices[inv.ID] {
			continue
		}

		var candidates []*reconcile.BankTransaction
		for _, tx := range ledger.Transactions() {
			if s.transactions[tx.ID] || !tx.EffectiveAmount().IsPositive() {
				continue
			}
			if reconcile.DaysApart(inv.Date, tx.Date) > m.config.DateTolerance {
				continue
			}
			candidates = append(candidates, tx)
		}

		subset := m.findSubset(candidates, inv.Amount)
		if len(subset) < m.config.MinPartialPayments {
			continue
		}

		remaining := inv.Amount
		for _, tx := range subset {
			amount := decimal.Min(tx.EffectiveAmount(), remaining)
			if !amount.IsPositive() {
				break
			}
			if err := m.link(ledger, result, inv, tx, amount, reconcile.MatchPartialPayment, m.config.PartialConfidence); err != nil {
				return err
			}
			s.transactions[tx.ID] = true
			remaining = remaining.Sub(amount)
		}
		s.invoices[inv.ID] = true
	}
	return nil
}

func (m *Matcher) matchOverpayments(ledger *reconcile.Ledger, s *settled, result *RunResult) error {
	for _, inv := range ledger.Invoices() {
		if s.invoices[inv.ID] {
			continue
		}
		for _, tx := range ledger.Transactions() {
			if s.transactions[tx.ID] {
				continue
			}
			if reconcile.DaysApart(inv.Date, tx.Date) > m.config.DateTolerance {
				continue
			}
			// Earlier overpayments may already have claimed this transaction.
			if !ledger.Unclaimed(tx.ID).GreaterThan(inv.Amount) {
				continue
			}
			if err := m.link(ledger, result, inv, tx, inv.Amount, reconcile.MatchOverpayment, certain); err != nil {
				return err
			}
			// The transaction stays open: it is not credited by this link.
			s.invoices[inv.ID] = true
			break
		}
	}
	return nil
}

func (m *Matcher) link(
	ledger *reconcile.Ledger,
	result *RunResult,
	inv *reconcile.Invoice,
	tx *reconcile.BankTransaction,
	amount decimal.Decimal,
	matchType reconcile.MatchType,
	confidence int,
) error {
	link, err := ledger.CreateLink(inv.ID, tx.ID, amount, matchType, confidence)
	if err != nil {
		return err
	}
	result.Links = append(result.Links, link)
	result.Counts[matchType]++

	m.logger.Debug("linked",
		slog.Int64("invoice_id", inv.ID),
		slog.Int64("transaction_id", tx.ID),
		slog.String("amount", amount.StringFixed(2)),
		slog.String("match_type", string(matchType)),
		slog.Int("confidence", confidence))
	return nil
}

// isExactMatch requires equal amounts, the same calendar day and equal
// references ignoring case and surrounding space. Two missing references
// are equal.
func isExactMatch(inv *reconcile.Invoice, tx *reconcile.BankTransaction) bool {
	if !inv.Amount.Equal(tx.EffectiveAmount()) {
		return false
	}
	if !reconcile.SameDay(inv.Date, tx.Date) {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(inv.Reference), strings.TrimSpace(tx.Reference))
}

// fuzzyConfidence returns the confidence of a fuzzy match and whether the
// pair qualifies at all.
func (m *Matcher) fuzzyConfidence(inv *reconcile.Invoice, tx *reconcile.BankTransaction) (int, bool) {
	if !inv.Amount.Equal(tx.EffectiveAmount()) {
		return 0, false
	}
	if reconcile.DaysApart(inv.Date, tx.Date) > m.config.DateTolerance {
		return 0, false
	}

	invText := describe(inv.Description, inv.Reference)
	txText := describe(tx.Description, tx.Reference)
	if invText == "" || txText == "" {
		return 0, false
	}

	sim := m.similarity.Score(invText, txText)
	if sim < m.config.FuzzyThreshold {
		return 0, false
	}
	return m.scaleConfidence(sim), true
}

// describe prefers the description and falls back to the reference.
func describe(description, reference string) string {
	if text := normalizeText(description); text != "" {
		return text
	}
	return normalizeText(reference)
}

// scaleConfidence maps [threshold, 1] linearly onto [min, max], truncating.
func (m *Matcher) scaleConfidence(sim float64) int {
	lo, hi := m.config.FuzzyConfidenceMin, m.config.FuzzyConfidenceMax
	span := 1 - m.config.FuzzyThreshold
	if span <= 0 {
		return hi
	}
	ratio := (sim - m.config.FuzzyThreshold) / span
	if ratio > 1 {
		ratio = 1
	}
	return int(math.Floor(float64(lo) + ratio*float64(hi-lo)))
}
