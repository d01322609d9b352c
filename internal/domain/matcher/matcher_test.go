package matcher

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

func day(s string) time.Time {
	t, err := time.Parse(reconcile.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func makeInvoice(id int64, ref, amount, date string) *reconcile.Invoice {
	return &reconcile.Invoice{
		ID:            id,
		ExternalID:    fmt.Sprintf("I%d", id),
		Reference:     ref,
		Amount:        dec(amount),
		Date:          day(date),
		Status:        reconcile.InvoiceUnpaid,
		MatchedAmount: decimal.Zero,
	}
}

func makeTransaction(id int64, ref, amount, date string) *reconcile.BankTransaction {
	return &reconcile.BankTransaction{
		ID:            id,
		ExternalID:    fmt.Sprintf("T%d", id),
		Reference:     ref,
		Amount:        dec(amount),
		Date:          day(date),
		Status:        reconcile.TransactionUnmatched,
		MatchedAmount: decimal.Zero,
	}
}

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(DefaultConfig(), nil)
	require.NoError(t, err)
	return m
}

func TestMatcher_ExactMatch(t *testing.T) {
	// Arrange
	inv := makeInvoice(1, "REF-001", "100.00", "2024-01-15")
	tx := makeTransaction(1, "REF-001", "100.00", "2024-01-15")
	ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)

	// Act
	result, err := newTestMatcher(t).Run(ledger)

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Links, 1)
	link := result.Links[0]
	assert.Equal(t, reconcile.MatchExact, link.MatchType)
	assert.Equal(t, 100, link.Confidence)
	assert.True(t, link.Amount.Equal(dec("100.00")))
	assert.Equal(t, reconcile.InvoicePaid, inv.Status)
	assert.Equal(t, reconcile.TransactionMatched, tx.Status)
	assert.Nil(t, inv.Confidence, "invoice-level confidence is not kept after a run")
}

func TestMatcher_ExactMatchRequiresAllThreeFields(t *testing.T) {
	tests := []struct {
		name string
		tx   *reconcile.BankTransaction
		want bool
	}{
		{"identical", makeTransaction(1, "REF-001", "100.00", "2024-01-15"), true},
		{"reference differs only in case and whitespace", makeTransaction(1, "  ref-001 ", "100.00", "2024-01-15"), true},
		{"negative amount uses effective amount", makeTransaction(1, "REF-001", "-100.00", "2024-01-15"), true},
		{"amount differs", makeTransaction(1, "REF-001", "100.01", "2024-01-15"), false},
		{"date differs", makeTransaction(1, "REF-001", "100.00", "2024-01-16"), false},
		{"reference differs", makeTransaction(1, "REF-002", "100.00", "2024-01-15"), false},
		{"reference missing", makeTransaction(1, "", "100.00", "2024-01-15"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := makeInvoice(1, "REF-001", "100.00", "2024-01-15")
			ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tt.tx}, nil)

			result, err := newTestMatcher(t).Run(ledger)

			require.NoError(t, err)
			if tt.want {
				assert.Equal(t, 1, result.LinksOf(reconcile.MatchExact))
			} else {
				assert.Equal(t, 0, result.LinksOf(reconcile.MatchExact))
			}
		})
	}
}

func TestMatcher_ExactMatchWithoutReferences(t *testing.T) {
	tests := []struct {
		name   string
		invRef string
		txRef  string
		want   bool
	}{
		{"both empty", "", "", true},
		{"blank transaction reference", "", "  ", true},
		{"blank invoice reference", " ", "", true},
		{"only the transaction has one", "", "REF-001", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := makeInvoice(1, tt.invRef, "100.00", "2024-01-15")
			tx := makeTransaction(1, tt.txRef, "100.00", "2024-01-15")
			ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)

			result, err := newTestMatcher(t).Run(ledger)

			require.NoError(t, err)
			if tt.want {
				require.Len(t, result.Links, 1)
				assert.Equal(t, reconcile.MatchExact, result.Links[0].MatchType)
				assert.Equal(t, reconcile.InvoicePaid, inv.Status)
				assert.Equal(t, reconcile.TransactionMatched, tx.Status)
			} else {
				assert.Empty(t, result.Links)
				assert.Equal(t, reconcile.InvoiceUnpaid, inv.Status)
			}
		})
	}
}

func TestMatcher_NoMatchForDifferentReferences(t *testing.T) {
	inv := makeInvoice(1, "INV-A", "50.00", "2024-01-10")
	tx := makeTransaction(1, "TX-B", "50.00", "2024-01-10")
	ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)

	result, err := newTestMatcher(t).Run(ledger)

	require.NoError(t, err)
	assert.Empty(t, result.Links)
	assert.Empty(t, ledger.Links())
	assert.Equal(t, reconcile.InvoiceUnpaid, inv.Status)
	assert.Equal(t, reconcile.TransactionUnmatched, tx.Status)
}

func TestMatcher_FuzzyMatch(t *testing.T) {
	t.Run("identical descriptions after normalisation", func(t *testing.T) {
		inv := makeInvoice(1, "INV-9", "250.00", "2024-03-01")
		inv.Description = "Acme Corp  consulting March"
		tx := makeTransaction(1, "BANK-77", "250.00", "2024-03-03")
		tx.Description = "ACME CORP CONSULTING MARCH"
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)

		result, err := newTestMatcher(t).Run(ledger)

		require.NoError(t, err)
		require.Len(t, result.Links, 1)
		assert.Equal(t, reconcile.MatchFuzzy, result.Links[0].MatchType)
		assert.Equal(t, 90, result.Links[0].Confidence)
		assert.Equal(t, reconcile.InvoicePaid, inv.Status)
	})

	t.Run("similar descriptions interpolate confidence", func(t *testing.T) {
		inv := makeInvoice(1, "INV-9", "250.00", "2024-03-01")
		inv.Description = "acme corp consulting march"
		tx := makeTransaction(1, "BANK-77", "250.00", "2024-03-01")
		tx.Description = "acme corp consulting mar"
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)

		result, err := newTestMatcher(t).Run(ledger)

		require.NoError(t, err)
		require.Len(t, result.Links, 1)
		assert.Equal(t, reconcile.MatchFuzzy, result.Links[0].MatchType)
		assert.GreaterOrEqual(t, result.Links[0].Confidence, 75)
		assert.Less(t, result.Links[0].Confidence, 90)
	})

	t.Run("falls back to references when descriptions are missing", func(t *testing.T) {
		inv := makeInvoice(1, "ORDER-5521", "80.00", "2024-03-01")
		tx := makeTransaction(1, "order-5521", "80.00", "2024-03-02")
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)

		result, err := newTestMatcher(t).Run(ledger)

		require.NoError(t, err)
		assert.Equal(t, 1, result.LinksOf(reconcile.MatchFuzzy))
	})

	t.Run("outside date tolerance", func(t *testing.T) {
		inv := makeInvoice(1, "INV-9", "250.00", "2024-03-01")
		inv.Description = "acme corp consulting march"
		tx := makeTransaction(1, "BANK-77", "250.00", "2024-03-04")
		tx.Description = "acme corp consulting march"
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)

		result, err := newTestMatcher(t).Run(ledger)

		require.NoError(t, err)
		assert.Empty(t, result.Links)
	})

	t.Run("levenshtein metric", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Similarity = SimilarityLevenshtein
		m, err := NewMatcher(cfg, nil)
		require.NoError(t, err)

		inv := makeInvoice(1, "INV-9", "250.00", "2024-03-01")
		inv.Description = "Monthly retainer"
		tx := makeTransaction(1, "BANK-77", "250.00", "2024-03-01")
		tx.Description = "monthly retainer"
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)

		result, err := m.Run(ledger)

		require.NoError(t, err)
		require.Len(t, result.Links, 1)
		assert.Equal(t, 90, result.Links[0].Confidence)
	})
}

func TestMatcher_PartialPayment(t *testing.T) {
	t.Run("two transactions cover the invoice", func(t *testing.T) {
		inv := makeInvoice(1, "", "100.00", "2024-01-15")
		txs := []*reconcile.BankTransaction{
			makeTransaction(1, "", "60.00", "2024-01-16"),
			makeTransaction(2, "", "40.00", "2024-01-14"),
		}
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, txs, nil)

		result, err := newTestMatcher(t).Run(ledger)

		require.NoError(t, err)
		require.Len(t, result.Links, 2)
		total := decimal.Zero
		for _, link := range result.Links {
			assert.Equal(t, reconcile.MatchPartialPayment, link.MatchType)
			assert.Equal(t, 85, link.Confidence)
			total = total.Add(link.Amount)
		}
		assert.True(t, total.Equal(dec("100.00")))
		assert.Equal(t, reconcile.InvoicePaid, inv.Status)
		assert.Equal(t, reconcile.TransactionMatched, txs[0].Status)
		assert.Equal(t, reconcile.TransactionMatched, txs[1].Status)
	})

	t.Run("prefers the smallest group", func(t *testing.T) {
		inv := makeInvoice(1, "", "100.00", "2024-01-15")
		txs := []*reconcile.BankTransaction{
			makeTransaction(1, "", "50.00", "2024-01-15"),
			makeTransaction(2, "", "30.00", "2024-01-15"),
			makeTransaction(3, "", "20.00", "2024-01-15"),
			makeTransaction(4, "", "70.00", "2024-01-15"),
		}
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, txs, nil)

		result, err := newTestMatcher(t).Run(ledger)

		require.NoError(t, err)
		require.Len(t, result.Links, 2)
		assert.Equal(t, int64(2), result.Links[0].TransactionID)
		assert.Equal(t, int64(4), result.Links[1].TransactionID)
		assert.Equal(t, reconcile.TransactionUnmatched, txs[0].Status)
	})

	t.Run("caps the last allocation at the remaining amount", func(t *testing.T) {
		inv := makeInvoice(1, "", "100.00", "2024-01-15")
		txs := []*reconcile.BankTransaction{
			makeTransaction(1, "", "60.00", "2024-01-15"),
			makeTransaction(2, "", "40.01", "2024-01-15"),
		}
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, txs, nil)

		result, err := newTestMatcher(t).Run(ledger)

		require.NoError(t, err)
		require.Len(t, result.Links, 2)
		assert.True(t, result.Links[1].Amount.Equal(dec("40.00")))
		assert.Equal(t, reconcile.InvoicePaid, inv.Status)
		assert.Equal(t, reconcile.TransactionPartiallyMatched, txs[1].Status)
	})

	t.Run("ignores transactions outside the date window", func(t *testing.T) {
		inv := makeInvoice(1, "", "100.00", "2024-01-15")
		txs := []*reconcile.BankTransaction{
			makeTransaction(1, "", "60.00", "2024-01-15"),
			makeTransaction(2, "", "40.00", "2024-01-20"),
		}
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, txs, nil)

		result, err := newTestMatcher(t).Run(ledger)

		require.NoError(t, err)
		assert.Equal(t, 0, result.LinksOf(reconcile.MatchPartialPayment))
	})

	t.Run("a single transaction is not a partial payment", func(t *testing.T) {
		inv := makeInvoice(1, "A", "100.00", "2024-01-15")
		txs := []*reconcile.BankTransaction{makeTransaction(1, "B", "100.00", "2024-01-15")}
		ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, txs, nil)

		result, err := newTestMatcher(t).Run(ledger)

		require.NoError(t, err)
		assert.Empty(t, result.Links)
	})
}

func TestMatcher_Overpayment(t *testing.T) {
	inv := makeInvoice(1, "", "100.00", "2024-01-15")
	tx := makeTransaction(1, "", "150.00", "2024-01-15")
	ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, nil)

	result, err := newTestMatcher(t).Run(ledger)

	require.NoError(t, err)
	require.Len(t, result.Links, 1)
	link := result.Links[0]
	assert.Equal(t, reconcile.MatchOverpayment, link.MatchType)
	assert.Equal(t, 100, link.Confidence)
	assert.True(t, link.Amount.Equal(dec("100.00")))
	assert.Equal(t, reconcile.InvoiceOverpaid, inv.Status)
	assert.True(t, tx.MatchedAmount.IsZero())
	assert.Equal(t, reconcile.TransactionUnmatched, tx.Status)
}

func TestMatcher_OverpaymentCreditsNeverExceedTransaction(t *testing.T) {
	invoices := []*reconcile.Invoice{
		makeInvoice(1, "", "100.00", "2024-01-15"),
		makeInvoice(2, "", "120.00", "2024-01-15"),
	}
	tx := makeTransaction(1, "", "150.00", "2024-01-15")
	ledger := reconcile.NewLedger(invoices, []*reconcile.BankTransaction{tx}, nil)

	result, err := newTestMatcher(t).Run(ledger)

	require.NoError(t, err)
	assert.Equal(t, 1, result.LinksOf(reconcile.MatchOverpayment))
	assert.Equal(t, reconcile.InvoiceOverpaid, invoices[0].Status)
	assert.True(t, invoices[0].MatchedAmount.Equal(dec("150.00")))
	assert.Equal(t, reconcile.InvoiceUnpaid, invoices[1].Status)
	assert.True(t, tx.MatchedAmount.IsZero())
	assert.Equal(t, reconcile.TransactionUnmatched, tx.Status)
	assert.True(t, ledger.Unclaimed(tx.ID).IsZero())
}

func TestMatcher_OverpaymentSharesLargeTransaction(t *testing.T) {
	// A manual link already took 100 of the 500; the rest covers one invoice.
	invoices := []*reconcile.Invoice{
		makeInvoice(1, "", "100.00", "2024-03-01"),
		makeInvoice(2, "", "120.00", "2024-01-15"),
		makeInvoice(3, "", "50.00", "2024-01-15"),
	}
	tx := makeTransaction(1, "", "500.00", "2024-01-15")
	tx.MatchedAmount = dec("100.00")
	invoices[0].MatchedAmount = dec("100.00")
	manual := &reconcile.Link{ID: "manual", InvoiceID: 1, TransactionID: 1, Amount: dec("100.00"),
		InvoiceCredit: dec("100.00"), TransactionCredit: dec("100.00"), MatchType: reconcile.MatchManualOverride, Confidence: 100}
	ledger := reconcile.NewLedger(invoices, []*reconcile.BankTransaction{tx}, []*reconcile.Link{manual})

	result, err := newTestMatcher(t).Run(ledger)

	require.NoError(t, err)
	assert.Equal(t, 1, result.LinksOf(reconcile.MatchOverpayment))
	assert.True(t, invoices[1].MatchedAmount.Equal(dec("400.00")))
	assert.Equal(t, reconcile.InvoiceUnpaid, invoices[2].Status)

	invoiced := decimal.Zero
	for _, inv := range invoices {
		invoiced = invoiced.Add(inv.MatchedAmount)
	}
	assert.True(t, invoiced.Equal(tx.EffectiveAmount()))
}

func TestMatcher_CascadeOrder(t *testing.T) {
	// An exact match consumes the transaction before the fuzzy pass sees it.
	invoices := []*reconcile.Invoice{
		makeInvoice(1, "REF-1", "100.00", "2024-01-15"),
		makeInvoice(2, "REF-1", "100.00", "2024-01-15"),
	}
	txs := []*reconcile.BankTransaction{makeTransaction(1, "REF-1", "100.00", "2024-01-15")}
	ledger := reconcile.NewLedger(invoices, txs, nil)

	result, err := newTestMatcher(t).Run(ledger)

	require.NoError(t, err)
	require.Len(t, result.Links, 1)
	assert.Equal(t, int64(1), result.Links[0].InvoiceID)
	assert.Equal(t, reconcile.InvoiceUnpaid, invoices[1].Status)
}

func TestMatcher_ManualLinksSurviveRun(t *testing.T) {
	// Arrange: a manual link of 40 and a stale automatic link of 40.
	inv := makeInvoice(1, "", "100.00", "2024-01-15")
	inv.MatchedAmount = dec("80.00")
	inv.Status = reconcile.InvoicePartiallyPaid
	tx := makeTransaction(1, "", "40.00", "2024-02-20")
	tx.MatchedAmount = dec("80.00")
	links := []*reconcile.Link{
		{ID: "manual", InvoiceID: 1, TransactionID: 1, Amount: dec("40.00"), InvoiceCredit: dec("40.00"), TransactionCredit: dec("40.00"), MatchType: reconcile.MatchManualOverride, Confidence: 100},
		{ID: "stale", InvoiceID: 1, TransactionID: 1, Amount: dec("40.00"), InvoiceCredit: dec("40.00"), TransactionCredit: dec("40.00"), MatchType: reconcile.MatchFuzzy, Confidence: 80},
	}
	ledger := reconcile.NewLedger([]*reconcile.Invoice{inv}, []*reconcile.BankTransaction{tx}, links)

	// Act
	result, err := newTestMatcher(t).Run(ledger)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, result.RemovedLinks)
	require.Len(t, ledger.Links(), 1)
	assert.Equal(t, "manual", ledger.Links()[0].ID)
	assert.True(t, inv.MatchedAmount.Equal(dec("40.00")))
	assert.Equal(t, reconcile.InvoicePartiallyPaid, inv.Status)
	assert.Equal(t, reconcile.TransactionMatched, tx.Status)
	assert.Equal(t, []string{"stale"}, ledger.Changes().DeletedLinkIDs)
}

type linkShape struct {
	invoiceID     int64
	transactionID int64
	amount        string
	matchType     reconcile.MatchType
	confidence    int
}

func shapes(links []*reconcile.Link) []linkShape {
	out := make([]linkShape, 0, len(links))
	for _, l := range links {
		out = append(out, linkShape{l.InvoiceID, l.TransactionID, l.Amount.StringFixed(2), l.MatchType, l.Confidence})
	}
	return out
}

func TestMatcher_RunIsIdempotent(t *testing.T) {
	invoices := []*reconcile.Invoice{
		makeInvoice(1, "REF-001", "100.00", "2024-01-15"),
		makeInvoice(2, "", "100.00", "2024-01-15"),
		makeInvoice(3, "", "75.00", "2024-01-20"),
		makeInvoice(4, "INV-A", "50.00", "2024-01-10"),
	}
	txs := []*reconcile.BankTransaction{
		makeTransaction(1, "REF-001", "100.00", "2024-01-15"),
		makeTransaction(2, "", "60.00", "2024-01-16"),
		makeTransaction(3, "", "40.00", "2024-01-14"),
		makeTransaction(4, "", "90.00", "2024-01-21"),
		makeTransaction(5, "TX-B", "50.00", "2024-01-10"),
	}
	ledger := reconcile.NewLedger(invoices, txs, nil)
	m := newTestMatcher(t)

	first, err := m.Run(ledger)
	require.NoError(t, err)
	firstLinks := shapes(ledger.Links())
	firstStatuses := []reconcile.InvoiceStatus{}
	for _, inv := range ledger.Invoices() {
		firstStatuses = append(firstStatuses, inv.Status)
	}

	second, err := m.Run(ledger)
	require.NoError(t, err)

	assert.Equal(t, len(first.Links), second.RemovedLinks)
	assert.Equal(t, firstLinks, shapes(ledger.Links()))
	for i, inv := range ledger.Invoices() {
		assert.Equal(t, firstStatuses[i], inv.Status)
	}
	assert.Equal(t, 1, second.LinksOf(reconcile.MatchExact))
	assert.Equal(t, 2, second.LinksOf(reconcile.MatchPartialPayment))
	assert.Equal(t, 1, second.LinksOf(reconcile.MatchOverpayment))
}

func TestNewMatcher_UnknownSimilarity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Similarity = "soundex"

	_, err := NewMatcher(cfg, nil)

	assert.Error(t, err)
}
