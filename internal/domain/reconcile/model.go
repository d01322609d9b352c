// Package reconcile holds the reconciliation data model, status derivation
// and the link ledger shared by automatic matching and manual overrides.
//
// Invoices and bank transactions never hold their links. Links live in a
// single arena owned by a Ledger, indexed by invoice and by transaction.
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar-date format used for storage and reports.
const DateLayout = "2006-01-02"

// InvoiceStatus is the lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid        InvoiceStatus = "UNPAID"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceOverpaid      InvoiceStatus = "OVERPAID"
)

// TransactionStatus is the lifecycle state of a bank transaction.
type TransactionStatus string

const (
	TransactionUnmatched        TransactionStatus = "UNMATCHED"
	TransactionPartiallyMatched TransactionStatus = "PARTIALLY_MATCHED"
	TransactionMatched          TransactionStatus = "MATCHED"
	TransactionOutgoing         TransactionStatus = "OUTGOING"
)

// MatchType identifies the rule that produced a link.
type MatchType string

const (
	MatchExact          MatchType = "EXACT_MATCH"
	MatchFuzzy          MatchType = "FUZZY_MATCH"
	MatchPartialPayment MatchType = "PARTIAL_PAYMENT"
	MatchOverpayment    MatchType = "OVERPAYMENT"
	MatchManualOverride MatchType = "MANUAL_OVERRIDE"

	// MatchMissingPayment and MatchUnexpectedPayment are accepted when read
	// back from storage but never produced. Unmatched records are reported
	// from their zero matched amount instead.
	MatchMissingPayment    MatchType = "MISSING_PAYMENT"
	MatchUnexpectedPayment MatchType = "UNEXPECTED_PAYMENT"
)

// ParseMatchType validates a stored match type.
func ParseMatchType(s string) (MatchType, error) {
	switch mt := MatchType(strings.ToUpper(strings.TrimSpace(s))); mt {
	case MatchExact, MatchFuzzy, MatchPartialPayment, MatchOverpayment,
		MatchManualOverride, MatchMissingPayment, MatchUnexpectedPayment:
		return mt, nil
	}
	return "", fmt.Errorf("unknown match type %q", s)
}

// IsAutomatic reports whether links of this type are regenerated by every run.
func (m MatchType) IsAutomatic() bool {
	return m != MatchManualOverride
}

// Invoice is one receivable from the customer ledger.
type Invoice struct {
	ID            int64
	ExternalID    string
	Reference     string
	Amount        decimal.Decimal
	Date          time.Time
	Description   string
	CustomerName  string
	Status        InvoiceStatus
	MatchedAmount decimal.Decimal
	Confidence    *int
	Notes         string
}

// BankTransaction is one line of the bank statement. Negative amounts are outgoing.
type BankTransaction struct {
	ID            int64
	ExternalID    string
	Date          time.Time
	Amount        decimal.Decimal
	Description   string
	Reference     string
	Status        TransactionStatus
	MatchedAmount decimal.Decimal
}

// EffectiveAmount is the absolute value of the signed amount, the figure
// compared against invoice amounts.
func (t *BankTransaction) EffectiveAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// Link allocates part of a transaction to an invoice. Links are immutable.
//
// InvoiceCredit and TransactionCredit are the amounts added to each side's
// matched amount when the link was created; deleting the link subtracts
// exactly these. They equal Amount except for overpayment links.
type Link struct {
	ID                string
	InvoiceID         int64
	TransactionID     int64
	Amount            decimal.Decimal
	InvoiceCredit     decimal.Decimal
	TransactionCredit decimal.Decimal
	MatchType         MatchType
	Confidence        int
	CreatedAt         time.Time
}

// SameDay reports whether two timestamps fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysApart returns the absolute number of calendar days between two dates.
func DaysApart(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
