package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestInvoiceStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		matched string
		amount  string
		want    InvoiceStatus
	}{
		{"nothing matched", "0", "100.00", InvoiceUnpaid},
		{"partly matched", "40.00", "100.00", InvoicePartiallyPaid},
		{"exactly matched", "100.00", "100.00", InvoicePaid},
		{"trailing zeros compare equal", "100", "100.00", InvoicePaid},
		{"more than owed", "150.00", "100.00", InvoiceOverpaid},
		{"one cent short is not paid", "99.99", "100.00", InvoicePartiallyPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InvoiceStatusFor(d(tt.matched), d(tt.amount)))
		})
	}
}

func TestTransactionStatusFor(t *testing.T) {
	tests := []struct {
		name    string
		matched string
		amount  string
		want    TransactionStatus
	}{
		{"nothing matched", "0", "100.00", TransactionUnmatched},
		{"partly matched", "60.00", "100.00", TransactionPartiallyMatched},
		{"fully matched", "100.00", "100.00", TransactionMatched},
		{"matched beyond amount", "120.00", "100.00", TransactionMatched},
		{"outgoing regardless of match", "0", "-100.00", TransactionOutgoing},
		{"outgoing even when matched", "100.00", "-100.00", TransactionOutgoing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TransactionStatusFor(d(tt.matched), d(tt.amount)))
		})
	}
}

func TestParseMatchType(t *testing.T) {
	mt, err := ParseMatchType(" partial_payment ")
	assert.NoError(t, err)
	assert.Equal(t, MatchPartialPayment, mt)

	mt, err = ParseMatchType("MISSING_PAYMENT")
	assert.NoError(t, err)
	assert.Equal(t, MatchMissingPayment, mt)

	_, err = ParseMatchType("BOGUS")
	assert.Error(t, err)
}

func TestDaysApart(t *testing.T) {
	a := mustDate("2024-01-15")
	assert.Equal(t, 0, DaysApart(a, mustDate("2024-01-15")))
	assert.Equal(t, 2, DaysApart(a, mustDate("2024-01-13")))
	assert.Equal(t, 2, DaysApart(a, mustDate("2024-01-17")))
	assert.Equal(t, 17, DaysApart(a, mustDate("2024-02-01")))
	assert.True(t, SameDay(a, a.Add(5*time.Hour)))
}
