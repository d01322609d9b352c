package reconcile

import "github.com/shopspring/decimal"

// InvoiceStatusFor derives an invoice status from its matched and total amounts.
// Comparisons are exact.
func InvoiceStatusFor(matched, amount decimal.Decimal) InvoiceStatus {
	switch {
	case matched.IsZero():
		return InvoiceUnpaid
	case matched.LessThan(amount):
		return InvoicePartiallyPaid
	case matched.Equal(amount):
		return InvoicePaid
	default:
		return InvoiceOverpaid
	}
}

// TransactionStatusFor derives a transaction status from its matched amount
// and signed amount. Outgoing transactions stay OUTGOING whatever is matched.
func TransactionStatusFor(matched, amount decimal.Decimal) TransactionStatus {
	switch {
	case amount.IsNegative():
		return TransactionOutgoing
	case matched.IsZero():
		return TransactionUnmatched
	case matched.LessThan(amount.Abs()):
		return TransactionPartiallyMatched
	default:
		return TransactionMatched
	}
}

// RefreshStatus recomputes the invoice status from its current amounts.
func (i *Invoice) RefreshStatus() {
	i.Status = InvoiceStatusFor(i.MatchedAmount, i.Amount)
}

// RefreshStatus recomputes the transaction status from its current amounts.
func (t *BankTransaction) RefreshStatus() {
	t.Status = TransactionStatusFor(t.MatchedAmount, t.Amount)
}
