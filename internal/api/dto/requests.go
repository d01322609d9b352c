package dto

import "github.com/shopspring/decimal"

// LinkRequest is the body of POST /api/override/link.
// Amount accepts a JSON number or string; omitted means the transaction's
// full amount.
type LinkRequest struct {
	InvoiceID     int64            `json:"invoice_id"`
	TransactionID int64            `json:"transaction_id"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Reason        string           `json:"reason"`
}

// UnlinkRequest is the body of POST /api/override/unlink.
type UnlinkRequest struct {
	InvoiceID     int64  `json:"invoice_id"`
	TransactionID int64  `json:"transaction_id"`
	Reason        string `json:"reason"`
}

// NotesRequest is the body of PUT /api/override/invoices/{id}/notes.
type NotesRequest struct {
	Notes  string `json:"notes"`
	Reason string `json:"reason"`
}

// ListParams represents paging query parameters.
type ListParams struct {
	Status string `json:"status"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// DefaultListParams returns default values for list params.
func DefaultListParams() ListParams {
	return ListParams{
		Limit:  100,
		Offset: 0,
	}
}

// DefaultRunListLimit is the number of runs listed when no limit is given.
const DefaultRunListLimit = 20

// DefaultAuditListLimit is the number of audit entries listed when no limit is given.
const DefaultAuditListLimit = 100
