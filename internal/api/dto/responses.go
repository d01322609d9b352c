package dto

import "time"

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// InvoiceResponse represents an invoice in API responses.
type InvoiceResponse struct {
	ID            int64  `json:"id"`
	ExternalID    string `json:"external_id"`
	Reference     string `json:"reference"`
	Amount        string `json:"amount"`
	Date          string `json:"date"`
	Description   string `json:"description,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	Status        string `json:"status"`
	MatchedAmount string `json:"matched_amount"`
	Confidence    *int   `json:"confidence,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// InvoiceListResponse is returned when listing invoices.
type InvoiceListResponse struct {
	Invoices []InvoiceResponse `json:"invoices"`
	Count    int               `json:"count"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

// TransactionResponse represents a bank transaction in API responses.
type TransactionResponse struct {
	ID            int64  `json:"id"`
	ExternalID    string `json:"external_id"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	Description   string `json:"description,omitempty"`
	Reference     string `json:"reference,omitempty"`
	Status        string `json:"status"`
	MatchedAmount string `json:"matched_amount"`
}

// TransactionListResponse is returned when listing transactions.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Count        int                   `json:"count"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// LinkResponse represents a reconciliation link.
type LinkResponse struct {
	ID            string `json:"id"`
	InvoiceID     int64  `json:"invoice_id"`
	TransactionID int64  `json:"transaction_id"`
	Amount        string `json:"amount"`
	MatchType     string `json:"match_type"`
	Confidence    int    `json:"confidence"`
	CreatedAt     string `json:"created_at"`
}

// LinkListResponse is returned when listing the links of an invoice or transaction.
type LinkListResponse struct {
	Links []LinkResponse `json:"links"`
	Count int            `json:"count"`
}

// RunResponse represents a reconciliation run.
type RunResponse struct {
	ID               string `json:"id"`
	Actor            string `json:"actor"`
	StartedAt        string `json:"started_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
	Status           string `json:"status"`
	RemovedLinks     int    `json:"removed_links"`
	ExactLinks       int    `json:"exact_links"`
	FuzzyLinks       int    `json:"fuzzy_links"`
	PartialLinks     int    `json:"partial_links"`
	OverpaymentLinks int    `json:"overpayment_links"`
	ErrorMessage     string `json:"error_message,omitempty"`
}

// RunListResponse is returned when listing runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// AuditEntryResponse represents one audit log row.
type AuditEntryResponse struct {
	ID         int64  `json:"id"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Reason     string `json:"reason,omitempty"`
	Before     string `json:"before,omitempty"`
	After      string `json:"after,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// AuditListResponse is returned when listing the audit log.
type AuditListResponse struct {
	Entries []AuditEntryResponse `json:"entries"`
	Count   int                  `json:"count"`
}

// UploadResponse is returned after a CSV upload.
type UploadResponse struct {
	Kind       string `json:"kind"`
	Parsed     int    `json:"parsed"`
	Imported   int    `json:"imported"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	Message    string `json:"message"`
}

// MessageResponse carries a plain message.
type MessageResponse struct {
	Message string `json:"message"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
