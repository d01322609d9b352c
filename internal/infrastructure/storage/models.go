package storage

import "time"

// Run states
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Default page size for list queries
const defaultListLimit = 500

// ListFilter defines filters for listing invoices and transactions
type ListFilter struct {
	Status string // Filter by status (empty = all)
	Limit  int    // Max results (0 = no limit)
	Offset int    // Pagination offset
}

// AuditFilter defines filters for listing audit entries
type AuditFilter struct {
	EntityType string // empty = all
	EntityID   string // empty = all
	Limit      int    // 0 = default 500
}

// RunRecord is one reconciliation run in the history table
type RunRecord struct {
	ID               string     `json:"id"`
	Actor            string     `json:"actor"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Status           string     `json:"status"`
	RemovedLinks     int        `json:"removed_links"`
	ExactLinks       int        `json:"exact_links"`
	FuzzyLinks       int        `json:"fuzzy_links"`
	PartialLinks     int        `json:"partial_links"`
	OverpaymentLinks int        `json:"overpayment_links"`
	ErrorMessage     string     `json:"error_message,omitempty"`
}

// TotalLinks returns the number of links the run produced
func (r RunRecord) TotalLinks() int {
	return r.ExactLinks + r.FuzzyLinks + r.PartialLinks + r.OverpaymentLinks
}
