package storage

import (
	"context"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, in-memory, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	InvoiceRepository
	TransactionRepository
	LinkRepository
	AuditRepository
	RunRepository

	// Commit applies a ledger changeset in a single transaction. Either every
	// change lands or none does.
	Commit(ctx context.Context, cs reconcile.Changeset) error

	Close() error
}

// InvoiceRepository handles invoice records
type InvoiceRepository interface {
	// SaveInvoice inserts a new invoice (ID == 0, ID is assigned) or updates an existing one.
	// Inserting a duplicate external id returns reconcile.ErrAlreadyRegistered.
	SaveInvoice(ctx context.Context, inv *reconcile.Invoice) error

	// GetInvoice returns nil, nil when the invoice does not exist
	GetInvoice(ctx context.Context, id int64) (*reconcile.Invoice, error)

	// FindInvoiceByExternalID returns nil, nil when no invoice carries the id
	FindInvoiceByExternalID(ctx context.Context, externalID string) (*reconcile.Invoice, error)

	// ListInvoices returns invoices ordered by id
	ListInvoices(ctx context.Context, filter ListFilter) ([]*reconcile.Invoice, error)
}

// TransactionRepository handles bank statement lines
type TransactionRepository interface {
	SaveTransaction(ctx context.Context, tx *reconcile.BankTransaction) error
	GetTransaction(ctx context.Context, id int64) (*reconcile.BankTransaction, error)
	FindTransactionByExternalID(ctx context.Context, externalID string) (*reconcile.BankTransaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*reconcile.BankTransaction, error)
}

// LinkRepository reads reconciliation links. Links are only written through Commit.
type LinkRepository interface {
	// ListLinks returns every link in creation order
	ListLinks(ctx context.Context) ([]*reconcile.Link, error)
	ListLinksByInvoice(ctx context.Context, invoiceID int64) ([]*reconcile.Link, error)
	ListLinksByTransaction(ctx context.Context, transactionID int64) ([]*reconcile.Link, error)
}

// AuditRepository handles the audit trail
type AuditRepository interface {
	RecordAudit(ctx context.Context, entry *reconcile.AuditEntry) error

	// ListAudit returns entries newest first
	ListAudit(ctx context.Context, filter AuditFilter) ([]reconcile.AuditEntry, error)
}

// RunRepository handles reconciliation run history
type RunRepository interface {
	// StartRun records a run in the running state
	StartRun(ctx context.Context, run *RunRecord) error

	// CompleteRun records the final state of a run
	CompleteRun(ctx context.Context, run *RunRecord) error

	// ListRuns returns recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// GetRun returns nil, nil when the run does not exist
	GetRun(ctx context.Context, id string) (*RunRecord, error)
}
