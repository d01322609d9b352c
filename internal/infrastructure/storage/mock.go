package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

// MockRepository is an in-memory implementation of Repository for testing.
// Records are copied on the way in and out, so callers only see changes
// that went through Save or Commit.
type MockRepository struct {
	mu sync.Mutex

	invoices     map[int64]*reconcile.Invoice
	transactions map[int64]*reconcile.BankTransaction
	links        []*reconcile.Link
	audit        []reconcile.AuditEntry
	runs         map[string]*RunRecord
	nextInvoice  int64
	nextTx       int64
	nextAudit    int64

	// Hooks for test assertions
	CommitCalls int
	LastCommit  *reconcile.Changeset

	// Error injection for testing error paths
	SaveInvoiceErr     error
	SaveTransactionErr error
	ListInvoicesErr    error
	ListLinksErr       error
	CommitErr          error
	StartRunErr        error
	CompleteRunErr     error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		invoices:     make(map[int64]*reconcile.Invoice),
		transactions: make(map[int64]*reconcile.BankTransaction),
		runs:         make(map[string]*RunRecord),
		nextInvoice:  1,
		nextTx:       1,
		nextAudit:    1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveInvoice stores a copy of the invoice
func (m *MockRepository) SaveInvoice(_ context.Context, inv *reconcile.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveInvoiceErr != nil {
		return m.SaveInvoiceErr
	}
	if inv.ID == 0 {
		for _, existing := range m.invoices {
			if existing.ExternalID == inv.ExternalID {
				return fmt.Errorf("invoice %s: %w", inv.ExternalID, reconcile.ErrAlreadyRegistered)
			}
		}
		inv.ID = m.nextInvoice
		m.nextInvoice++
	}
	m.invoices[inv.ID] = copyInvoice(inv)
	return nil
}

// GetInvoice returns a copy of the invoice or nil
func (m *MockRepository) GetInvoice(_ context.Context, id int64) (*reconcile.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, nil
	}
	return copyInvoice(inv), nil
}

// FindInvoiceByExternalID returns a copy of the invoice or nil
func (m *MockRepository) FindInvoiceByExternalID(_ context.Context, externalID string) (*reconcile.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.invoices {
		if inv.ExternalID == externalID {
			return copyInvoice(inv), nil
		}
	}
	return nil, nil
}

// ListInvoices returns copies ordered by id
func (m *MockRepository) ListInvoices(_ context.Context, filter ListFilter) ([]*reconcile.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListInvoicesErr != nil {
		return nil, m.ListInvoicesErr
	}
	var out []*reconcile.Invoice
	for _, id := range sortedKeys(m.invoices) {
		inv := m.invoices[id]
		if filter.Status != "" && !strings.EqualFold(string(inv.Status), filter.Status) {
			continue
		}
		out = append(out, copyInvoice(inv))
	}
	return paginate(out, filter), nil
}

// SaveTransaction stores a copy of the transaction
func (m *MockRepository) SaveTransaction(_ context.Context, tx *reconcile.BankTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveTransactionErr != nil {
		return m.SaveTransactionErr
	}
	if tx.ID == 0 {
		for _, existing := range m.transactions {
			if existing.ExternalID == tx.ExternalID {
				return fmt.Errorf("transaction %s: %w", tx.ExternalID, reconcile.ErrAlreadyRegistered)
			}
		}
		tx.ID = m.nextTx
		m.nextTx++
	}
	m.transactions[tx.ID] = copyTransaction(tx)
	return nil
}

// GetTransaction returns a copy of the transaction or nil
func (m *MockRepository) GetTransaction(_ context.Context, id int64) (*reconcile.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	if !ok {
		return nil, nil
	}
	return copyTransaction(tx), nil
}

// FindTransactionByExternalID returns a copy of the transaction or nil
func (m *MockRepository) FindTransactionByExternalID(_ context.Context, externalID string) (*reconcile.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tx := range m.transactions {
		if tx.ExternalID == externalID {
			return copyTransaction(tx), nil
		}
	}
	return nil, nil
}

// ListTransactions returns copies ordered by id
func (m *MockRepository) ListTransactions(_ context.Context, filter ListFilter) ([]*reconcile.BankTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reconcile.BankTransaction
	for _, id := range sortedKeys(m.transactions) {
		tx := m.transactions[id]
		if filter.Status != "" && !strings.EqualFold(string(tx.Status), filter.Status) {
			continue
		}
		out = append(out, copyTransaction(tx))
	}
	return paginate(out, filter), nil
}

// ListLinks returns copies of every link in creation order
func (m *MockRepository) ListLinks(_ context.Context) ([]*reconcile.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListLinksErr != nil {
		return nil, m.ListLinksErr
	}
	return m.filterLinks(func(*reconcile.Link) bool { return true }), nil
}

// ListLinksByInvoice returns copies of an invoice's links
func (m *MockRepository) ListLinksByInvoice(_ context.Context, invoiceID int64) ([]*reconcile.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListLinksErr != nil {
		return nil, m.ListLinksErr
	}
	return m.filterLinks(func(l *reconcile.Link) bool { return l.InvoiceID == invoiceID }), nil
}

// ListLinksByTransaction returns copies of a transaction's links
func (m *MockRepository) ListLinksByTransaction(_ context.Context, transactionID int64) ([]*reconcile.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListLinksErr != nil {
		return nil, m.ListLinksErr
	}
	return m.filterLinks(func(l *reconcile.Link) bool { return l.TransactionID == transactionID }), nil
}

func (m *MockRepository) filterLinks(keep func(*reconcile.Link) bool) []*reconcile.Link {
	var out []*reconcile.Link
	for _, l := range m.links {
		if keep(l) {
			copied := *l
			out = append(out, &copied)
		}
	}
	return out
}

// RecordAudit appends an audit entry
func (m *MockRepository) RecordAudit(_ context.Context, entry *reconcile.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendAudit(entry)
	return nil
}

func (m *MockRepository) appendAudit(entry *reconcile.AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.ID = m.nextAudit
	m.nextAudit++
	m.audit = append(m.audit, *entry)
}

// ListAudit returns audit entries newest first
func (m *MockRepository) ListAudit(_ context.Context, filter AuditFilter) ([]reconcile.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []reconcile.AuditEntry
	for i := len(m.audit) - 1; i >= 0; i-- {
		e := m.audit[i]
		if filter.EntityType != "" && e.EntityType != filter.EntityType {
			continue
		}
		if filter.EntityID != "" && e.EntityID != filter.EntityID {
			continue
		}
		out = append(out, e)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// StartRun records a run
func (m *MockRepository) StartRun(_ context.Context, run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartRunErr != nil {
		return m.StartRunErr
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// CompleteRun replaces the stored run
func (m *MockRepository) CompleteRun(_ context.Context, run *RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}
	if _, ok := m.runs[run.ID]; !ok {
		return fmt.Errorf("run %s: %w", run.ID, reconcile.ErrNotFound)
	}
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

// ListRuns returns runs newest first
func (m *MockRepository) ListRuns(_ context.Context, limit int) ([]RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RunRecord, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetRun returns a run or nil
func (m *MockRepository) GetRun(_ context.Context, id string) (*RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

// Commit applies a changeset all-or-nothing
func (m *MockRepository) Commit(_ context.Context, cs reconcile.Changeset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommitCalls++
	m.LastCommit = &cs
	if m.CommitErr != nil {
		return m.CommitErr
	}

	for _, inv := range cs.Invoices {
		if _, ok := m.invoices[inv.ID]; !ok {
			return fmt.Errorf("invoice %d: %w", inv.ID, reconcile.ErrNotFound)
		}
	}
	for _, tx := range cs.Transactions {
		if _, ok := m.transactions[tx.ID]; !ok {
			return fmt.Errorf("transaction %d: %w", tx.ID, reconcile.ErrNotFound)
		}
	}

	deleted := make(map[string]bool, len(cs.DeletedLinkIDs))
	for _, id := range cs.DeletedLinkIDs {
		deleted[id] = true
	}
	kept := m.links[:0:0]
	for _, l := range m.links {
		if !deleted[l.ID] {
			kept = append(kept, l)
		}
	}
	m.links = kept

	for _, inv := range cs.Invoices {
		m.invoices[inv.ID] = copyInvoice(inv)
	}
	for _, tx := range cs.Transactions {
		m.transactions[tx.ID] = copyTransaction(tx)
	}
	for _, l := range cs.CreatedLinks {
		copied := *l
		m.links = append(m.links, &copied)
	}
	for i := range cs.Audit {
		m.appendAudit(&cs.Audit[i])
	}
	return nil
}

func copyInvoice(inv *reconcile.Invoice) *reconcile.Invoice {
	copied := *inv
	if inv.Confidence != nil {
		c := *inv.Confidence
		copied.Confidence = &c
	}
	return &copied
}

func copyTransaction(tx *reconcile.BankTransaction) *reconcile.BankTransaction {
	copied := *tx
	return &copied
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func paginate[T any](items []T, filter ListFilter) []T {
	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return nil
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items
}
