package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

const timestampLayout = time.RFC3339Nano

// Storage provides SQLite database access for reconciliation data.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// One writer at a time; the pragma below is per connection.
	db.SetMaxOpenConns(1)

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the latest applied migration version
func (s *Storage) SchemaVersion() (int64, error) {
	return schemaVersion(s.db)
}

// ================================================================
// INVOICES
// ================================================================

const invoiceColumns = `id, external_id, reference, amount, invoice_date, description,
	customer_name, status, matched_amount, confidence, notes`

// SaveInvoice inserts or updates an invoice
func (s *Storage) SaveInvoice(ctx context.Context, inv *reconcile.Invoice) error {
	if inv.ID == 0 {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO invoices
			(external_id, reference, amount, invoice_date, description, customer_name,
			 status, matched_amount, confidence, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.ExternalID, inv.Reference, inv.Amount, inv.Date.Format(reconcile.DateLayout),
			inv.Description, inv.CustomerName, string(inv.Status), inv.MatchedAmount,
			nullableInt(inv.Confidence), inv.Notes,
		)
		if err != nil {
			return translateError(err, "invoice "+inv.ExternalID)
		}
		inv.ID, err = result.LastInsertId()
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE invoices
		SET external_id = ?, reference = ?, amount = ?, invoice_date = ?, description = ?,
		    customer_name = ?, status = ?, matched_amount = ?, confidence = ?, notes = ?
		WHERE id = ?`,
		inv.ExternalID, inv.Reference, inv.Amount, inv.Date.Format(reconcile.DateLayout),
		inv.Description, inv.CustomerName, string(inv.Status), inv.MatchedAmount,
		nullableInt(inv.Confidence), inv.Notes, inv.ID,
	)
	return translateError(err, "invoice "+inv.ExternalID)
}

// GetInvoice retrieves an invoice by id
func (s *Storage) GetInvoice(ctx context.Context, id int64) (*reconcile.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	return scanInvoiceRow(row)
}

// FindInvoiceByExternalID retrieves an invoice by its ingestion id
func (s *Storage) FindInvoiceByExternalID(ctx context.Context, externalID string) (*reconcile.Invoice, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE external_id = ?`, externalID)
	return scanInvoiceRow(row)
}

// ListInvoices returns invoices ordered by id
func (s *Storage) ListInvoices(ctx context.Context, filter ListFilter) ([]*reconcile.Invoice, error) {
	query, args := listQuery(`SELECT `+invoiceColumns+` FROM invoices`, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var invoices []*reconcile.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvoiceRow(row *sql.Row) (*reconcile.Invoice, error) {
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

func scanInvoice(sc scanner) (*reconcile.Invoice, error) {
	inv := &reconcile.Invoice{}
	var date, status string
	var confidence sql.NullInt64
	err := sc.Scan(
		&inv.ID,
		&inv.ExternalID,
		&inv.Reference,
		&inv.Amount,
		&date,
		&inv.Description,
		&inv.CustomerName,
		&status,
		&inv.MatchedAmount,
		&confidence,
		&inv.Notes,
	)
	if err != nil {
		return nil, err
	}
	if inv.Date, err = time.Parse(reconcile.DateLayout, date); err != nil {
		return nil, fmt.Errorf("invoice %d date: %w", inv.ID, err)
	}
	inv.Status = reconcile.InvoiceStatus(status)
	if confidence.Valid {
		c := int(confidence.Int64)
		inv.Confidence = &c
	}
	return inv, nil
}

// ================================================================
// BANK TRANSACTIONS
// ================================================================

const transactionColumns = `id, external_id, transaction_date, amount, description,
	reference, status, matched_amount`

// SaveTransaction inserts or updates a bank transaction
func (s *Storage) SaveTransaction(ctx context.Context, tx *reconcile.BankTransaction) error {
	if tx.ID == 0 {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO bank_transactions
			(external_id, transaction_date, amount, description, reference, status, matched_amount)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tx.ExternalID, tx.Date.Format(reconcile.DateLayout), tx.Amount, tx.Description,
			tx.Reference, string(tx.Status), tx.MatchedAmount,
		)
		if err != nil {
			return translateError(err, "transaction "+tx.ExternalID)
		}
		tx.ID, err = result.LastInsertId()
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE bank_transactions
		SET external_id = ?, transaction_date = ?, amount = ?, description = ?,
		    reference = ?, status = ?, matched_amount = ?
		WHERE id = ?`,
		tx.ExternalID, tx.Date.Format(reconcile.DateLayout), tx.Amount, tx.Description,
		tx.Reference, string(tx.Status), tx.MatchedAmount, tx.ID,
	)
	return translateError(err, "transaction "+tx.ExternalID)
}

// GetTransaction retrieves a transaction by id
func (s *Storage) GetTransaction(ctx context.Context, id int64) (*reconcile.BankTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM bank_transactions WHERE id = ?`, id)
	return scanTransactionRow(row)
}

// FindTransactionByExternalID retrieves a transaction by its ingestion id
func (s *Storage) FindTransactionByExternalID(ctx context.Context, externalID string) (*reconcile.BankTransaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM bank_transactions WHERE external_id = ?`, externalID)
	return scanTransactionRow(row)
}

// ListTransactions returns transactions ordered by id
func (s *Storage) ListTransactions(ctx context.Context, filter ListFilter) ([]*reconcile.BankTransaction, error) {
	query, args := listQuery(`SELECT `+transactionColumns+` FROM bank_transactions`, filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []*reconcile.BankTransaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransactionRow(row *sql.Row) (*reconcile.BankTransaction, error) {
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return tx, err
}

func scanTransaction(sc scanner) (*reconcile.BankTransaction, error) {
	tx := &reconcile.BankTransaction{}
	var date, status string
	err := sc.Scan(
		&tx.ID,
		&tx.ExternalID,
		&date,
		&tx.Amount,
		&tx.Description,
		&tx.Reference,
		&status,
		&tx.MatchedAmount,
	)
	if err != nil {
		return nil, err
	}
	if tx.Date, err = time.Parse(reconcile.DateLayout, date); err != nil {
		return nil, fmt.Errorf("transaction %d date: %w", tx.ID, err)
	}
	tx.Status = reconcile.TransactionStatus(status)
	return tx, nil
}

// ================================================================
// LINKS
// ================================================================

const linkColumns = `id, invoice_id, transaction_id, amount, invoice_credit,
	transaction_credit, match_type, confidence, created_at`

// ListLinks returns every link in creation order
func (s *Storage) ListLinks(ctx context.Context) ([]*reconcile.Link, error) {
	return s.queryLinks(ctx, `SELECT `+linkColumns+` FROM reconciliation_links ORDER BY seq`)
}

// ListLinksByInvoice returns an invoice's links in creation order
func (s *Storage) ListLinksByInvoice(ctx context.Context, invoiceID int64) ([]*reconcile.Link, error) {
	return s.queryLinks(ctx, `SELECT `+linkColumns+` FROM reconciliation_links WHERE invoice_id = ? ORDER BY seq`, invoiceID)
}

// ListLinksByTransaction returns a transaction's links in creation order
func (s *Storage) ListLinksByTransaction(ctx context.Context, transactionID int64) ([]*reconcile.Link, error) {
	return s.queryLinks(ctx, `SELECT `+linkColumns+` FROM reconciliation_links WHERE transaction_id = ? ORDER BY seq`, transactionID)
}

func (s *Storage) queryLinks(ctx context.Context, query string, args ...any) ([]*reconcile.Link, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var links []*reconcile.Link
	for rows.Next() {
		link := &reconcile.Link{}
		var matchType, createdAt string
		err := rows.Scan(
			&link.ID,
			&link.InvoiceID,
			&link.TransactionID,
			&link.Amount,
			&link.InvoiceCredit,
			&link.TransactionCredit,
			&matchType,
			&link.Confidence,
			&createdAt,
		)
		if err != nil {
			return nil, err
		}
		link.MatchType = reconcile.MatchType(matchType)
		if link.CreatedAt, err = time.Parse(timestampLayout, createdAt); err != nil {
			return nil, fmt.Errorf("link %s created_at: %w", link.ID, err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// ================================================================
// AUDIT
// ================================================================

// RecordAudit appends an audit entry and assigns its id
func (s *Storage) RecordAudit(ctx context.Context, entry *reconcile.AuditEntry) error {
	return insertAudit(ctx, s.db, entry)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertAudit(ctx context.Context, db execer, entry *reconcile.AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	result, err := db.ExecContext(ctx, `
		INSERT INTO audit_log
		(actor, action, entity_type, entity_id, reason, before_state, after_state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Actor, entry.Action, entry.EntityType, entry.EntityID, entry.Reason,
		entry.Before, entry.After, entry.Timestamp.UTC().Format(timestampLayout),
	)
	if err != nil {
		return err
	}
	entry.ID, err = result.LastInsertId()
	return err
}

// ListAudit returns audit entries newest first
func (s *Storage) ListAudit(ctx context.Context, filter AuditFilter) ([]reconcile.AuditEntry, error) {
	query := `SELECT id, actor, action, entity_type, entity_id, reason, before_state, after_state, created_at
		FROM audit_log`
	var where []string
	var args []any
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []reconcile.AuditEntry
	for rows.Next() {
		var e reconcile.AuditEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID,
			&e.Reason, &e.Before, &e.After, &ts); err != nil {
			return nil, err
		}
		if e.Timestamp, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, fmt.Errorf("audit %d timestamp: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ================================================================
// RUNS
// ================================================================

// StartRun records the start of a reconciliation run
func (s *Storage) StartRun(ctx context.Context, run *RunRecord) error {
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, actor, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.ID, run.Actor, run.StartedAt.UTC().Format(timestampLayout), run.Status,
	)
	return err
}

// CompleteRun records the completion of a reconciliation run
func (s *Storage) CompleteRun(ctx context.Context, run *RunRecord) error {
	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UTC().Format(timestampLayout)
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE reconciliation_runs
		SET completed_at = ?, status = ?, removed_links = ?, exact_links = ?,
		    fuzzy_links = ?, partial_links = ?, overpayment_links = ?, error_message = ?
		WHERE id = ?`,
		completedAt, run.Status, run.RemovedLinks, run.ExactLinks, run.FuzzyLinks,
		run.PartialLinks, run.OverpaymentLinks, run.ErrorMessage, run.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", run.ID, reconcile.ErrNotFound)
	}
	return nil
}

const runColumns = `id, actor, started_at, completed_at, status, removed_links, exact_links,
	fuzzy_links, partial_links, overpayment_links, error_message`

// ListRuns returns recent runs, newest first
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM reconciliation_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by id
func (s *Storage) GetRun(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM reconciliation_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func scanRun(sc scanner) (*RunRecord, error) {
	run := &RunRecord{}
	var startedAt string
	var completedAt sql.NullString
	err := sc.Scan(&run.ID, &run.Actor, &startedAt, &completedAt, &run.Status,
		&run.RemovedLinks, &run.ExactLinks, &run.FuzzyLinks, &run.PartialLinks,
		&run.OverpaymentLinks, &run.ErrorMessage)
	if err != nil {
		return nil, err
	}
	if run.StartedAt, err = time.Parse(timestampLayout, startedAt); err != nil {
		return nil, err
	}
	if completedAt.Valid {
		t, err := time.Parse(timestampLayout, completedAt.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	return run, nil
}

// ================================================================
// HELPERS
// ================================================================

func listQuery(base string, filter ListFilter) (string, []any) {
	var args []any
	query := base
	if filter.Status != "" {
		query += " WHERE status = ?"
		args = append(args, strings.ToUpper(filter.Status))
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}
	return query, args
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

// translateError maps unique constraint violations onto ErrAlreadyRegistered
func translateError(err error, what string) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%s: %w", what, reconcile.ErrAlreadyRegistered)
	}
	return err
}
