package storage

import (
	"context"
	"fmt"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

// Commit applies a ledger changeset inside one SQL transaction
func (s *Storage) Commit(ctx context.Context, cs reconcile.Changeset) error {
	if cs.IsEmpty() {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin commit: %w", err)
	}
	if err := applyChangeset(ctx, tx, cs); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit changeset: %w", err)
	}
	return nil
}

func applyChangeset(ctx context.Context, tx execer, cs reconcile.Changeset) error {
	for _, id := range cs.DeletedLinkIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM reconciliation_links WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete link %s: %w", id, err)
		}
	}

	for _, inv := range cs.Invoices {
		result, err := tx.ExecContext(ctx, `
			UPDATE invoices SET status = ?, matched_amount = ?, confidence = ?, notes = ?
			WHERE id = ?`,
			string(inv.Status), inv.MatchedAmount, nullableInt(inv.Confidence), inv.Notes, inv.ID,
		)
		if err != nil {
			return fmt.Errorf("update invoice %d: %w", inv.ID, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("invoice %d: %w", inv.ID, reconcile.ErrNotFound)
		}
	}

	for _, t := range cs.Transactions {
		result, err := tx.ExecContext(ctx, `
			UPDATE bank_transactions SET status = ?, matched_amount = ?
			WHERE id = ?`,
			string(t.Status), t.MatchedAmount, t.ID,
		)
		if err != nil {
			return fmt.Errorf("update transaction %d: %w", t.ID, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("transaction %d: %w", t.ID, reconcile.ErrNotFound)
		}
	}

	for _, link := range cs.CreatedLinks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reconciliation_links
			(id, invoice_id, transaction_id, amount, invoice_credit, transaction_credit,
			 match_type, confidence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			link.ID, link.InvoiceID, link.TransactionID, link.Amount, link.InvoiceCredit,
			link.TransactionCredit, string(link.MatchType), link.Confidence,
			link.CreatedAt.UTC().Format(timestampLayout),
		)
		if err != nil {
			return fmt.Errorf("insert link %s: %w", link.ID, err)
		}
	}

	for i := range cs.Audit {
		if err := insertAudit(ctx, tx, &cs.Audit[i]); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return nil
}
