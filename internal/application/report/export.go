package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// Kind names an export
type Kind string

// Available exports
const (
	KindReconciliation        Kind = "reconciliation"
	KindUnmatchedInvoices     Kind = "unmatched-invoices"
	KindUnmatchedTransactions Kind = "unmatched-transactions"
	KindAuditLog              Kind = "audit"
)

// Kinds lists every export in a stable order
var Kinds = []Kind{KindReconciliation, KindUnmatchedInvoices, KindUnmatchedTransactions, KindAuditLog}

// ParseKind validates an export name
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown report %q", s)
}

// Filename suggests a download name for an export
func (k Kind) Filename() string {
	return string(k) + ".csv"
}

// auditExportLimit bounds the audit export
const auditExportLimit = 100000

// Export writes the named CSV report to w
func (s *Service) Export(ctx context.Context, kind Kind, w io.Writer) error {
	cw := csv.NewWriter(w)
	var err error
	switch kind {
	case KindReconciliation:
		err = s.writeReconciliation(ctx, cw)
	case KindUnmatchedInvoices:
		err = s.writeUnmatchedInvoices(ctx, cw)
	case KindUnmatchedTransactions:
		err = s.writeUnmatchedTransactions(ctx, cw)
	case KindAuditLog:
		err = s.writeAuditLog(ctx, cw)
	default:
		return fmt.Errorf("unknown report %q", kind)
	}
	if err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write %s report: %w", kind, err)
	}
	s.logger.Debug("report exported", "report", string(kind))
	return nil
}

func (s *Service) writeReconciliation(ctx context.Context, cw *csv.Writer) error {
	invoices, err := s.store.ListInvoices(ctx, storage.ListFilter{})
	if err != nil {
		return fmt.Errorf("failed to load invoices: %w", err)
	}
	links, err := s.store.ListLinks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load links: %w", err)
	}
	byInvoice := make(map[int64][]*reconcile.Link)
	for _, l := range links {
		byInvoice[l.InvoiceID] = append(byInvoice[l.InvoiceID], l)
	}

	if err := cw.Write([]string{"InvoiceId", "Reference", "Amount", "Date", "Status", "MatchedAmount", "TransactionIds", "MatchType"}); err != nil {
		return err
	}
	for _, inv := range invoices {
		var txIDs, types []string
		for _, l := range byInvoice[inv.ID] {
			txIDs = append(txIDs, strconv.FormatInt(l.TransactionID, 10))
			types = append(types, string(l.MatchType))
		}
		err := cw.Write([]string{
			strconv.FormatInt(inv.ID, 10),
			inv.Reference,
			inv.Amount.StringFixed(2),
			inv.Date.Format(reconcile.DateLayout),
			string(inv.Status),
			inv.MatchedAmount.StringFixed(2),
			strings.Join(txIDs, ";"),
			strings.Join(types, ";"),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writeUnmatchedInvoices(ctx context.Context, cw *csv.Writer) error {
	invoices, err := s.store.ListInvoices(ctx, storage.ListFilter{})
	if err != nil {
		return fmt.Errorf("failed to load invoices: %w", err)
	}
	if err := cw.Write([]string{"Id", "Reference", "Amount", "Date", "Description", "CustomerName", "Status"}); err != nil {
		return err
	}
	for _, inv := range invoices {
		if !inv.MatchedAmount.IsZero() {
			continue
		}
		err := cw.Write([]string{
			strconv.FormatInt(inv.ID, 10),
			inv.Reference,
			inv.Amount.StringFixed(2),
			inv.Date.Format(reconcile.DateLayout),
			inv.Description,
			inv.CustomerName,
			string(inv.Status),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writeUnmatchedTransactions(ctx context.Context, cw *csv.Writer) error {
	txs, err := s.store.ListTransactions(ctx, storage.ListFilter{})
	if err != nil {
		return fmt.Errorf("failed to load transactions: %w", err)
	}
	if err := cw.Write([]string{"Id", "Date", "Amount", "Description", "Reference", "Status"}); err != nil {
		return err
	}
	for _, tx := range txs {
		if !tx.MatchedAmount.IsZero() {
			continue
		}
		err := cw.Write([]string{
			strconv.FormatInt(tx.ID, 10),
			tx.Date.Format(reconcile.DateLayout),
			tx.Amount.StringFixed(2),
			tx.Description,
			tx.Reference,
			string(tx.Status),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) writeAuditLog(ctx context.Context, cw *csv.Writer) error {
	entries, err := s.store.ListAudit(ctx, storage.AuditFilter{Limit: auditExportLimit})
	if err != nil {
		return fmt.Errorf("failed to load audit log: %w", err)
	}
	if err := cw.Write([]string{"Id", "UserId", "Timestamp", "Action", "EntityType", "EntityId", "Reason", "BeforeState", "AfterState"}); err != nil {
		return err
	}
	for _, e := range entries {
		err := cw.Write([]string{
			strconv.FormatInt(e.ID, 10),
			e.Actor,
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Action,
			e.EntityType,
			e.EntityID,
			e.Reason,
			e.Before,
			e.After,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
