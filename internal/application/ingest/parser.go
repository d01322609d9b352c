// Package ingest loads customer ledgers and bank statements from CSV files.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
)

// ErrEmptyFile is returned when an upload carries no header row.
var ErrEmptyFile = errors.New("file is empty")

// ErrMissingColumns is returned when a header lacks a required column.
var ErrMissingColumns = errors.New("missing required columns")

// Accepted date layouts, tried in order. Day-first wins over month-first
// when both parse.
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"01/02/2006",
}

// Column aliases. Header names are compared after normalizeHeader.
var (
	invoiceIDColumns     = []string{"invoiceid", "id"}
	transactionIDColumns = []string{"transactionid", "id"}
	referenceColumns     = []string{"reference", "ref"}
	amountColumns        = []string{"amount"}
	dateColumns          = []string{"date"}
	invoiceDateColumns   = []string{"invoicedate"}
	dueDateColumns       = []string{"duedate"}
	txDateColumns        = []string{"transactiondate"}
	descriptionColumns   = []string{"description", "desc"}
	customerColumns      = []string{"customername", "customer", "clientname"}
)

// externalIDSpace namespaces ids derived for rows that carry none.
var externalIDSpace = uuid.MustParse("6f1c2d4e-8a3b-5c7d-9e0f-1a2b3c4d5e6f")

// ParseResult holds the rows a parse accepted and how many it dropped.
type ParseResult[T any] struct {
	Records []T
	Skipped int
}

type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	names, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	h := make(header, len(names))
	for i, name := range names {
		key := normalizeHeader(name)
		if _, dup := h[key]; !dup {
			h[key] = i
		}
	}
	return h, nil
}

// index returns the position of the first alias present, or -1.
func (h header) index(aliases ...[]string) int {
	for _, group := range aliases {
		for _, name := range group {
			if i, ok := h[name]; ok {
				return i
			}
		}
	}
	return -1
}

func normalizeHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "")
	return strings.ReplaceAll(s, " ", "")
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// derivedIDs hands out stable external ids for rows without one. Identical
// rows in the same file get distinct ids by occurrence.
type derivedIDs struct {
	kind string
	seen map[string]int
}

func newDerivedIDs(kind string) *derivedIDs {
	return &derivedIDs{kind: kind, seen: make(map[string]int)}
}

func (d *derivedIDs) next(parts ...string) string {
	key := d.kind + "|" + strings.Join(parts, "|")
	d.seen[key]++
	key = fmt.Sprintf("%s#%d", key, d.seen[key])
	return uuid.NewSHA1(externalIDSpace, []byte(key)).String()
}

// ParseLedger reads invoices from a customer ledger CSV. Rows with a missing
// or malformed amount or date are skipped with a warning.
func ParseLedger(r io.Reader, logger *slog.Logger) (*ParseResult[*reconcile.Invoice], error) {
	if logger == nil {
		logger = slog.Default()
	}
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	idIdx := h.index(invoiceIDColumns)
	refIdx := h.index(referenceColumns)
	if refIdx < 0 {
		refIdx = idIdx
	}
	amountIdx := h.index(amountColumns)
	dateIdx := h.index(dateColumns, invoiceDateColumns, dueDateColumns)
	descIdx := h.index(descriptionColumns)
	customerIdx := h.index(customerColumns)
	if amountIdx < 0 || dateIdx < 0 {
		return nil, fmt.Errorf("ledger needs amount and date (date, invoice_date or due_date) columns: %w", ErrMissingColumns)
	}

	ids := newDerivedIDs("invoice")
	result := &ParseResult[*reconcile.Invoice]{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("ledger line skipped", "line", line, "error", err)
			result.Skipped++
			continue
		}

		amountStr, dateStr := field(row, amountIdx), field(row, dateIdx)
		if amountStr == "" || dateStr == "" {
			logger.Warn("ledger line skipped: missing required field", "line", line)
			result.Skipped++
			continue
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			logger.Warn("ledger line skipped", "line", line, "error", err)
			result.Skipped++
			continue
		}
		date, err := parseDate(dateStr)
		if err != nil {
			logger.Warn("ledger line skipped", "line", line, "error", err)
			result.Skipped++
			continue
		}

		externalID := field(row, idIdx)
		reference := field(row, refIdx)
		if reference == "" {
			reference = externalID
		}
		if externalID == "" {
			externalID = ids.next(reference, amount.String(), date.Format(reconcile.DateLayout))
		}

		result.Records = append(result.Records, &reconcile.Invoice{
			ExternalID:    externalID,
			Reference:     reference,
			Amount:        amount,
			Date:          date,
			Description:   field(row, descIdx),
			CustomerName:  field(row, customerIdx),
			Status:        reconcile.InvoiceUnpaid,
			MatchedAmount: decimal.Zero,
		})
	}
	return result, nil
}

// ParseStatement reads bank transactions from a statement CSV. Negative
// amounts are kept as outgoing transactions.
func ParseStatement(r io.Reader, logger *slog.Logger) (*ParseResult[*reconcile.BankTransaction], error) {
	if logger == nil {
		logger = slog.Default()
	}
	cr := newReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}

	idIdx := h.index(transactionIDColumns)
	dateIdx := h.index(dateColumns, txDateColumns)
	amountIdx := h.index(amountColumns)
	descIdx := h.index(descriptionColumns)
	refIdx := h.index(referenceColumns)
	if amountIdx < 0 || dateIdx < 0 {
		return nil, fmt.Errorf("statement needs amount and date (date or transaction_date) columns: %w", ErrMissingColumns)
	}

	ids := newDerivedIDs("transaction")
	result := &ParseResult[*reconcile.BankTransaction]{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("statement line skipped", "line", line, "error", err)
			result.Skipped++
			continue
		}

		amountStr, dateStr := field(row, amountIdx), field(row, dateIdx)
		if amountStr == "" || dateStr == "" {
			logger.Warn("statement line skipped: missing required field", "line", line)
			result.Skipped++
			continue
		}
		amount, err := parseAmount(amountStr)
		if err != nil {
			logger.Warn("statement line skipped", "line", line, "error", err)
			result.Skipped++
			continue
		}
		date, err := parseDate(dateStr)
		if err != nil {
			logger.Warn("statement line skipped", "line", line, "error", err)
			result.Skipped++
			continue
		}

		tx := &reconcile.BankTransaction{
			ExternalID:    field(row, idIdx),
			Date:          date,
			Amount:        amount,
			Description:   field(row, descIdx),
			Reference:     field(row, refIdx),
			MatchedAmount: decimal.Zero,
		}
		if tx.ExternalID == "" {
			tx.ExternalID = ids.next(date.Format(reconcile.DateLayout), amount.String(), tx.Description, tx.Reference)
		}
		tx.RefreshStatus()
		result.Records = append(result.Records, tx)
	}
	return result, nil
}
