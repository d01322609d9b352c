package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/eshaffer321/invoice-reconciler/internal/application/ingest"
	"github.com/eshaffer321/invoice-reconciler/internal/application/report"
	"github.com/eshaffer321/invoice-reconciler/internal/domain/reconcile"
	"github.com/eshaffer321/invoice-reconciler/internal/infrastructure/storage"
)

// PrintRunSummary prints the result of a reconciliation run
func PrintRunSummary(w io.Writer, run *storage.RunRecord) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Run %s (%s) by %s\n", run.ID, run.Status, run.Actor)
	fmt.Fprintf(w, "Links: Exact=%d Fuzzy=%d Partial=%d Overpayment=%d Removed=%d\n",
		run.ExactLinks,
		run.FuzzyLinks,
		run.PartialLinks,
		run.OverpaymentLinks,
		run.RemovedLinks)
	if run.CompletedAt != nil {
		fmt.Fprintf(w, "Duration: %s\n", run.CompletedAt.Sub(run.StartedAt).Round(time.Millisecond))
	}
	if run.ErrorMessage != "" {
		fmt.Fprintf(w, "Error: %s\n", run.ErrorMessage)
	}
}

// PrintSummary prints dashboard figures
func PrintSummary(w io.Writer, s *report.Summary) {
	fmt.Fprintln(w, "\n=== Reconciliation Summary ===")
	fmt.Fprintf(w, "Invoices:            %d (%d matched)\n", s.TotalInvoices, s.MatchedInvoices)
	fmt.Fprintf(w, "Transactions:        %d (%d matched)\n", s.TotalTransactions, s.MatchedTransactions)
	fmt.Fprintf(w, "Invoiced:            %s\n", s.TotalInvoiceAmount.StringFixed(2))
	fmt.Fprintf(w, "Received:            %s\n", s.TotalTransactionAmount.StringFixed(2))
	fmt.Fprintf(w, "Matched:             %s\n", s.MatchedAmount.StringFixed(2))
	fmt.Fprintf(w, "Match rate:          %.1f%% by count, %.1f%% by amount\n", s.MatchPercentByCount, s.MatchPercentByAmount)
	fmt.Fprintf(w, "Outstanding:         %s\n", s.OutstandingBalance.StringFixed(2))
	fmt.Fprintf(w, "Overpayment credits: %s\n", s.OverpaymentCredits.StringFixed(2))

	if len(s.StatusCounts) > 0 {
		statuses := make([]string, 0, len(s.StatusCounts))
		for status := range s.StatusCounts {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		fmt.Fprintln(w, "\nBy status:")
		for _, status := range statuses {
			fmt.Fprintf(w, "  %-16s %d\n", status, s.StatusCounts[status])
		}
	}
	fmt.Fprintln(w)
}

// PrintImportResult prints the outcome of a file import
func PrintImportResult(w io.Writer, r *ingest.Result) {
	fmt.Fprintf(w, "Imported %s: Parsed=%d Imported=%d Duplicates=%d Skipped=%d\n",
		r.Kind, r.Parsed, r.Imported, r.Duplicates, r.Skipped)
}

// PrintLink prints one link
func PrintLink(w io.Writer, action string, l *reconcile.Link) {
	fmt.Fprintf(w, "%s %s: invoice=%d transaction=%d amount=%s type=%s confidence=%d\n",
		action, l.ID, l.InvoiceID, l.TransactionID, l.Amount.StringFixed(2), l.MatchType, l.Confidence)
}
