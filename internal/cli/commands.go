package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/eshaffer321/invoice-reconciler/internal/application/ingest"
	"github.com/eshaffer321/invoice-reconciler/internal/application/report"
	"github.com/eshaffer321/invoice-reconciler/internal/application/service"
)

func newRunCommand(flags *GlobalFlags) *cobra.Command {
	var actor string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run automatic matching over all invoices and transactions",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *App) error {
			run, err := app.Reconciler.Run(cmd.Context(), actor)
			if run != nil {
				PrintRunSummary(cmd.OutOrStdout(), run)
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&actor, "actor", "cli", "actor recorded in the run history")
	return cmd
}

func newImportCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <ledger|statement> <file>",
		Short: "Import an invoice ledger or a bank statement CSV",
		Long: `Import an invoice ledger or a bank statement CSV.

Rows whose external id is already stored are counted as duplicates and left
untouched, so re-importing the same file is safe.`,
		Args: cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, app *App) error {
			kind, err := ingest.ParseKind(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := app.Importer.Import(cmd.Context(), kind, f)
			if err != nil {
				return fmt.Errorf("failed to import %s: %w", args[1], err)
			}
			PrintImportResult(cmd.OutOrStdout(), result)
			return nil
		}),
	}
}

func newLinkCommand(flags *GlobalFlags) *cobra.Command {
	var actor, reason, amount string
	cmd := &cobra.Command{
		Use:   "link <invoice-id> <transaction-id>",
		Short: "Link an invoice to a transaction manually",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, app *App) error {
			invoiceID, transactionID, err := parseIDPair(args)
			if err != nil {
				return err
			}
			req := service.LinkRequest{InvoiceID: invoiceID, TransactionID: transactionID, Reason: reason}
			if amount != "" {
				d, err := decimal.NewFromString(amount)
				if err != nil {
					return fmt.Errorf("invalid amount %q: %w", amount, err)
				}
				req.Amount = &d
			}
			link, err := app.Overrides.LinkManually(cmd.Context(), actor, req)
			if err != nil {
				return err
			}
			PrintLink(cmd.OutOrStdout(), "Created link", link)
			return nil
		}),
	}
	cmd.Flags().StringVar(&actor, "actor", "", "who made the change (default \"system\")")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log")
	cmd.Flags().StringVar(&amount, "amount", "", "amount to apply (default: the transaction's full amount)")
	return cmd
}

func newUnlinkCommand(flags *GlobalFlags) *cobra.Command {
	var actor, reason string
	cmd := &cobra.Command{
		Use:   "unlink <invoice-id> <transaction-id>",
		Short: "Remove a link between an invoice and a transaction",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, app *App) error {
			invoiceID, transactionID, err := parseIDPair(args)
			if err != nil {
				return err
			}
			link, err := app.Overrides.Unlink(cmd.Context(), actor, invoiceID, transactionID, reason)
			if err != nil {
				return err
			}
			PrintLink(cmd.OutOrStdout(), "Removed link", link)
			return nil
		}),
	}
	cmd.Flags().StringVar(&actor, "actor", "", "who made the change (default \"system\")")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log")
	return cmd
}

func newNotesCommand(flags *GlobalFlags) *cobra.Command {
	var actor, reason string
	cmd := &cobra.Command{
		Use:   "notes <invoice-id> <notes>",
		Short: "Replace the notes of an invoice",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, app *App) error {
			invoiceID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid invoice id %q", args[0])
			}
			inv, err := app.Overrides.AddInvoiceNotes(cmd.Context(), actor, invoiceID, args[1], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated notes of invoice %d (%s)\n", inv.ID, inv.Reference)
			return nil
		}),
	}
	cmd.Flags().StringVar(&actor, "actor", "", "who made the change (default \"system\")")
	cmd.Flags().StringVar(&reason, "reason", "", "reason recorded in the audit log")
	return cmd
}

func newSummaryCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Display reconciliation statistics",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(cmd *cobra.Command, _ []string, app *App) error {
			summary, err := app.Reports.Summary(cmd.Context())
			if err != nil {
				return err
			}
			PrintSummary(cmd.OutOrStdout(), summary)
			return nil
		}),
	}
}

func newExportCommand(flags *GlobalFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export <reconciliation|unmatched-invoices|unmatched-transactions|audit>",
		Short: "Export a report as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(cmd *cobra.Command, args []string, app *App) error {
			kind, err := report.ParseKind(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				return app.Reports.Export(cmd.Context(), kind, cmd.OutOrStdout())
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := app.Reports.Export(cmd.Context(), kind, f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", output)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func parseIDPair(args []string) (int64, int64, error) {
	invoiceID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid invoice id %q", args[0])
	}
	transactionID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid transaction id %q", args[1])
	}
	return invoiceID, transactionID, nil
}
