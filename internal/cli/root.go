// Package cli implements the reconcile command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand builds the reconcile command tree
func NewRootCommand() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "reconcile",
		Short: "Match invoices against bank transactions",
		Long: `reconcile links an invoice ledger to a bank statement.

Automatic runs try exact, fuzzy, partial payment and overpayment matches
in that order. Manual links, unlinks and notes are recorded in the audit
log and survive every run.

Example:
  reconcile import ledger invoices.csv
  reconcile import statement bank.csv
  reconcile run
  reconcile summary
  reconcile serve --port 8080 --scheduler`,
		SilenceUsage: true,
	}
	flags.Register(root)

	root.AddCommand(
		newServeCommand(flags),
		newRunCommand(flags),
		newImportCommand(flags),
		newLinkCommand(flags),
		newUnlinkCommand(flags),
		newNotesCommand(flags),
		newSummaryCommand(flags),
		newExportCommand(flags),
	)
	return root
}

// Execute runs the root command with os.Args
func Execute() error {
	return NewRootCommand().Execute()
}

// withApp wraps a command body with configuration loading and storage
// lifecycle. Logs go to the command's stderr so stdout stays parseable.
func withApp(flags *GlobalFlags, fn func(cmd *cobra.Command, args []string, app *App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := flags.LoadConfig()
		if err != nil {
			return err
		}
		app, err := NewApp(cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer func() { _ = app.Close() }()
		return fn(cmd, args, app)
	}
}
