package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"marketplace-finance-service/cmd/financectl/config"
	"marketplace-finance-service/internal/ingest"
	"marketplace-finance-service/internal/models"
)

var (
	importDryRun     bool
	importForce      bool
	importOutputFile string
)

// importCmd groups the file ingestion subcommands
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import marketplace export files",
	Long: `Import reads a marketplace export spreadsheet (.xlsx or .csv) and
reconciles it into the finance store.

Examples:
  # Import an order export
  financectl import orders siparisler.xlsx

  # Import a settlement export
  financectl import payments hakedis.csv

  # Re-import a settlement file that was already imported
  financectl import payments hakedis.csv --force

  # Parse and reconcile without persisting anything
  financectl import orders siparisler.xlsx --dry-run`,
}

var importOrdersCmd = &cobra.Command{
	Use:   "orders <file>",
	Short: "Import an order export",
	Long: `Import orders parses an order export, aggregates rows into one record
per order number, computes the payout schedule for delivered orders and
retroactively matches settlements that arrived before their orders.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFileExists(args[0], "order export file")
	},
	RunE: runImportOrders,
}

var importPaymentsCmd = &cobra.Command{
	Use:   "payments <file>",
	Short: "Import a settlement export",
	Long: `Import payments parses a settlement export, appends every row to the
payment history log and reconciles the touched orders against their full
history. A file whose contents were already imported is rejected unless
--force is given, because re-appending duplicates history.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFileExists(args[0], "settlement export file")
	},
	RunE: runImportPayments,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importOrdersCmd)
	importCmd.AddCommand(importPaymentsCmd)

	importCmd.PersistentFlags().BoolVar(&importDryRun, "dry-run", false, "process the file against an in-memory store, persisting nothing")
	importCmd.PersistentFlags().StringVar(&importOutputFile, "output-file", "", "write the result report to a file instead of stdout")
	importPaymentsCmd.Flags().BoolVar(&importForce, "force", false, "import the file even if its contents were imported before")
}

func runImportOrders(cmd *cobra.Command, args []string) error {
	st, err := openStore(importDryRun)
	if err != nil {
		return err
	}

	importer, err := ingest.NewOrderImporter(st, config.CreateOrdersParserConfig())
	if err != nil {
		return err
	}

	result, importErr := importer.Import(context.Background(), args[0])
	if err := writeResult("import orders", result); err != nil {
		return err
	}
	return importErr
}

func runImportPayments(cmd *cobra.Command, args []string) error {
	st, err := openStore(importDryRun)
	if err != nil {
		return err
	}

	importer, err := ingest.NewPaymentImporter(st, config.CreatePaymentsParserConfig())
	if err != nil {
		return err
	}
	importer.Force = importForce

	result, importErr := importer.Import(context.Background(), args[0])
	if err := writeResult("import payments", result); err != nil {
		return err
	}
	return importErr
}

func writeResult(operation string, result *models.ImportResult) error {
	if result == nil {
		return nil
	}
	rg, err := newReporter()
	if err != nil {
		return err
	}
	w, closeFn, err := resultWriter(importOutputFile)
	if err != nil {
		return err
	}
	defer closeFn()
	return rg.WriteImportResult(operation, result, w)
}
