package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marketplace-finance-service/internal/ingest"
	"marketplace-finance-service/internal/models"
)

var (
	uploadsLimit int
	resetConfirm bool
)

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Re-attempt matching of parked settlements",
	Long: `Resync walks every settlement that was parked because its order did not
exist at import time, and folds the ones whose order has since been
imported into that order's financial summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(false)
		if err != nil {
			return err
		}
		result, runErr := ingest.NewResyncer(st).Run(context.Background())
		if err := writeMaintenanceResult("resync", result); err != nil {
			return err
		}
		return runErr
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Rebuild order financials from the payment history log",
	Long: `Repair re-projects every order's financial summary from the append-only
payment history. On consistent data it changes nothing; after a crash or
an aggregation bug it converges orders back to their history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(false)
		if err != nil {
			return err
		}
		result, runErr := ingest.NewRepairer(st).Run(context.Background())
		if err := writeMaintenanceResult("repair", result); err != nil {
			return err
		}
		return runErr
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all finance data",
	Long:  `Reset deletes every order, payment history row, parked settlement and upload log entry. Requires --yes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirm {
			return fmt.Errorf("reset deletes all finance data; pass --yes to confirm")
		}
		st, err := openStore(false)
		if err != nil {
			return err
		}
		if err := st.Reset(context.Background()); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "All finance data deleted.")
		return nil
	},
}

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "List recent import runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(false)
		if err != nil {
			return err
		}
		uploads, err := st.ListUploads(context.Background(), uploadsLimit)
		if err != nil {
			return err
		}
		rg, err := newReporter()
		if err != nil {
			return err
		}
		return rg.WriteUploads(uploads, os.Stdout)
	},
}

var unmatchedCmd = &cobra.Command{
	Use:   "unmatched",
	Short: "List settlements still waiting for their order",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(false)
		if err != nil {
			return err
		}
		rows, err := st.ListUnmatched(context.Background())
		if err != nil {
			return err
		}
		rg, err := newReporter()
		if err != nil {
			return err
		}
		return rg.WriteUnmatched(rows, os.Stdout)
	},
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List stored orders with their payment state",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(false)
		if err != nil {
			return err
		}
		orders, err := st.ListOrders(context.Background())
		if err != nil {
			return err
		}
		rg, err := newReporter()
		if err != nil {
			return err
		}
		return rg.WriteOrders(orders, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(resyncCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(uploadsCmd)
	rootCmd.AddCommand(unmatchedCmd)
	rootCmd.AddCommand(ordersCmd)

	uploadsCmd.Flags().IntVar(&uploadsLimit, "limit", 20, "maximum number of uploads to list")
	resetCmd.Flags().BoolVar(&resetConfirm, "yes", false, "confirm deleting all finance data")
}

func writeMaintenanceResult(operation string, result *models.ImportResult) error {
	if result == nil {
		return nil
	}
	rg, err := newReporter()
	if err != nil {
		return err
	}
	return rg.WriteImportResult(operation, result, os.Stdout)
}
