package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"marketplace-finance-service/pkg/errors"
	"marketplace-finance-service/pkg/logger"
)

// CLIErrorHandler turns errors into user-facing messages and exit codes
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints a user-friendly message and returns the exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if financeErr, ok := errors.AsFinanceError(err); ok {
		return h.handleFinanceError(financeErr)
	}
	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleFinanceError(err *errors.FinanceError) int {
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory") {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}
	if os.IsPermission(err) || strings.Contains(err.Error(), "permission denied") {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(os.Stderr, "Run with --verbose for more detail\n")
	}
	return 1
}

func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check that the export file exists and is readable
• Supported formats are .xlsx, .xlsm, .csv and .txt
• Re-download the export from the marketplace panel if it is corrupted`

	case errors.CategoryParse:
		return `Parse error help:
• Verify the file is an unmodified marketplace export
• The header row must contain the expected Turkish column names
• Save CSV exports in UTF-8 encoding
• Rows with unparsable cells are kept with zero values; check the logs`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that order numbers are present on every row
• Dates must use DD.MM.YYYY or be spreadsheet date cells
• Amounts may use Turkish ("1.234,56") or English ("1,234.56") formatting`

	case errors.CategoryStore:
		return `Store error help:
• Check that MySQL is running and reachable
• Verify FINANCE_DB_HOST, FINANCE_DB_PORT, FINANCE_DB_USER,
  FINANCE_DB_PASSWORD and FINANCE_DB_NAME
• Re-run the import once the store is healthy; completed work is kept`

	case errors.CategoryReconciliation:
		return `Reconciliation error help:
• Use 'financectl unmatched' to inspect parked settlements
• Run 'financectl resync' after importing the missing orders
• Re-importing the same payments file needs --force`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'financectl --help' to see all available options`

	default:
		return `For more help:
• Use 'financectl --help' for general help
• Use 'financectl import --help' for import-specific help`
	}
}
