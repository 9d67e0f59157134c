// Package reporter renders import and maintenance results for the CLI.
//
// Supported output formats:
//   - Console: human-readable output for terminal display
//   - JSON: structured output for scripting
//   - CSV: listing export for spreadsheet applications
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"marketplace-finance-service/internal/models"
	ferrors "marketplace-finance-service/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report rendering
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Console options
	MaxListItems int `json:"max_list_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:       FormatConsole,
		MaxListItems: 20,
		CSVDelimiter: ',',
		CSVHeaders:   true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxListItems < 1 {
		return fmt.Errorf("max list items must be positive, got %d", c.MaxListItems)
	}
	return nil
}

// ReportGenerator renders results in the configured format
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator with the specified
// configuration (nil for defaults).
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, ferrors.ConfigurationError(ferrors.CodeInvalidConfig, "report_config", config, err)
	}
	return &ReportGenerator{config: config}, nil
}

// WriteImportResult renders the outcome of one import or maintenance run
func (rg *ReportGenerator) WriteImportResult(operation string, result *models.ImportResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("import result cannot be nil")
	}

	switch rg.config.Format {
	case FormatJSON:
		return writeJSON(map[string]interface{}{"operation": operation, "result": result}, writer)
	default:
		return rg.writeImportResultConsole(operation, result, writer)
	}
}

func (rg *ReportGenerator) writeImportResultConsole(operation string, result *models.ImportResult, writer io.Writer) error {
	status := "OK"
	if !result.Success {
		status = "FAILED"
	}
	fmt.Fprintf(writer, "%s: %s\n", operation, status)
	if result.UploadID != "" {
		fmt.Fprintf(writer, "  Upload ID: %s\n", result.UploadID)
	}
	fmt.Fprintf(writer, "  Processed: %d\n", result.Processed)
	if result.Inserted > 0 || result.Updated > 0 {
		fmt.Fprintf(writer, "  Inserted:  %d\n", result.Inserted)
		fmt.Fprintf(writer, "  Updated:   %d\n", result.Updated)
	}
	fmt.Fprintf(writer, "  Matched:   %d\n", result.Matched)
	fmt.Fprintf(writer, "  Unmatched: %d\n", result.Unmatched)
	if result.Skipped > 0 {
		fmt.Fprintf(writer, "  Skipped:   %d\n", result.Skipped)
	}
	if result.Error != "" {
		fmt.Fprintf(writer, "  Error:     %s\n", result.Error)
	}
	return nil
}

// WriteUploads renders the upload log listing, newest first
func (rg *ReportGenerator) WriteUploads(uploads []*models.UploadLogEntry, writer io.Writer) error {
	switch rg.config.Format {
	case FormatJSON:
		return writeJSON(map[string]interface{}{"uploads": uploads}, writer)
	case FormatCSV:
		return rg.writeUploadsCSV(uploads, writer)
	default:
		return rg.writeUploadsConsole(uploads, writer)
	}
}

func (rg *ReportGenerator) writeUploadsConsole(uploads []*models.UploadLogEntry, writer io.Writer) error {
	fmt.Fprintf(writer, "Uploads: %d\n\n", len(uploads))
	for i, u := range uploads {
		if i >= rg.config.MaxListItems {
			fmt.Fprintf(writer, "... and %d more\n", len(uploads)-rg.config.MaxListItems)
			break
		}
		fmt.Fprintf(writer, "  %s  %-8s  %-9s  %s\n",
			u.CreatedAt.Format("2006-01-02 15:04"), u.UploadType, u.Status, u.Filename)
		fmt.Fprintf(writer, "      processed=%d inserted=%d updated=%d matched=%d unmatched=%d\n",
			u.Processed, u.Inserted, u.Updated, u.Matched, u.Unmatched)
		if u.ErrorMessage != "" {
			fmt.Fprintf(writer, "      error: %s\n", u.ErrorMessage)
		}
	}
	return nil
}

func (rg *ReportGenerator) writeUploadsCSV(uploads []*models.UploadLogEntry, writer io.Writer) error {
	w := csv.NewWriter(writer)
	w.Comma = rg.config.CSVDelimiter
	defer w.Flush()

	if rg.config.CSVHeaders {
		if err := w.Write([]string{"created_at", "type", "status", "filename", "processed", "inserted", "updated", "matched", "unmatched", "error"}); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, u := range uploads {
		record := []string{
			u.CreatedAt.Format(time.RFC3339),
			string(u.UploadType),
			string(u.Status),
			u.Filename,
			strconv.Itoa(u.Processed),
			strconv.Itoa(u.Inserted),
			strconv.Itoa(u.Updated),
			strconv.Itoa(u.Matched),
			strconv.Itoa(u.Unmatched),
			u.ErrorMessage,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write upload record: %w", err)
		}
	}
	return nil
}

// WriteUnmatched renders the parked settlements awaiting an order
func (rg *ReportGenerator) WriteUnmatched(rows []*models.UnmatchedPaymentRow, writer io.Writer) error {
	switch rg.config.Format {
	case FormatJSON:
		return writeJSON(map[string]interface{}{"unmatched": rows}, writer)
	case FormatCSV:
		return rg.writeUnmatchedCSV(rows, writer)
	default:
		return rg.writeUnmatchedConsole(rows, writer)
	}
}

func (rg *ReportGenerator) writeUnmatchedConsole(rows []*models.UnmatchedPaymentRow, writer io.Writer) error {
	fmt.Fprintf(writer, "Unmatched settlements: %d\n\n", len(rows))
	for i, r := range rows {
		if i >= rg.config.MaxListItems {
			fmt.Fprintf(writer, "... and %d more\n", len(rows)-rg.config.MaxListItems)
			break
		}
		fmt.Fprintf(writer, "  %d. order %s", i+1, r.OrderNumber)
		if r.PackageNo != "" {
			fmt.Fprintf(writer, " / package %s", r.PackageNo)
		}
		fmt.Fprintf(writer, ": net %s (%d rows, ref %s)\n",
			r.NetAmount.StringFixed(2), r.RowCount, r.PaymentReference)
	}
	return nil
}

func (rg *ReportGenerator) writeUnmatchedCSV(rows []*models.UnmatchedPaymentRow, writer io.Writer) error {
	w := csv.NewWriter(writer)
	w.Comma = rg.config.CSVDelimiter
	defer w.Flush()

	if rg.config.CSVHeaders {
		if err := w.Write([]string{"order_number", "package_no", "net", "commission", "discount", "penalty", "gross", "reference", "rows"}); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, r := range rows {
		record := []string{
			r.OrderNumber,
			r.PackageNo,
			r.NetAmount.StringFixed(2),
			r.CommissionAmount.StringFixed(2),
			r.DiscountAmount.StringFixed(2),
			r.PenaltyAmount.StringFixed(2),
			r.GrossAmount.StringFixed(2),
			r.PaymentReference,
			strconv.Itoa(r.RowCount),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write unmatched record: %w", err)
		}
	}
	return nil
}

// WriteOrders renders a compact listing of stored orders
func (rg *ReportGenerator) WriteOrders(orders []*models.OrderRecord, writer io.Writer) error {
	switch rg.config.Format {
	case FormatJSON:
		return writeJSON(map[string]interface{}{"orders": orders}, writer)
	case FormatCSV:
		return rg.writeOrdersCSV(orders, writer)
	default:
		return rg.writeOrdersConsole(orders, writer)
	}
}

func (rg *ReportGenerator) writeOrdersConsole(orders []*models.OrderRecord, writer io.Writer) error {
	fmt.Fprintf(writer, "Orders: %d\n\n", len(orders))
	for i, o := range orders {
		if i >= rg.config.MaxListItems {
			fmt.Fprintf(writer, "... and %d more\n", len(orders)-rg.config.MaxListItems)
			break
		}
		fmt.Fprintf(writer, "  %s  %-7s  sale %s  paid %s\n",
			o.OrderNumber, o.PaymentStatus, o.SaleTotal.StringFixed(2), o.PaidAmount.StringFixed(2))
	}
	return nil
}

func (rg *ReportGenerator) writeOrdersCSV(orders []*models.OrderRecord, writer io.Writer) error {
	w := csv.NewWriter(writer)
	w.Comma = rg.config.CSVDelimiter
	defer w.Flush()

	if rg.config.CSVHeaders {
		if err := w.Write([]string{"order_number", "package_no", "status", "quantity", "sale_total", "paid_amount", "commission", "paid_at"}); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}
	for _, o := range orders {
		paidAt := ""
		if o.PaidAt != nil {
			paidAt = o.PaidAt.Format("2006-01-02")
		}
		record := []string{
			o.OrderNumber,
			o.PackageNo,
			string(o.PaymentStatus),
			strconv.Itoa(o.Quantity),
			o.SaleTotal.StringFixed(2),
			o.PaidAmount.StringFixed(2),
			o.CommissionAmount.StringFixed(2),
			paidAt,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write order record: %w", err)
		}
	}
	return nil
}

func writeJSON(payload interface{}, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
