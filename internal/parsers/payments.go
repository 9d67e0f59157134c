package parsers

import (
	"time"

	"github.com/shopspring/decimal"

	"marketplace-finance-service/internal/locale"
	"marketplace-finance-service/internal/models"
	"marketplace-finance-service/pkg/errors"
	"marketplace-finance-service/pkg/logger"
)

// PaymentRow is one settlement line, already decomposed into its financial
// components.
type PaymentRow struct {
	Line            int
	OrderNumber     string
	PackageNo       string
	TransactionType string
	Description     string
	Reference       string
	Gross           decimal.Decimal
	Commission      decimal.Decimal
	Discount        decimal.Decimal
	Penalty         decimal.Decimal
	Net             decimal.Decimal
	TransactionAt   *time.Time
}

// Key returns the reconciliation key of the settlement line
func (r *PaymentRow) Key() string {
	return models.HistoryKey(r.OrderNumber, r.PackageNo)
}

// ToHistoryRow converts the settlement line into an append-only history row
func (r *PaymentRow) ToHistoryRow(uploadID string) *models.PaymentHistoryRow {
	return &models.PaymentHistoryRow{
		OrderNumber:      r.OrderNumber,
		PackageNo:        r.PackageNo,
		TransactionType:  r.TransactionType,
		Description:      r.Description,
		GrossAmount:      r.Gross,
		CommissionAmount: r.Commission,
		DiscountAmount:   r.Discount,
		PenaltyAmount:    r.Penalty,
		NetAmount:        r.Net,
		TransactionAt:    r.TransactionAt,
		PaymentReference: r.Reference,
		UploadID:         uploadID,
	}
}

// PaymentsParser reads settlement exports into PaymentRows
type PaymentsParser struct {
	config *PaymentsParserConfig
	logger logger.Logger
}

// NewPaymentsParser creates a payments parser with the given configuration
func NewPaymentsParser(config *PaymentsParserConfig) (*PaymentsParser, error) {
	if config == nil {
		config = DefaultPaymentsParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "payments_parser", nil, err)
	}
	return &PaymentsParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("payments-parser"),
	}, nil
}

// ParseFile reads every settlement row from the file. Rows without an
// order number are skipped and recorded on the collector.
func (p *PaymentsParser) ParseFile(path string) ([]*PaymentRow, *errors.RowErrorCollector, error) {
	sheet, err := OpenSheet(path, p.config.Fields.AllHeaders())
	if err != nil {
		return nil, nil, err
	}

	collector := errors.NewRowErrorCollector(100)
	rows := make([]*PaymentRow, 0, len(sheet.Rows))

	for _, raw := range sheet.Rows {
		row := p.parseRow(sheet.File, raw, collector)
		if row == nil {
			continue
		}
		rows = append(rows, row)
	}

	p.logger.WithFields(logger.Fields{
		"file":       sheet.File,
		"rows":       len(rows),
		"row_errors": collector.Count(),
	}).Info("Parsed settlement export")

	return rows, collector, nil
}

func (p *PaymentsParser) parseRow(file string, raw RawRow, collector *errors.RowErrorCollector) *PaymentRow {
	fields := p.config.Fields

	orderNumber := models.NormalizeID(raw.Get(fields.Aliases("order_number")...))
	if orderNumber == "" {
		collector.Add(errors.MissingKeyError(file, raw.Line))
		return nil
	}

	row := &PaymentRow{
		Line:            raw.Line,
		OrderNumber:     orderNumber,
		PackageNo:       models.NormalizeID(raw.Get(fields.Aliases("package_no")...)),
		TransactionType: raw.Get(fields.Aliases("transaction_type")...),
		Description:     raw.Get(fields.Aliases("description")...),
		Reference:       raw.Get(fields.Aliases("reference")...),
		Gross:           locale.ParseNumber(raw.Get(fields.Aliases("gross")...)),
		Commission:      locale.ParseNumber(raw.Get(fields.Aliases("commission")...)),
		Discount:        locale.ParseNumber(raw.Get(fields.Aliases("discount")...)),
	}

	if v := raw.Get(fields.Aliases("transaction_at")...); v != "" {
		row.TransactionAt = locale.ParseDate(v)
		if row.TransactionAt == nil {
			collector.Add(errors.RowParseError(file, raw.Line, "transaction_at", v, nil))
		}
	}

	p.decompose(raw, row)
	return row
}

// decompose derives the financial components of a settlement line:
//
//  1. penalty: the explicit column when present, otherwise the absolute
//     gross amount on lines labeled as cancellations or penalty charges,
//     falling back to the absolute net amount on net-only exports;
//  2. net: the seller-revenue column when present, otherwise
//     gross - commission - discount - penalty;
//  3. gross back-fill: some exports only carry the net column, so a zero
//     gross is rebuilt as net + commission + discount + penalty;
//  4. sign: deduction-type labels force gross negative. This is display
//     normalization only; net already carries the economic sign.
func (p *PaymentsParser) decompose(raw RawRow, row *PaymentRow) {
	fields := p.config.Fields

	netCell := raw.Get(fields.Aliases("net")...)
	if netCell != "" {
		row.Net = locale.ParseNumber(netCell)
	}

	if v := raw.Get(fields.Aliases("penalty")...); v != "" {
		row.Penalty = locale.ParseNumber(v)
	} else if models.HasCancellationKeyword(row.TransactionType) || models.HasCancellationKeyword(row.Description) {
		row.Penalty = row.Gross.Abs()
		if row.Penalty.IsZero() {
			row.Penalty = row.Net.Abs()
		}
	}

	if netCell == "" {
		row.Net = row.Gross.Sub(row.Commission).Sub(row.Discount).Sub(row.Penalty)
	}

	if row.Gross.IsZero() && !row.Net.IsZero() {
		row.Gross = row.Net.Add(row.Commission).Add(row.Discount).Add(row.Penalty)
	}

	if models.IsDeductionType(row.TransactionType) && row.Gross.IsPositive() {
		row.Gross = row.Gross.Neg()
	}
}
