package parsers

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"

	"marketplace-finance-service/internal/locale"
	"marketplace-finance-service/internal/models"
	"marketplace-finance-service/pkg/errors"
	"marketplace-finance-service/pkg/logger"
)

// OrderRow is one line of an order export. An order can span several rows
// (one per product line); grouping happens in the importer.
type OrderRow struct {
	Line        int
	OrderNumber string
	PackageNo   string
	Barcode     string
	ProductName string
	Quantity    int
	SaleTotal   decimal.Decimal
	OrderDate   *time.Time
	Status      string
	DeliveredAt *time.Time
}

// OrdersParser reads order exports into OrderRows
type OrdersParser struct {
	config *OrdersParserConfig
	logger logger.Logger
}

// NewOrdersParser creates an orders parser with the given configuration
func NewOrdersParser(config *OrdersParserConfig) (*OrdersParser, error) {
	if config == nil {
		config = DefaultOrdersParserConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "orders_parser", nil, err)
	}
	return &OrdersParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("orders-parser"),
	}, nil
}

// ParseFile reads every order row from the file. Rows without an order
// number are skipped and recorded on the collector; cell-level parse
// problems are recorded but the row is kept with zero values.
func (p *OrdersParser) ParseFile(path string) ([]*OrderRow, *errors.RowErrorCollector, error) {
	sheet, err := OpenSheet(path, p.config.Fields.AllHeaders())
	if err != nil {
		return nil, nil, err
	}

	collector := errors.NewRowErrorCollector(100)
	rows := make([]*OrderRow, 0, len(sheet.Rows))

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
	}).Info("Parsed order export")

	return rows, collector, nil
}

func (p *OrdersParser) parseRow(file string, raw RawRow, collector *errors.RowErrorCollector) *OrderRow {
	fields := p.config.Fields

	orderNumber := models.NormalizeID(raw.Get(fields.Aliases("order_number")...))
	if orderNumber == "" {
		collector.Add(errors.MissingKeyError(file, raw.Line))
		return nil
	}

	row := &OrderRow{
		Line:        raw.Line,
		OrderNumber: orderNumber,
		PackageNo:   models.NormalizeID(raw.Get(fields.Aliases("package_no")...)),
		Barcode:     raw.Get(fields.Aliases("barcode")...),
		ProductName: raw.Get(fields.Aliases("product_name")...),
		Status:      raw.Get(fields.Aliases("status")...),
		SaleTotal:   locale.ParseNumber(raw.Get(fields.Aliases("sale_total")...)),
	}

	if v := raw.Get(fields.Aliases("quantity")...); v != "" {
		qty := cast.ToInt(v)
		if qty == 0 {
			qty = int(locale.ParseNumber(v).IntPart())
		}
		if qty == 0 {
			collector.Add(errors.RowParseError(file, raw.Line, "quantity", v, nil))
		}
		row.Quantity = qty
	}

	if v := raw.Get(fields.Aliases("order_date")...); v != "" {
		row.OrderDate = locale.ParseDate(v)
		if row.OrderDate == nil {
			collector.Add(errors.RowParseError(file, raw.Line, "order_date", v, nil))
		}
	}

	if v := raw.Get(fields.Aliases("delivered_at")...); v != "" {
		row.DeliveredAt = locale.ParseDate(v)
		if row.DeliveredAt == nil {
			collector.Add(errors.RowParseError(file, raw.Line, "delivered_at", v, nil))
		}
	}

	return row
}
