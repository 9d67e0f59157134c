package config

import (
	"github.com/spf13/viper"

	"marketplace-finance-service/internal/parsers"
	"marketplace-finance-service/internal/reporter"
)

// CreateOrdersParserConfig builds the parser configuration for order
// exports. Column aliases can be extended through the config file under
// parsers.orders.fields, e.g. to track a renamed panel column without a
// new binary.
func CreateOrdersParserConfig() *parsers.OrdersParserConfig {
	config := parsers.DefaultOrdersParserConfig()
	applyAliasOverrides(config.Fields, "parsers.orders.fields")
	return config
}

// CreatePaymentsParserConfig builds the parser configuration for
// settlement exports, with the same override mechanism under
// parsers.payments.fields.
func CreatePaymentsParserConfig() *parsers.PaymentsParserConfig {
	config := parsers.DefaultPaymentsParserConfig()
	applyAliasOverrides(config.Fields, "parsers.payments.fields")
	return config
}

// applyAliasOverrides appends extra column aliases from the config file.
// Defaults are kept; overrides only widen what a field can match.
func applyAliasOverrides(fields parsers.FieldAliases, key string) {
	overrides := viper.GetStringMapStringSlice(key)
	for field, aliases := range overrides {
		fields[field] = append(fields[field], aliases...)
	}
}

// CreateReportConfig creates a report configuration for the specified
// output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	default:
		config.Format = reporter.FormatConsole
	}

	if limit := viper.GetInt("report.max_list_items"); limit > 0 {
		config.MaxListItems = limit
	}

	return config
}
