package parsers

import (
	"fmt"
)

// FieldAliases maps a logical field to the column headers that may carry
// it, in priority order. The first alias present with a non-empty cell wins.
type FieldAliases map[string][]string

// Aliases returns the alias list for a field
func (fa FieldAliases) Aliases(field string) []string {
	return fa[field]
}

// AllHeaders flattens every alias into one list, used for header detection
func (fa FieldAliases) AllHeaders() []string {
	var headers []string
	for _, aliases := range fa {
		headers = append(headers, aliases...)
	}
	return headers
}

// OrdersParserConfig holds configuration for parsing order exports
type OrdersParserConfig struct {
	Fields FieldAliases `json:"fields"`
}

// Validate checks if the orders parser configuration is valid
func (c *OrdersParserConfig) Validate() error {
	if len(c.Fields.Aliases("order_number")) == 0 {
		return fmt.Errorf("orders parser needs at least one order number alias")
	}
	return nil
}

// DefaultOrdersParserConfig covers the column headers the marketplace
// order export has carried across panel versions.
func DefaultOrdersParserConfig() *OrdersParserConfig {
	return &OrdersParserConfig{
		Fields: FieldAliases{
			"order_number": {"Sipariş Numarası", "Sipariş No", "Order Number"},
			"package_no":   {"Paket No", "Paket Numarası", "Shipment Package ID"},
			"barcode":      {"Barkod", "Barcode"},
			"product_name": {"Ürün Adı", "Ürün İsmi", "Product Name"},
			"quantity":     {"Adet", "Quantity"},
			"sale_total":   {"Satış Tutarı", "Faturalanan Satış Tutarı", "Birim Satış Fiyatı (KDV Dahil)", "Price"},
			"order_date":   {"Sipariş Tarihi", "Order Date"},
			"status":       {"Sipariş Statüsü", "Satır Statüsü", "Status"},
			"delivered_at": {"Teslim Tarihi", "Delivery Date"},
		},
	}
}

// PaymentsParserConfig holds configuration for parsing settlement exports
type PaymentsParserConfig struct {
	Fields FieldAliases `json:"fields"`
}

// Validate checks if the payments parser configuration is valid
func (c *PaymentsParserConfig) Validate() error {
	if len(c.Fields.Aliases("order_number")) == 0 {
		return fmt.Errorf("payments parser needs at least one order number alias")
	}
	if len(c.Fields.Aliases("gross")) == 0 && len(c.Fields.Aliases("net")) == 0 {
		return fmt.Errorf("payments parser needs a gross or net amount alias")
	}
	return nil
}

// DefaultPaymentsParserConfig covers the settlement export headers. The
// seller-revenue aliases are ordered by priority: "Satıcı Hakediş" is the
// authoritative net column when present.
func DefaultPaymentsParserConfig() *PaymentsParserConfig {
	return &PaymentsParserConfig{
		Fields: FieldAliases{
			"order_number":     {"Sipariş Numarası", "Sipariş No", "Order Number"},
			"package_no":       {"Paket Numarası", "Paket No"},
			"gross":            {"Tutar", "Brüt Tutar", "Amount"},
			"commission":       {"Komisyon Tutarı", "Komisyon", "Commission"},
			"discount":         {"İndirim Tutarı", "İndirim", "Discount"},
			"penalty":          {"Ceza Tutarı", "Ceza"},
			"net":              {"Satıcı Hakediş", "Net Tutar", "Net Hakediş"},
			"transaction_type": {"İşlem Tipi Detayı", "İşlem Tipi", "İşlem Türü", "Transaction Type"},
			"description":      {"Açıklama", "Description"},
			"transaction_at":   {"İşlem Tarihi", "Tarih", "Transaction Date"},
			"reference":        {"İşlem Numarası", "Referans No", "Referans"},
		},
	}
}
