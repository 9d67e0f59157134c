package models

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the settlement state of an order
type PaymentStatus string

const (
	// PaymentStatusUnpaid means no settlement has been recorded yet
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	// PaymentStatusPaid means a settlement has been matched to the order
	PaymentStatusPaid PaymentStatus = "paid"
	// PaymentStatusPartial means a partial settlement has been recorded
	PaymentStatusPartial PaymentStatus = "partial"
	// PaymentStatusUnknown is used when the state cannot be determined
	PaymentStatusUnknown PaymentStatus = "unknown"
)

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsValid checks if the payment status is valid
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusPartial, PaymentStatusUnknown:
		return true
	}
	return false
}

// UploadType identifies which kind of export a file contained
type UploadType string

const (
	UploadTypeOrders   UploadType = "orders"
	UploadTypePayments UploadType = "payments"
)

// UploadStatus is the terminal state of an import run
type UploadStatus string

const (
	UploadStatusCompleted UploadStatus = "completed"
	UploadStatusFailed    UploadStatus = "failed"
)

// OrderRecord is one marketplace order, aggregated across its spreadsheet
// rows (one order can span several product rows in the export).
type OrderRecord struct {
	ID               uint            `json:"-" gorm:"primaryKey"`
	OrderNumber      string          `json:"order_number" gorm:"uniqueIndex;size:64"`
	PackageNo        string          `json:"package_no" gorm:"size:64"`
	Barcode          string          `json:"barcode" gorm:"size:128"`
	ProductName      string          `json:"product_name"`
	Quantity         int             `json:"quantity"`
	SaleTotal        decimal.Decimal `json:"sale_total" gorm:"type:decimal(20,4)"`
	OrderDate        *time.Time      `json:"order_date"`
	DeliveredAt      *time.Time      `json:"delivered_at"`
	DueAt            *time.Time      `json:"due_at"`
	ExpectedPayoutAt *time.Time      `json:"expected_payout_at"`
	PaymentStatus    PaymentStatus   `json:"payment_status" gorm:"size:16;default:unpaid"`
	PaidAmount       decimal.Decimal `json:"paid_amount" gorm:"type:decimal(20,4)"`
	CommissionAmount decimal.Decimal `json:"commission_amount" gorm:"type:decimal(20,4)"`
	DiscountAmount   decimal.Decimal `json:"discount_amount" gorm:"type:decimal(20,4)"`
	PenaltyAmount    decimal.Decimal `json:"penalty_amount" gorm:"type:decimal(20,4)"`
	GrossAmount      decimal.Decimal `json:"gross_amount" gorm:"type:decimal(20,4)"`
	PaymentReference string          `json:"payment_reference" gorm:"size:128"`
	PaidAt           *time.Time      `json:"paid_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Validate performs basic validation on the OrderRecord
func (o *OrderRecord) Validate() error {
	if strings.TrimSpace(o.OrderNumber) == "" {
		return fmt.Errorf("order number cannot be empty")
	}
	if o.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative")
	}
	if !o.PaymentStatus.IsValid() {
		return fmt.Errorf("invalid payment status: %s", o.PaymentStatus)
	}
	return nil
}

// Key returns the reconciliation key of the order
func (o *OrderRecord) Key() string {
	return HistoryKey(o.OrderNumber, o.PackageNo)
}

// String returns a string representation of the OrderRecord
func (o *OrderRecord) String() string {
	return fmt.Sprintf("Order{Number: %s, Package: %s, Status: %s, Paid: %s}",
		o.OrderNumber, o.PackageNo, o.PaymentStatus, o.PaidAmount.String())
}

// PaymentHistoryRow is one settlement line as it appeared in a payments
// export. Rows are append-only: the full set of history rows for a key is
// the source of truth for the order's financial summary.
type PaymentHistoryRow struct {
	ID               uint            `json:"-" gorm:"primaryKey"`
	OrderNumber      string          `json:"order_number" gorm:"index;size:64"`
	PackageNo        string          `json:"package_no" gorm:"size:64"`
	TransactionType  string          `json:"transaction_type" gorm:"size:128"`
	Description      string          `json:"description"`
	GrossAmount      decimal.Decimal `json:"gross_amount" gorm:"type:decimal(20,4)"`
	CommissionAmount decimal.Decimal `json:"commission_amount" gorm:"type:decimal(20,4)"`
	DiscountAmount   decimal.Decimal `json:"discount_amount" gorm:"type:decimal(20,4)"`
	PenaltyAmount    decimal.Decimal `json:"penalty_amount" gorm:"type:decimal(20,4)"`
	NetAmount        decimal.Decimal `json:"net_amount" gorm:"type:decimal(20,4)"`
	TransactionAt    *time.Time      `json:"transaction_at"`
	PaymentReference string          `json:"payment_reference" gorm:"size:128"`
	UploadID         string          `json:"upload_id" gorm:"size:36"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Validate performs basic validation on the PaymentHistoryRow
func (r *PaymentHistoryRow) Validate() error {
	if strings.TrimSpace(r.OrderNumber) == "" {
		return fmt.Errorf("history row order number cannot be empty")
	}
	return nil
}

// Key returns the reconciliation key of the history row
func (r *PaymentHistoryRow) Key() string {
	return HistoryKey(r.OrderNumber, r.PackageNo)
}

// UnmatchedPaymentRow parks an aggregated settlement whose order was not in
// the store at payment-import time. InHistory records whether the source
// rows already live in the history log, so retroactive matching knows
// whether a synthetic history row is still needed.
type UnmatchedPaymentRow struct {
	ID               uint            `json:"-" gorm:"primaryKey"`
	OrderNumber      string          `json:"order_number" gorm:"index;size:64"`
	PackageNo        string          `json:"package_no" gorm:"size:64"`
	NetAmount        decimal.Decimal `json:"net_amount" gorm:"type:decimal(20,4)"`
	CommissionAmount decimal.Decimal `json:"commission_amount" gorm:"type:decimal(20,4)"`
	DiscountAmount   decimal.Decimal `json:"discount_amount" gorm:"type:decimal(20,4)"`
	PenaltyAmount    decimal.Decimal `json:"penalty_amount" gorm:"type:decimal(20,4)"`
	GrossAmount      decimal.Decimal `json:"gross_amount" gorm:"type:decimal(20,4)"`
	PaidAt           *time.Time      `json:"paid_at"`
	PaymentReference string          `json:"payment_reference" gorm:"uniqueIndex;size:128"`
	RowCount         int             `json:"row_count"`
	InHistory        bool            `json:"in_history"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Summary converts the parked aggregate back into a financial summary
func (u *UnmatchedPaymentRow) Summary() FinancialSummary {
	return FinancialSummary{
		Net:              u.NetAmount,
		Commission:       u.CommissionAmount,
		Discount:         u.DiscountAmount,
		Penalty:          u.PenaltyAmount,
		Gross:            u.GrossAmount,
		PaidAt:           u.PaidAt,
		PaymentReference: u.PaymentReference,
	}
}

// UploadLogEntry records one import run, successful or not
type UploadLogEntry struct {
	ID           string       `json:"id" gorm:"primaryKey;size:36"`
	Filename     string       `json:"filename" gorm:"size:255"`
	FileHash     string       `json:"file_hash" gorm:"index;size:64"`
	UploadType   UploadType   `json:"upload_type" gorm:"size:16"`
	Processed    int          `json:"processed"`
	Inserted     int          `json:"inserted"`
	Updated      int          `json:"updated"`
	Matched      int          `json:"matched"`
	Unmatched    int          `json:"unmatched"`
	Status       UploadStatus `json:"status" gorm:"size:16"`
	ErrorMessage string       `json:"error_message"`
	CreatedAt    time.Time    `json:"created_at"`
}

// FinancialSummary is the projection of a set of history rows
type FinancialSummary struct {
	Net              decimal.Decimal `json:"net"`
	Commission       decimal.Decimal `json:"commission"`
	Discount         decimal.Decimal `json:"discount"`
	Penalty          decimal.Decimal `json:"penalty"`
	Gross            decimal.Decimal `json:"gross"`
	PaidAt           *time.Time      `json:"paid_at"`
	PaymentReference string          `json:"payment_reference"`
}

// ApplyTo overwrites the order's financial fields with the summary and
// marks the order paid.
func (s FinancialSummary) ApplyTo(o *OrderRecord) {
	o.PaidAmount = s.Net
	o.CommissionAmount = s.Commission
	o.DiscountAmount = s.Discount
	o.PenaltyAmount = s.Penalty
	o.GrossAmount = s.Gross
	if s.PaidAt != nil {
		o.PaidAt = s.PaidAt
	}
	if s.PaymentReference != "" {
		o.PaymentReference = s.PaymentReference
	}
	o.PaymentStatus = PaymentStatusPaid
}

// ImportResult is the outcome of one import or maintenance run
type ImportResult struct {
	Success   bool   `json:"success"`
	UploadID  string `json:"upload_id,omitempty"`
	Processed int    `json:"processed"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	Matched   int    `json:"matched"`
	Unmatched int    `json:"unmatched"`
	Skipped   int    `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

// NormalizeID reduces an identifier to its digits. Marketplace exports
// decorate order numbers inconsistently ("TY-0012 34" and "001234" are the
// same order); stripping everything but digits makes them comparable while
// preserving leading zeros. Returns the empty string when no digits remain,
// which callers treat as an absent identifier.
func NormalizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HistoryKey builds the reconciliation key for an order/package pair. Orders
// without a package identifier group under the HEAD sentinel.
func HistoryKey(orderNumber, packageNo string) string {
	if packageNo == "" {
		return orderNumber + "_HEAD"
	}
	return orderNumber + "_" + packageNo
}

// deductionKeywords are the Turkish transaction-type fragments that mark a
// settlement line as money moving away from the seller.
var deductionKeywords = []string{
	"iptal",   // cancellation
	"iade",    // return
	"indirim", // discount
	"ceza",    // penalty
	"kesinti", // deduction
	"tedarik", // supply failure
}

// cancellationKeywords mark lines whose gross amount is a penalty
var cancellationKeywords = []string{
	"iptal",
	"iade",
	"ceza",
	"kesinti",
}

// lowerTurkish lowercases with Turkish casing rules so that "İptal"
// becomes "iptal" rather than picking up a combining dot.
func lowerTurkish(s string) string {
	return strings.ToLowerSpecial(unicode.TurkishCase, s)
}

// IsDeductionType reports whether a transaction label describes a deduction
func IsDeductionType(label string) bool {
	l := lowerTurkish(label)
	for _, kw := range deductionKeywords {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

// HasCancellationKeyword reports whether a transaction label or description
// marks the line as a cancellation or penalty charge
func HasCancellationKeyword(label string) bool {
	l := lowerTurkish(label)
	for _, kw := range cancellationKeywords {
		if strings.Contains(l, kw) {
			return true
		}
	}
	return false
}

// IsDeliveredStatus reports whether an order status line means the package
// reached the customer
func IsDeliveredStatus(status string) bool {
	return strings.Contains(lowerTurkish(status), "teslim")
}
