// Package store persists orders, payment history, parked settlements and
// upload logs. The Store interface is the contract the import services
// work against; GormStore backs it with MySQL and MemoryStore backs tests
// and dry runs.
package store

import (
	"context"
	"errors"

	"marketplace-finance-service/internal/models"
)

// ErrNotFound is returned when a lookup matches no record
var ErrNotFound = errors.New("record not found")

// BatchSize is how many rows go into one bulk insert. Marketplace exports
// run to tens of thousands of rows; chunking keeps statements bounded.
const BatchSize = 100

// Store is the persistence contract for the finance engine
type Store interface {
	// Orders
	UpsertOrders(ctx context.Context, orders []*models.OrderRecord) (inserted, updated int, err error)
	SaveOrder(ctx context.Context, order *models.OrderRecord) error
	GetOrder(ctx context.Context, orderNumber, packageNo string) (*models.OrderRecord, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (*models.OrderRecord, error)
	ListOrders(ctx context.Context) ([]*models.OrderRecord, error)

	// Payment history (append-only)
	AppendHistory(ctx context.Context, rows []*models.PaymentHistoryRow) error
	HistoryForKey(ctx context.Context, orderNumber, packageNo string) ([]*models.PaymentHistoryRow, error)
	HistoryForOrder(ctx context.Context, orderNumber string) ([]*models.PaymentHistoryRow, error)
	AllHistory(ctx context.Context) ([]*models.PaymentHistoryRow, error)

	// Parked unmatched settlements
	SaveUnmatched(ctx context.Context, row *models.UnmatchedPaymentRow) error
	ListUnmatched(ctx context.Context) ([]*models.UnmatchedPaymentRow, error)
	UnmatchedForOrder(ctx context.Context, orderNumber string) ([]*models.UnmatchedPaymentRow, error)
	DeleteUnmatched(ctx context.Context, id uint) error

	// Upload logs
	RecordUpload(ctx context.Context, entry *models.UploadLogEntry) error
	ListUploads(ctx context.Context, limit int) ([]*models.UploadLogEntry, error)
	FindUploadByHash(ctx context.Context, hash string, uploadType models.UploadType) (*models.UploadLogEntry, error)

	// Reset wipes all finance data
	Reset(ctx context.Context) error
}
