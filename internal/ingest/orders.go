package ingest

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"marketplace-finance-service/internal/models"
	"marketplace-finance-service/internal/parsers"
	"marketplace-finance-service/internal/store"
	ferrors "marketplace-finance-service/pkg/errors"
	"marketplace-finance-service/pkg/logger"
)

// OrderImporter ingests order exports: it parses the file, aggregates rows
// into one record per order number, schedules payouts, upserts the records
// and retroactively matches any settlements parked for those orders.
type OrderImporter struct {
	store  store.Store
	parser *parsers.OrdersParser
	logger logger.Logger
}

// NewOrderImporter creates an order importer with the given parser
// configuration (nil for defaults).
func NewOrderImporter(st store.Store, config *parsers.OrdersParserConfig) (*OrderImporter, error) {
	parser, err := parsers.NewOrdersParser(config)
	if err != nil {
		return nil, err
	}
	return &OrderImporter{
		store:  st,
		parser: parser,
		logger: logger.GetGlobalLogger().WithComponent("order-importer"),
	}, nil
}

// Import processes one order export file to completion. Row-level problems
// are collected and logged but never abort the batch; store errors abort and
// are recorded on the upload log.
func (i *OrderImporter) Import(ctx context.Context, path string) (*models.ImportResult, error) {
	op := logger.NewOperationLogger("import_orders", i.logger).WithField("file", filepath.Base(path))

	// The upload log gets exactly one entry per import call, even when the
	// file cannot be hashed or parsed.
	uploadID := newUploadID()
	entry := &models.UploadLogEntry{
		ID:         uploadID,
		Filename:   filepath.Base(path),
		UploadType: models.UploadTypeOrders,
	}

	op.Step("hashing file")
	hash, err := fileSHA256(path)
	if err != nil {
		return i.fail(ctx, entry, op, err)
	}
	entry.FileHash = hash

	op.Step("parsing rows")
	rows, collector, err := i.parser.ParseFile(path)
	if err != nil {
		return i.fail(ctx, entry, op, err)
	}
	if collector.HasErrors() {
		i.logger.WithField("row_errors", collector.Count()).Warn("some rows could not be fully parsed")
	}

	orders := aggregateOrders(rows)
	op.Progress("aggregated orders", int64(len(orders)), int64(len(rows)))
	entry.Processed = len(rows)

	inserted, updated, err := i.store.UpsertOrders(ctx, orders)
	entry.Inserted = inserted
	entry.Updated = updated
	if err != nil {
		return i.fail(ctx, entry, op, err)
	}

	op.Step("matching parked settlements")
	matched, err := i.matchParked(ctx, orders)
	entry.Matched = matched
	if err != nil {
		return i.fail(ctx, entry, op, err)
	}

	entry.Status = models.UploadStatusCompleted
	if err := i.store.RecordUpload(ctx, entry); err != nil {
		return nil, ferrors.StoreError(ferrors.CodeStoreWrite, "record_upload", err)
	}

	result := &models.ImportResult{
		Success:   true,
		UploadID:  uploadID,
		Processed: len(rows),
		Inserted:  inserted,
		Updated:   updated,
		Matched:   matched,
		Skipped:   collector.CountByCode(ferrors.CodeMissingKey),
	}
	op.Success("orders imported")
	return result, nil
}

func (i *OrderImporter) fail(ctx context.Context, entry *models.UploadLogEntry, op *logger.OperationLogger, err error) (*models.ImportResult, error) {
	wrapped := ferrors.WrapIfNeeded(err, ferrors.CategoryStore, ferrors.CodeStoreWrite, "order import aborted")
	entry.Status = models.UploadStatusFailed
	entry.ErrorMessage = wrapped.Error()
	if recordErr := i.store.RecordUpload(ctx, entry); recordErr != nil {
		i.logger.WithField("error", recordErr.Error()).Error("could not record failed upload")
	}
	op.Error(wrapped, "order import failed")
	return &models.ImportResult{
		Success:   false,
		UploadID:  entry.ID,
		Processed: entry.Processed,
		Inserted:  entry.Inserted,
		Updated:   entry.Updated,
		Matched:   entry.Matched,
		Error:     wrapped.Error(),
	}, wrapped
}

// matchParked retroactively resolves settlements that were parked before
// these orders existed. Orders are independent, so the fan-out is bounded
// but concurrent.
func (i *OrderImporter) matchParked(ctx context.Context, orders []*models.OrderRecord) (int, error) {
	var (
		mu      sync.Mutex
		matched int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileWorkers)

	for _, order := range orders {
		order := order
		g.Go(func() error {
			parked, err := i.store.UnmatchedForOrder(gctx, order.OrderNumber)
			if err != nil {
				return err
			}
			if len(parked) == 0 {
				return nil
			}
			current, err := i.store.GetOrderByNumber(gctx, order.OrderNumber)
			if err != nil {
				return err
			}
			if err := resolveParked(gctx, i.store, current, parked); err != nil {
				return err
			}
			mu.Lock()
			matched += len(parked)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return matched, err
	}
	return matched, nil
}

// aggregateOrders folds parsed rows into one record per order number. Sale
// totals and quantities sum, distinct product names join, the earliest
// order date wins and the payout schedule derives from the delivery info.
func aggregateOrders(rows []*parsers.OrderRow) []*models.OrderRecord {
	byNumber := make(map[string]*models.OrderRecord)
	statuses := make(map[string]string)
	counts := make(map[string]int)
	var numbers []string

	for _, row := range rows {
		counts[row.OrderNumber]++
		existing, ok := byNumber[row.OrderNumber]
		if !ok {
			byNumber[row.OrderNumber] = &models.OrderRecord{
				OrderNumber:   row.OrderNumber,
				PackageNo:     row.PackageNo,
				Barcode:       row.Barcode,
				ProductName:   row.ProductName,
				Quantity:      row.Quantity,
				SaleTotal:     row.SaleTotal,
				OrderDate:     row.OrderDate,
				DeliveredAt:   row.DeliveredAt,
				PaymentStatus: models.PaymentStatusUnpaid,
			}
			statuses[row.OrderNumber] = row.Status
			numbers = append(numbers, row.OrderNumber)
			continue
		}

		existing.Quantity += row.Quantity
		existing.SaleTotal = existing.SaleTotal.Add(row.SaleTotal)
		if row.ProductName != "" && !strings.Contains(existing.ProductName, row.ProductName) {
			if existing.ProductName != "" {
				existing.ProductName += ", "
			}
			existing.ProductName += row.ProductName
		}
		if existing.PackageNo == "" {
			existing.PackageNo = row.PackageNo
		}
		if existing.Barcode == "" {
			existing.Barcode = row.Barcode
		}
		existing.OrderDate = earliest(existing.OrderDate, row.OrderDate)
		existing.DeliveredAt = earliest(existing.DeliveredAt, row.DeliveredAt)
		if models.IsDeliveredStatus(row.Status) {
			statuses[row.OrderNumber] = row.Status
		}
	}

	sort.Strings(numbers)
	orders := make([]*models.OrderRecord, 0, len(byNumber))
	for _, num := range numbers {
		o := byNumber[num]
		applyPayoutSchedule(o, statuses[num])
		orders = append(orders, o)
	}
	return orders
}

func earliest(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.Before(*b) {
		return a
	}
	return b
}
