package ingest

import (
	"context"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"marketplace-finance-service/internal/models"
	"marketplace-finance-service/internal/parsers"
	"marketplace-finance-service/internal/projection"
	"marketplace-finance-service/internal/store"
	ferrors "marketplace-finance-service/pkg/errors"
	"marketplace-finance-service/pkg/logger"
)

// PaymentImporter ingests settlement exports: every parsed row is appended
// to the history log, then each touched order is reconciled by projecting
// its complete history. Settlements for orders not yet in the store are
// parked for retroactive matching.
type PaymentImporter struct {
	store  store.Store
	parser *parsers.PaymentsParser
	logger logger.Logger

	// Force lets a file through the duplicate-upload guard.
	Force bool
}

// NewPaymentImporter creates a payment importer with the given parser
// configuration (nil for defaults).
func NewPaymentImporter(st store.Store, config *parsers.PaymentsParserConfig) (*PaymentImporter, error) {
	parser, err := parsers.NewPaymentsParser(config)
	if err != nil {
		return nil, err
	}
	return &PaymentImporter{
		store:  st,
		parser: parser,
		logger: logger.GetGlobalLogger().WithComponent("payment-importer"),
	}, nil
}

// Import processes one settlement export file to completion. History is
// append-only, so re-importing the same file would double-count: files
// whose content hash matches an earlier completed payments upload are
// rejected unless Force is set.
func (i *PaymentImporter) Import(ctx context.Context, path string) (*models.ImportResult, error) {
	op := logger.NewOperationLogger("import_payments", i.logger).WithField("file", filepath.Base(path))

	// The upload log gets exactly one entry per import call, even when the
	// file is rejected before any row is processed.
	uploadID := newUploadID()
	entry := &models.UploadLogEntry{
		ID:         uploadID,
		Filename:   filepath.Base(path),
		UploadType: models.UploadTypePayments,
	}

	hash, err := fileSHA256(path)
	if err != nil {
		return i.fail(ctx, entry, op, err)
	}
	entry.FileHash = hash

	if !i.Force {
		if prior, err := i.store.FindUploadByHash(ctx, hash, models.UploadTypePayments); err == nil {
			dup := ferrors.ReconciliationError(ferrors.CodeDuplicateUpload, "import_payments", nil).
				WithContext("filename", prior.Filename).
				WithContext("upload_id", prior.ID)
			return i.fail(ctx, entry, op, dup)
		} else if err != store.ErrNotFound {
			return i.fail(ctx, entry, op, ferrors.StoreError(ferrors.CodeStoreRead, "find_upload", err))
		}
	}

	op.Step("parsing rows")
	rows, collector, err := i.parser.ParseFile(path)
	if err != nil {
		return i.fail(ctx, entry, op, err)
	}
	if collector.HasErrors() {
		i.logger.WithField("row_errors", collector.Count()).Warn("some rows could not be fully parsed")
	}
	entry.Processed = len(rows)

	op.Step("appending history")
	history := make([]*models.PaymentHistoryRow, len(rows))
	for n, row := range rows {
		history[n] = row.ToHistoryRow(uploadID)
	}
	if err := i.store.AppendHistory(ctx, history); err != nil {
		return i.fail(ctx, entry, op, err)
	}

	op.Step("reconciling orders")
	matched, unmatched, err := i.reconcile(ctx, rows)
	entry.Matched = matched
	entry.Unmatched = unmatched
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
		Matched:   matched,
		Unmatched: unmatched,
		Skipped:   collector.CountByCode(ferrors.CodeMissingKey),
	}
	op.Success("payments imported")
	return result, nil
}

func (i *PaymentImporter) fail(ctx context.Context, entry *models.UploadLogEntry, op *logger.OperationLogger, err error) (*models.ImportResult, error) {
	wrapped := ferrors.WrapIfNeeded(err, ferrors.CategoryStore, ferrors.CodeStoreWrite, "payment import aborted")
	entry.Status = models.UploadStatusFailed
	entry.ErrorMessage = wrapped.Error()
	if recordErr := i.store.RecordUpload(ctx, entry); recordErr != nil {
		i.logger.WithField("error", recordErr.Error()).Error("could not record failed upload")
	}
	op.Error(wrapped, "payment import failed")
	return &models.ImportResult{
		Success:   false,
		UploadID:  entry.ID,
		Processed: entry.Processed,
		Matched:   entry.Matched,
		Unmatched: entry.Unmatched,
		Error:     wrapped.Error(),
	}, wrapped
}

// reconcile matches this batch's settlement keys against stored orders.
// Orders are independent of each other, so the fan-out runs one worker per
// order number. Returns how many keys matched and how many were parked.
func (i *PaymentImporter) reconcile(ctx context.Context, rows []*parsers.PaymentRow) (int, int, error) {
	byOrder := make(map[string][]*parsers.PaymentRow)
	var numbers []string
	for _, row := range rows {
		if _, ok := byOrder[row.OrderNumber]; !ok {
			numbers = append(numbers, row.OrderNumber)
		}
		byOrder[row.OrderNumber] = append(byOrder[row.OrderNumber], row)
	}
	sort.Strings(numbers)

	var (
		mu                 sync.Mutex
		matched, unmatched int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileWorkers)

	for _, num := range numbers {
		num, group := num, byOrder[num]
		g.Go(func() error {
			m, u, err := i.reconcileOrder(gctx, num, group)
			if err != nil {
				return err
			}
			mu.Lock()
			matched += m
			unmatched += u
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return matched, unmatched, err
	}
	return matched, unmatched, nil
}

// reconcileOrder handles every settlement key of one order number. Lookup
// tries the exact (order, package) key first and falls back to the order
// number alone, since package numbers are not always present on both sides;
// the fallback can attribute a settlement to the wrong package of a
// multi-package order, a known trade-off.
func (i *PaymentImporter) reconcileOrder(ctx context.Context, orderNumber string, rows []*parsers.PaymentRow) (int, int, error) {
	byKey := make(map[string][]*parsers.PaymentRow)
	for _, row := range rows {
		byKey[row.Key()] = append(byKey[row.Key()], row)
	}

	var order *models.OrderRecord
	matched, unmatched := 0, 0
	for _, keyRows := range byKey {
		first := keyRows[0]
		found, err := i.store.GetOrder(ctx, first.OrderNumber, first.PackageNo)
		if err == store.ErrNotFound {
			found, err = i.store.GetOrderByNumber(ctx, first.OrderNumber)
		}
		switch {
		case err == store.ErrNotFound:
			if parkErr := i.park(ctx, first, len(keyRows)); parkErr != nil {
				return matched, unmatched, parkErr
			}
			unmatched++
		case err != nil:
			return matched, unmatched, err
		default:
			order = found
			matched++
		}
	}

	if order != nil {
		if err := recomputeOrder(ctx, i.store, order); err != nil {
			return matched, unmatched, err
		}
	}
	return matched, unmatched, nil
}

// park stores the key's aggregate as an unmatched settlement. The source
// rows are already in the history log, so retroactive matching only needs
// to re-project once the order appears.
func (i *PaymentImporter) park(ctx context.Context, sample *parsers.PaymentRow, rowCount int) error {
	history, err := i.store.HistoryForKey(ctx, sample.OrderNumber, sample.PackageNo)
	if err != nil {
		return err
	}
	summary := projection.Project(history)
	if summary.PaymentReference == "" {
		summary.PaymentReference = syntheticReference()
	}

	return i.store.SaveUnmatched(ctx, &models.UnmatchedPaymentRow{
		OrderNumber:      sample.OrderNumber,
		PackageNo:        sample.PackageNo,
		NetAmount:        summary.Net,
		CommissionAmount: summary.Commission,
		DiscountAmount:   summary.Discount,
		PenaltyAmount:    summary.Penalty,
		GrossAmount:      summary.Gross,
		PaidAt:           summary.PaidAt,
		PaymentReference: summary.PaymentReference,
		RowCount:         rowCount,
		InHistory:        true,
	})
}
