package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/google/uuid"

	"marketplace-finance-service/internal/models"
	"marketplace-finance-service/internal/projection"
	"marketplace-finance-service/internal/store"
	ferrors "marketplace-finance-service/pkg/errors"
)

// reconcileWorkers bounds how many orders are matched concurrently during
// imports and resync runs.
const reconcileWorkers = 16

// fileSHA256 hashes a file's contents for the upload log. The hash is what
// the duplicate-import guard compares against.
func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", ferrors.FileError(ferrors.CodeFileNotFound, path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", ferrors.FileError(ferrors.CodeFileCorrupted, path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func newUploadID() string {
	return uuid.New().String()
}

// syntheticReference fills in for exports that carry no reference column.
// Parked settlements are keyed by payment reference in the store, so two
// reference-less settlements for different orders must not share one.
func syntheticReference() string {
	return "gen-" + uuid.New().String()
}

// resolveParked folds parked settlements into an order that is now present
// in the store. Parked rows whose source rows never made it into the history
// log get a synthetic row appended first, so the order's history alone
// reproduces every parked aggregate. The order is then recomputed from its
// full history, which keeps this path, payment reconciliation and repair on
// the same projection.
func resolveParked(ctx context.Context, st store.Store, order *models.OrderRecord, parked []*models.UnmatchedPaymentRow) error {
	for _, p := range parked {
		if !p.InHistory {
			synthetic := &models.PaymentHistoryRow{
				OrderNumber:      p.OrderNumber,
				PackageNo:        p.PackageNo,
				TransactionType:  "Ödeme",
				GrossAmount:      p.GrossAmount,
				CommissionAmount: p.CommissionAmount,
				DiscountAmount:   p.DiscountAmount,
				PenaltyAmount:    p.PenaltyAmount,
				NetAmount:        p.NetAmount,
				TransactionAt:    p.PaidAt,
				PaymentReference: p.PaymentReference,
			}
			if err := st.AppendHistory(ctx, []*models.PaymentHistoryRow{synthetic}); err != nil {
				return err
			}
		}
	}

	if err := recomputeOrder(ctx, st, order); err != nil {
		return err
	}
	for _, p := range parked {
		if err := st.DeleteUnmatched(ctx, p.ID); err != nil {
			return err
		}
	}
	return nil
}

// recomputeOrder overwrites the order's financial summary with the
// projection of its complete settlement history and saves it. Every path
// that touches order financials goes through here.
func recomputeOrder(ctx context.Context, st store.Store, order *models.OrderRecord) error {
	rows, err := st.HistoryForOrder(ctx, order.OrderNumber)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		projection.Project(rows).ApplyTo(order)
	}
	return st.SaveOrder(ctx, order)
}
