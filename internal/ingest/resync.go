package ingest

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"marketplace-finance-service/internal/models"
	"marketplace-finance-service/internal/store"
	ferrors "marketplace-finance-service/pkg/errors"
	"marketplace-finance-service/pkg/logger"
)

// Resyncer re-attempts matching of parked settlements against orders that
// were ingested after the settlements arrived. It is the retry mechanism
// for unmatched payments; store errors are not retried here.
type Resyncer struct {
	store  store.Store
	logger logger.Logger
}

// NewResyncer creates a resyncer over the given store
func NewResyncer(st store.Store) *Resyncer {
	return &Resyncer{
		store:  st,
		logger: logger.GetGlobalLogger().WithComponent("resyncer"),
	}
}

// Run walks every parked settlement, grouped by order number, and resolves
// the groups whose order now exists. Lookup is by order number alone.
// Matched counts resolved rows; Unmatched counts what remains parked.
func (r *Resyncer) Run(ctx context.Context) (*models.ImportResult, error) {
	op := logger.NewOperationLogger("resync_unmatched", r.logger)

	parked, err := r.store.ListUnmatched(ctx)
	if err != nil {
		wrapped := ferrors.StoreError(ferrors.CodeStoreRead, "list_unmatched", err)
		op.Error(wrapped, "resync failed")
		return &models.ImportResult{Success: false, Error: wrapped.Error()}, wrapped
	}
	if len(parked) == 0 {
		op.Success("nothing parked")
		return &models.ImportResult{Success: true}, nil
	}

	byOrder := make(map[string][]*models.UnmatchedPaymentRow)
	var numbers []string
	for _, row := range parked {
		if _, ok := byOrder[row.OrderNumber]; !ok {
			numbers = append(numbers, row.OrderNumber)
		}
		byOrder[row.OrderNumber] = append(byOrder[row.OrderNumber], row)
	}
	sort.Strings(numbers)

	var (
		mu      sync.Mutex
		matched int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileWorkers)

	for _, num := range numbers {
		num, group := num, byOrder[num]
		g.Go(func() error {
			order, err := r.store.GetOrderByNumber(gctx, num)
			if err == store.ErrNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			if err := resolveParked(gctx, r.store, order, group); err != nil {
				return err
			}
			mu.Lock()
			matched += len(group)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		wrapped := ferrors.WrapIfNeeded(err, ferrors.CategoryStore, ferrors.CodeStoreWrite, "resync aborted")
		op.Error(wrapped, "resync failed")
		return &models.ImportResult{
			Success:   false,
			Processed: len(parked),
			Matched:   matched,
			Error:     wrapped.Error(),
		}, wrapped
	}

	result := &models.ImportResult{
		Success:   true,
		Processed: len(parked),
		Matched:   matched,
		Unmatched: len(parked) - matched,
	}
	op.Success("resync complete")
	return result, nil
}
