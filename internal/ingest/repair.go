package ingest

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"marketplace-finance-service/internal/models"
	"marketplace-finance-service/internal/projection"
	"marketplace-finance-service/internal/store"
	ferrors "marketplace-finance-service/pkg/errors"
	"marketplace-finance-service/pkg/logger"
)

// Repairer rebuilds every order's financial summary from the settlement
// history log. Because order financials are a pure projection of history,
// running repair on consistent data changes nothing; on data damaged by a
// crash mid-import it converges orders back to their history.
type Repairer struct {
	store  store.Store
	logger logger.Logger
}

// NewRepairer creates a repairer over the given store
func NewRepairer(st store.Store) *Repairer {
	return &Repairer{
		store:  st,
		logger: logger.GetGlobalLogger().WithComponent("repairer"),
	}
}

// Run re-projects every order that has settlement history. Orders without
// history and parked settlements are left untouched. Idempotent.
func (r *Repairer) Run(ctx context.Context) (*models.ImportResult, error) {
	op := logger.NewOperationLogger("repair_orders", r.logger)

	history, err := r.store.AllHistory(ctx)
	if err != nil {
		wrapped := ferrors.StoreError(ferrors.CodeStoreRead, "load_history", err)
		op.Error(wrapped, "repair failed")
		return &models.ImportResult{Success: false, Error: wrapped.Error()}, wrapped
	}

	byOrder := projection.GroupByOrder(history)
	numbers := make([]string, 0, len(byOrder))
	for num := range byOrder {
		numbers = append(numbers, num)
	}
	sort.Strings(numbers)
	op.Progress("projecting orders", 0, int64(len(numbers)))

	var (
		mu                sync.Mutex
		repaired, skipped int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileWorkers)

	for _, num := range numbers {
		num, rows := num, byOrder[num]
		g.Go(func() error {
			order, err := r.store.GetOrderByNumber(gctx, num)
			if err == store.ErrNotFound {
				// History without an order belongs to parked settlements.
				mu.Lock()
				skipped++
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}
			projection.Project(rows).ApplyTo(order)
			if err := r.store.SaveOrder(gctx, order); err != nil {
				return err
			}
			mu.Lock()
			repaired++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		wrapped := ferrors.WrapIfNeeded(err, ferrors.CategoryStore, ferrors.CodeStoreWrite, "repair aborted")
		op.Error(wrapped, "repair failed")
		return &models.ImportResult{
			Success:   false,
			Processed: len(numbers),
			Updated:   repaired,
			Error:     wrapped.Error(),
		}, wrapped
	}

	result := &models.ImportResult{
		Success:   true,
		Processed: len(numbers),
		Updated:   repaired,
		Skipped:   skipped,
	}
	op.Success("repair complete")
	return result, nil
}
