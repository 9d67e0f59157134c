// Package projection derives an order's financial summary from its payment
// history rows. The history log is append-only and is the single source of
// truth: ingestion, retroactive matching and repair all call the same fold,
// so recomputing a summary over unchanged history is always a no-op.
package projection

import (
	"sort"

	"marketplace-finance-service/internal/models"
)

// Project folds a set of history rows into a financial summary. Net,
// commission, discount, penalty and gross are summed; the paid-at instant
// is the earliest transaction date; the payment reference is the first
// non-empty one in transaction order.
func Project(rows []*models.PaymentHistoryRow) models.FinancialSummary {
	summary := models.FinancialSummary{}

	ordered := make([]*models.PaymentHistoryRow, len(rows))
	copy(ordered, rows)
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, tj := ordered[i].TransactionAt, ordered[j].TransactionAt
		switch {
		case ti == nil:
			return false
		case tj == nil:
			return true
		default:
			return ti.Before(*tj)
		}
	})

	for _, row := range ordered {
		summary.Net = summary.Net.Add(row.NetAmount)
		summary.Commission = summary.Commission.Add(row.CommissionAmount)
		summary.Discount = summary.Discount.Add(row.DiscountAmount)
		summary.Penalty = summary.Penalty.Add(row.PenaltyAmount)
		summary.Gross = summary.Gross.Add(row.GrossAmount)

		if summary.PaidAt == nil && row.TransactionAt != nil {
			summary.PaidAt = row.TransactionAt
		}
		if summary.PaymentReference == "" && row.PaymentReference != "" {
			summary.PaymentReference = row.PaymentReference
		}
	}

	return summary
}

// GroupByKey buckets history rows by their (order, package) key
func GroupByKey(rows []*models.PaymentHistoryRow) map[string][]*models.PaymentHistoryRow {
	groups := make(map[string][]*models.PaymentHistoryRow)
	for _, row := range rows {
		key := row.Key()
		groups[key] = append(groups[key], row)
	}
	return groups
}

// GroupByOrder buckets history rows by order number alone. Repair rebuilds
// per-order totals from these groups.
func GroupByOrder(rows []*models.PaymentHistoryRow) map[string][]*models.PaymentHistoryRow {
	groups := make(map[string][]*models.PaymentHistoryRow)
	for _, row := range rows {
		groups[row.OrderNumber] = append(groups[row.OrderNumber], row)
	}
	return groups
}
