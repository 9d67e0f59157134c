package ingest

import (
	"time"

	"marketplace-finance-service/internal/models"
)

// settlementTermDays is how long after delivery the marketplace owes the
// seller the settlement for an order.
const settlementTermDays = 28

// payoutDelayDays maps the weekday a settlement falls due to the number of
// extra days before the marketplace actually transfers the money. Transfers
// only run on certain banking days, so a due date landing on e.g. a Friday
// waits over the weekend.
var payoutDelayDays = map[time.Weekday]int{
	time.Monday:    0,
	time.Tuesday:   2,
	time.Wednesday: 1,
	time.Thursday:  0,
	time.Friday:    3,
	time.Saturday:  2,
	time.Sunday:    1,
}

// PayoutSchedule computes when an order's settlement falls due and when the
// transfer is expected, from its delivery date. Returns nils when the order
// has not been delivered.
func PayoutSchedule(deliveredAt *time.Time) (dueAt, expectedAt *time.Time) {
	if deliveredAt == nil {
		return nil, nil
	}
	due := deliveredAt.AddDate(0, 0, settlementTermDays)
	expected := due.AddDate(0, 0, payoutDelayDays[due.Weekday()])
	return &due, &expected
}

// applyPayoutSchedule fills in the order's due and expected payout dates.
// An order counts as delivered when its export carried a delivery date or a
// delivered status.
func applyPayoutSchedule(o *models.OrderRecord, status string) {
	if o.DeliveredAt == nil && models.IsDeliveredStatus(status) && o.OrderDate != nil {
		// Status says delivered but the export had no delivery date;
		// the order date is the best anchor we have.
		o.DeliveredAt = o.OrderDate
	}
	o.DueAt, o.ExpectedPayoutAt = PayoutSchedule(o.DeliveredAt)
}
