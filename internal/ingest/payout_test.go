package ingest

import (
	"testing"
	"time"

	"marketplace-finance-service/internal/models"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestPayoutSchedule(t *testing.T) {
	tests := []struct {
		name         string
		deliveredAt  *time.Time
		wantDue      *time.Time
		wantExpected *time.Time
	}{
		{
			name: "not delivered",
		},
		{
			// 2024-03-04 is a Monday; +28d lands on Monday 2024-04-01, no delay.
			name:         "due on monday pays same day",
			deliveredAt:  date(2024, time.March, 4),
			wantDue:      date(2024, time.April, 1),
			wantExpected: date(2024, time.April, 1),
		},
		{
			// +28d lands on Tuesday 2024-04-02, delayed two days.
			name:         "due on tuesday pays thursday",
			deliveredAt:  date(2024, time.March, 5),
			wantDue:      date(2024, time.April, 2),
			wantExpected: date(2024, time.April, 4),
		},
		{
			// +28d lands on Friday 2024-04-05, delayed over the weekend.
			name:         "due on friday pays monday",
			deliveredAt:  date(2024, time.March, 8),
			wantDue:      date(2024, time.April, 5),
			wantExpected: date(2024, time.April, 8),
		},
		{
			// +28d lands on Saturday 2024-04-06.
			name:         "due on saturday pays monday",
			deliveredAt:  date(2024, time.March, 9),
			wantDue:      date(2024, time.April, 6),
			wantExpected: date(2024, time.April, 8),
		},
		{
			// +28d lands on Sunday 2024-04-07.
			name:         "due on sunday pays monday",
			deliveredAt:  date(2024, time.March, 10),
			wantDue:      date(2024, time.April, 7),
			wantExpected: date(2024, time.April, 8),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, expected := PayoutSchedule(tt.deliveredAt)
			if !sameTime(due, tt.wantDue) {
				t.Errorf("PayoutSchedule() due = %v, want %v", due, tt.wantDue)
			}
			if !sameTime(expected, tt.wantExpected) {
				t.Errorf("PayoutSchedule() expected = %v, want %v", expected, tt.wantExpected)
			}
		})
	}
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func TestApplyPayoutSchedule(t *testing.T) {
	t.Run("delivered status without date anchors on order date", func(t *testing.T) {
		o := &models.OrderRecord{OrderNumber: "1001", OrderDate: date(2024, time.March, 4)}
		applyPayoutSchedule(o, "Teslim Edildi")
		if o.DeliveredAt == nil {
			t.Fatal("DeliveredAt not set for delivered status")
		}
		if o.DueAt == nil || !o.DueAt.Equal(time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("DueAt = %v, want 2024-04-01", o.DueAt)
		}
	})

	t.Run("undelivered order has no schedule", func(t *testing.T) {
		o := &models.OrderRecord{OrderNumber: "1002", OrderDate: date(2024, time.March, 4)}
		applyPayoutSchedule(o, "Kargoya Verildi")
		if o.DeliveredAt != nil || o.DueAt != nil || o.ExpectedPayoutAt != nil {
			t.Error("schedule set for undelivered order")
		}
	})

	t.Run("explicit delivery date wins over status", func(t *testing.T) {
		o := &models.OrderRecord{
			OrderNumber: "1003",
			OrderDate:   date(2024, time.March, 1),
			DeliveredAt: date(2024, time.March, 8),
		}
		applyPayoutSchedule(o, "Teslim Edildi")
		if !o.DeliveredAt.Equal(time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("DeliveredAt = %v, want the explicit date", o.DeliveredAt)
		}
	})
}
