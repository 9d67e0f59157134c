package projection

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketplace-finance-service/internal/models"
)

func createTestHistoryRow(order, pkg, ref string, net float64, at *time.Time) *models.PaymentHistoryRow {
	return &models.PaymentHistoryRow{
		OrderNumber:      order,
		PackageNo:        pkg,
		NetAmount:        decimal.NewFromFloat(net),
		PaymentReference: ref,
		TransactionAt:    at,
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func TestProjectSums(t *testing.T) {
	early := timePtr(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	late := timePtr(time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC))

	rows := []*models.PaymentHistoryRow{
		{
			OrderNumber:      "123456",
			NetAmount:        decimal.NewFromFloat(80),
			CommissionAmount: decimal.NewFromFloat(10),
			DiscountAmount:   decimal.NewFromFloat(5),
			GrossAmount:      decimal.NewFromFloat(95),
			TransactionAt:    late,
			PaymentReference: "PAY-2",
		},
		{
			OrderNumber:      "123456",
			NetAmount:        decimal.NewFromFloat(-20),
			PenaltyAmount:    decimal.NewFromFloat(20),
			GrossAmount:      decimal.NewFromFloat(-20),
			TransactionAt:    early,
			PaymentReference: "PAY-1",
		},
	}

	summary := Project(rows)

	if !summary.Net.Equal(decimal.NewFromFloat(60)) {
		t.Errorf("expected net 60, got %s", summary.Net)
	}
	if !summary.Commission.Equal(decimal.NewFromFloat(10)) {
		t.Errorf("expected commission 10, got %s", summary.Commission)
	}
	if !summary.Penalty.Equal(decimal.NewFromFloat(20)) {
		t.Errorf("expected penalty 20, got %s", summary.Penalty)
	}
	if !summary.Gross.Equal(decimal.NewFromFloat(75)) {
		t.Errorf("expected gross 75, got %s", summary.Gross)
	}
	if summary.PaidAt == nil || !summary.PaidAt.Equal(*early) {
		t.Errorf("expected earliest paid at %v, got %v", early, summary.PaidAt)
	}
	// earliest row in transaction order carries the reference
	if summary.PaymentReference != "PAY-1" {
		t.Errorf("expected reference PAY-1, got %s", summary.PaymentReference)
	}
}

func TestProjectEmpty(t *testing.T) {
	summary := Project(nil)
	if !summary.Net.IsZero() || !summary.Gross.IsZero() {
		t.Errorf("expected zero summary, got %+v", summary)
	}
	if summary.PaidAt != nil {
		t.Errorf("expected nil paid at, got %v", summary.PaidAt)
	}
}

func TestProjectNilDatesSortLast(t *testing.T) {
	at := timePtr(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	rows := []*models.PaymentHistoryRow{
		createTestHistoryRow("123456", "", "NO-DATE", 10, nil),
		createTestHistoryRow("123456", "", "DATED", 20, at),
	}

	summary := Project(rows)
	if summary.PaymentReference != "DATED" {
		t.Errorf("expected dated row to lead, got reference %s", summary.PaymentReference)
	}
	if summary.PaidAt == nil || !summary.PaidAt.Equal(*at) {
		t.Errorf("expected paid at %v, got %v", at, summary.PaidAt)
	}
}

func TestProjectIdempotent(t *testing.T) {
	rows := []*models.PaymentHistoryRow{
		createTestHistoryRow("123456", "987", "PAY-1", 90, timePtr(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))),
		createTestHistoryRow("123456", "987", "PAY-2", -15, timePtr(time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC))),
	}

	first := Project(rows)
	second := Project(rows)

	if !first.Net.Equal(second.Net) || first.PaymentReference != second.PaymentReference {
		t.Errorf("projection not stable: %+v vs %+v", first, second)
	}
}

func TestGroupByKey(t *testing.T) {
	rows := []*models.PaymentHistoryRow{
		createTestHistoryRow("123456", "987", "A", 1, nil),
		createTestHistoryRow("123456", "988", "B", 2, nil),
		createTestHistoryRow("123456", "987", "C", 3, nil),
		createTestHistoryRow("654321", "", "D", 4, nil),
	}

	groups := GroupByKey(rows)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if len(groups["123456_987"]) != 2 {
		t.Errorf("expected 2 rows under 123456_987, got %d", len(groups["123456_987"]))
	}
	if len(groups["654321_HEAD"]) != 1 {
		t.Errorf("expected HEAD group for packageless row, got %v", groups)
	}
}

func TestGroupByOrder(t *testing.T) {
	rows := []*models.PaymentHistoryRow{
		createTestHistoryRow("123456", "987", "A", 1, nil),
		createTestHistoryRow("123456", "988", "B", 2, nil),
		createTestHistoryRow("654321", "", "C", 3, nil),
	}

	groups := GroupByOrder(rows)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups["123456"]) != 2 {
		t.Errorf("expected both packages under 123456, got %d", len(groups["123456"]))
	}
}
