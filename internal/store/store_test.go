package store

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"marketplace-finance-service/internal/models"
)

func createTestOrder(orderNumber, packageNo string) *models.OrderRecord {
	return &models.OrderRecord{
		OrderNumber:   orderNumber,
		PackageNo:     packageNo,
		ProductName:   "Test Product",
		Quantity:      1,
		SaleTotal:     decimal.NewFromFloat(100.50),
		PaymentStatus: models.PaymentStatusUnpaid,
	}
}

func createTestHistoryRow(orderNumber, packageNo string, net float64) *models.PaymentHistoryRow {
	return &models.PaymentHistoryRow{
		OrderNumber: orderNumber,
		PackageNo:   packageNo,
		NetAmount:   decimal.NewFromFloat(net),
		GrossAmount: decimal.NewFromFloat(net),
	}
}

func TestMemoryStoreUpsertOrders(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inserted, updated, err := s.UpsertOrders(ctx, []*models.OrderRecord{
		createTestOrder("1001", "PKG1"),
		createTestOrder("1002", "PKG2"),
	})
	if err != nil {
		t.Fatalf("UpsertOrders() error = %v", err)
	}
	if inserted != 2 || updated != 0 {
		t.Errorf("UpsertOrders() = (%d, %d), want (2, 0)", inserted, updated)
	}

	// Re-import with a changed quantity; the second pass updates.
	changed := createTestOrder("1001", "PKG1")
	changed.Quantity = 5
	inserted, updated, err = s.UpsertOrders(ctx, []*models.OrderRecord{changed, createTestOrder("1003", "PKG3")})
	if err != nil {
		t.Fatalf("UpsertOrders() error = %v", err)
	}
	if inserted != 1 || updated != 1 {
		t.Errorf("UpsertOrders() = (%d, %d), want (1, 1)", inserted, updated)
	}

	got, err := s.GetOrder(ctx, "1001", "PKG1")
	if err != nil {
		t.Fatalf("GetOrder() error = %v", err)
	}
	if got.Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", got.Quantity)
	}
}

func TestMemoryStoreUpsertPreservesFinancials(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	order := createTestOrder("2001", "PKG1")
	if _, _, err := s.UpsertOrders(ctx, []*models.OrderRecord{order}); err != nil {
		t.Fatalf("UpsertOrders() error = %v", err)
	}

	// Mark the order paid out of band.
	stored, err := s.GetOrderByNumber(ctx, "2001")
	if err != nil {
		t.Fatalf("GetOrderByNumber() error = %v", err)
	}
	stored.PaymentStatus = models.PaymentStatusPaid
	stored.PaidAmount = decimal.NewFromFloat(95.25)
	stored.PaymentReference = "REF-1"
	if err := s.SaveOrder(ctx, stored); err != nil {
		t.Fatalf("SaveOrder() error = %v", err)
	}

	// A fresh orders import must not wipe the payment columns.
	if _, _, err := s.UpsertOrders(ctx, []*models.OrderRecord{createTestOrder("2001", "PKG1")}); err != nil {
		t.Fatalf("UpsertOrders() error = %v", err)
	}

	got, err := s.GetOrderByNumber(ctx, "2001")
	if err != nil {
		t.Fatalf("GetOrderByNumber() error = %v", err)
	}
	if got.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("PaymentStatus = %s, want paid", got.PaymentStatus)
	}
	if !got.PaidAmount.Equal(decimal.NewFromFloat(95.25)) {
		t.Errorf("PaidAmount = %s, want 95.25", got.PaidAmount)
	}
	if got.PaymentReference != "REF-1" {
		t.Errorf("PaymentReference = %s, want REF-1", got.PaymentReference)
	}
}

func TestMemoryStoreGetOrderNotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetOrder(ctx, "9999", ""); err != ErrNotFound {
		t.Errorf("GetOrder() error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetOrderByNumber(ctx, "9999"); err != ErrNotFound {
		t.Errorf("GetOrderByNumber() error = %v, want ErrNotFound", err)
	}

	// Package mismatch is also a miss.
	if _, _, err := s.UpsertOrders(ctx, []*models.OrderRecord{createTestOrder("3001", "PKG1")}); err != nil {
		t.Fatalf("UpsertOrders() error = %v", err)
	}
	if _, err := s.GetOrder(ctx, "3001", "PKG2"); err != ErrNotFound {
		t.Errorf("GetOrder() with wrong package error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreHistory(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rows := []*models.PaymentHistoryRow{
		createTestHistoryRow("4001", "PKG1", 50),
		createTestHistoryRow("4001", "PKG2", 30),
		createTestHistoryRow("4002", "", 10),
	}
	if err := s.AppendHistory(ctx, rows); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}

	byKey, err := s.HistoryForKey(ctx, "4001", "PKG1")
	if err != nil {
		t.Fatalf("HistoryForKey() error = %v", err)
	}
	if len(byKey) != 1 {
		t.Errorf("HistoryForKey() returned %d rows, want 1", len(byKey))
	}

	byOrder, err := s.HistoryForOrder(ctx, "4001")
	if err != nil {
		t.Fatalf("HistoryForOrder() error = %v", err)
	}
	if len(byOrder) != 2 {
		t.Errorf("HistoryForOrder() returned %d rows, want 2", len(byOrder))
	}

	all, err := s.AllHistory(ctx)
	if err != nil {
		t.Fatalf("AllHistory() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("AllHistory() returned %d rows, want 3", len(all))
	}

	// Appending again must not replace earlier rows.
	if err := s.AppendHistory(ctx, []*models.PaymentHistoryRow{createTestHistoryRow("4001", "PKG1", 5)}); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}
	byKey, _ = s.HistoryForKey(ctx, "4001", "PKG1")
	if len(byKey) != 2 {
		t.Errorf("HistoryForKey() after second append returned %d rows, want 2", len(byKey))
	}
}

func TestMemoryStoreUnmatchedUpsertByReference(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := &models.UnmatchedPaymentRow{
		OrderNumber:      "5001",
		NetAmount:        decimal.NewFromFloat(40),
		PaymentReference: "REF-A",
		RowCount:         1,
	}
	if err := s.SaveUnmatched(ctx, first); err != nil {
		t.Fatalf("SaveUnmatched() error = %v", err)
	}

	// Same reference again replaces the row instead of duplicating it.
	second := &models.UnmatchedPaymentRow{
		OrderNumber:      "5001",
		NetAmount:        decimal.NewFromFloat(70),
		PaymentReference: "REF-A",
		RowCount:         2,
	}
	if err := s.SaveUnmatched(ctx, second); err != nil {
		t.Fatalf("SaveUnmatched() error = %v", err)
	}

	parked, err := s.ListUnmatched(ctx)
	if err != nil {
		t.Fatalf("ListUnmatched() error = %v", err)
	}
	if len(parked) != 1 {
		t.Fatalf("ListUnmatched() returned %d rows, want 1", len(parked))
	}
	if !parked[0].NetAmount.Equal(decimal.NewFromFloat(70)) {
		t.Errorf("NetAmount = %s, want 70", parked[0].NetAmount)
	}

	forOrder, err := s.UnmatchedForOrder(ctx, "5001")
	if err != nil {
		t.Fatalf("UnmatchedForOrder() error = %v", err)
	}
	if len(forOrder) != 1 {
		t.Errorf("UnmatchedForOrder() returned %d rows, want 1", len(forOrder))
	}

	if err := s.DeleteUnmatched(ctx, parked[0].ID); err != nil {
		t.Fatalf("DeleteUnmatched() error = %v", err)
	}
	parked, _ = s.ListUnmatched(ctx)
	if len(parked) != 0 {
		t.Errorf("ListUnmatched() after delete returned %d rows, want 0", len(parked))
	}
}

func TestMemoryStoreUnmatchedEmptyReferenceUpserts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// The empty reference is one unique value, matching the MySQL index:
	// a second empty-reference row replaces the first rather than adding.
	// Callers that park reference-less settlements synthesize references
	// for this reason.
	if err := s.SaveUnmatched(ctx, &models.UnmatchedPaymentRow{OrderNumber: "6001"}); err != nil {
		t.Fatalf("SaveUnmatched() error = %v", err)
	}
	if err := s.SaveUnmatched(ctx, &models.UnmatchedPaymentRow{OrderNumber: "6002"}); err != nil {
		t.Fatalf("SaveUnmatched() error = %v", err)
	}

	parked, err := s.ListUnmatched(ctx)
	if err != nil {
		t.Fatalf("ListUnmatched() error = %v", err)
	}
	if len(parked) != 1 {
		t.Fatalf("ListUnmatched() returned %d rows, want 1", len(parked))
	}
	if parked[0].OrderNumber != "6002" {
		t.Errorf("OrderNumber = %s, want the later row to win", parked[0].OrderNumber)
	}
}

func TestMemoryStoreUploads(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	entries := []*models.UploadLogEntry{
		{ID: "u1", Filename: "a.csv", FileHash: "hash-a", UploadType: models.UploadTypeOrders, Status: models.UploadStatusCompleted},
		{ID: "u2", Filename: "b.csv", FileHash: "hash-b", UploadType: models.UploadTypePayments, Status: models.UploadStatusFailed},
		{ID: "u3", Filename: "c.csv", FileHash: "hash-b", UploadType: models.UploadTypePayments, Status: models.UploadStatusCompleted},
	}
	for _, e := range entries {
		if err := s.RecordUpload(ctx, e); err != nil {
			t.Fatalf("RecordUpload() error = %v", err)
		}
	}

	recent, err := s.ListUploads(ctx, 2)
	if err != nil {
		t.Fatalf("ListUploads() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("ListUploads(2) returned %d entries, want 2", len(recent))
	}
	if recent[0].ID != "u3" {
		t.Errorf("ListUploads() first entry = %s, want u3 (newest first)", recent[0].ID)
	}

	// Lookup by hash only sees completed uploads of the same type.
	found, err := s.FindUploadByHash(ctx, "hash-b", models.UploadTypePayments)
	if err != nil {
		t.Fatalf("FindUploadByHash() error = %v", err)
	}
	if found.ID != "u3" {
		t.Errorf("FindUploadByHash() = %s, want u3", found.ID)
	}
	if _, err := s.FindUploadByHash(ctx, "hash-a", models.UploadTypePayments); err != ErrNotFound {
		t.Errorf("FindUploadByHash() with mismatched type error = %v, want ErrNotFound", err)
	}
	if _, err := s.FindUploadByHash(ctx, "hash-x", models.UploadTypeOrders); err != ErrNotFound {
		t.Errorf("FindUploadByHash() unknown hash error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, _, err := s.UpsertOrders(ctx, []*models.OrderRecord{createTestOrder("6001", "")}); err != nil {
		t.Fatalf("UpsertOrders() error = %v", err)
	}
	if err := s.AppendHistory(ctx, []*models.PaymentHistoryRow{createTestHistoryRow("6001", "", 10)}); err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}
	if err := s.SaveUnmatched(ctx, &models.UnmatchedPaymentRow{OrderNumber: "6002", PaymentReference: "REF-R"}); err != nil {
		t.Fatalf("SaveUnmatched() error = %v", err)
	}
	if err := s.RecordUpload(ctx, &models.UploadLogEntry{ID: "u1", Status: models.UploadStatusCompleted}); err != nil {
		t.Fatalf("RecordUpload() error = %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	orders, _ := s.ListOrders(ctx)
	history, _ := s.AllHistory(ctx)
	parked, _ := s.ListUnmatched(ctx)
	uploads, _ := s.ListUploads(ctx, 0)
	if len(orders)+len(history)+len(parked)+len(uploads) != 0 {
		t.Errorf("Reset() left data behind: %d orders, %d history, %d unmatched, %d uploads",
			len(orders), len(history), len(parked), len(uploads))
	}
}

func TestMemoryStoreCopiesOnRead(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, _, err := s.UpsertOrders(ctx, []*models.OrderRecord{createTestOrder("7001", "")}); err != nil {
		t.Fatalf("UpsertOrders() error = %v", err)
	}

	got, err := s.GetOrderByNumber(ctx, "7001")
	if err != nil {
		t.Fatalf("GetOrderByNumber() error = %v", err)
	}
	got.Quantity = 99
	now := time.Now()
	got.PaidAt = &now

	again, _ := s.GetOrderByNumber(ctx, "7001")
	if again.Quantity == 99 || again.PaidAt != nil {
		t.Error("mutating a fetched order leaked into the store")
	}
}
