package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"marketplace-finance-service/internal/models"
	"marketplace-finance-service/internal/store"
	ferrors "marketplace-finance-service/pkg/errors"
)

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

const ordersCSV = `Sipariş Numarası;Paket No;Ürün Adı;Adet;Satış Tutarı;Sipariş Tarihi;Sipariş Statüsü;Teslim Tarihi
TY-100 200;PKG1;Kalem;2;100,50;01.03.2024;Teslim Edildi;04.03.2024
TY-100 200;PKG1;Defter;1;49,50;01.03.2024;Teslim Edildi;04.03.2024
300400;PKG2;Silgi;3;30,00;02.03.2024;Kargoya Verildi;
`

const paymentsCSV = `Sipariş Numarası;Paket Numarası;Tutar;Komisyon Tutarı;İşlem Tipi;Satıcı Hakediş;İşlem Tarihi;İşlem Numarası
100200;PKG1;150,00;15,00;Satış;135,00;05.04.2024;REF-1
`

func importOrders(t *testing.T, st store.Store, path string) *models.ImportResult {
	t.Helper()
	importer, err := NewOrderImporter(st, nil)
	if err != nil {
		t.Fatalf("NewOrderImporter() error = %v", err)
	}
	result, err := importer.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("orders Import() error = %v", err)
	}
	return result
}

func importPayments(t *testing.T, st store.Store, path string, force bool) *models.ImportResult {
	t.Helper()
	importer, err := NewPaymentImporter(st, nil)
	if err != nil {
		t.Fatalf("NewPaymentImporter() error = %v", err)
	}
	importer.Force = force
	result, err := importer.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("payments Import() error = %v", err)
	}
	return result
}

func TestOrderImportAggregates(t *testing.T) {
	st := store.NewMemoryStore()
	path := writeTestFile(t, "orders.csv", ordersCSV)

	result := importOrders(t, st, path)
	if !result.Success {
		t.Fatalf("import failed: %s", result.Error)
	}
	if result.Processed != 3 || result.Inserted != 2 {
		t.Errorf("result = %d processed / %d inserted, want 3 / 2", result.Processed, result.Inserted)
	}

	order, err := st.GetOrderByNumber(context.Background(), "100200")
	if err != nil {
		t.Fatalf("GetOrderByNumber() error = %v", err)
	}
	if order.Quantity != 3 {
		t.Errorf("Quantity = %d, want 3", order.Quantity)
	}
	if !order.SaleTotal.Equal(decimal.NewFromFloat(150)) {
		t.Errorf("SaleTotal = %s, want 150", order.SaleTotal)
	}
	if order.ProductName != "Kalem, Defter" {
		t.Errorf("ProductName = %q, want %q", order.ProductName, "Kalem, Defter")
	}
	if order.DeliveredAt == nil {
		t.Fatal("DeliveredAt not set for delivered order")
	}
	// Delivered 2024-03-04 (Monday): due 2024-04-01 (Monday), no payout delay.
	if order.DueAt == nil || order.DueAt.Day() != 1 || order.ExpectedPayoutAt == nil || order.ExpectedPayoutAt.Day() != 1 {
		t.Errorf("payout schedule = %v / %v, want 2024-04-01 for both", order.DueAt, order.ExpectedPayoutAt)
	}

	// Undelivered order gets no schedule.
	other, err := st.GetOrderByNumber(context.Background(), "300400")
	if err != nil {
		t.Fatalf("GetOrderByNumber() error = %v", err)
	}
	if other.DueAt != nil || other.DeliveredAt != nil {
		t.Error("undelivered order should have no payout schedule")
	}

	uploads, _ := st.ListUploads(context.Background(), 1)
	if len(uploads) != 1 || uploads[0].Status != models.UploadStatusCompleted {
		t.Error("expected one completed upload log entry")
	}
}

func TestOrderImportSkipsMissingKey(t *testing.T) {
	st := store.NewMemoryStore()
	path := writeTestFile(t, "orders.csv", `Sipariş Numarası;Ürün Adı;Adet
100200;Kalem;1
;Defter;2
`)

	result := importOrders(t, st, path)
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", result.Skipped)
	}
	if result.Inserted != 1 {
		t.Errorf("Inserted = %d, want 1", result.Inserted)
	}
}

func TestPaymentImportMatchesOrder(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	importOrders(t, st, writeTestFile(t, "orders.csv", ordersCSV))
	result := importPayments(t, st, writeTestFile(t, "payments.csv", paymentsCSV), false)

	if !result.Success || result.Matched != 1 || result.Unmatched != 0 {
		t.Fatalf("result = %+v, want 1 matched / 0 unmatched", result)
	}

	order, err := st.GetOrderByNumber(ctx, "100200")
	if err != nil {
		t.Fatalf("GetOrderByNumber() error = %v", err)
	}
	if order.PaymentStatus != models.PaymentStatusPaid {
		t.Errorf("PaymentStatus = %s, want paid", order.PaymentStatus)
	}
	if !order.PaidAmount.Equal(decimal.NewFromFloat(135)) {
		t.Errorf("PaidAmount = %s, want 135", order.PaidAmount)
	}
	if !order.CommissionAmount.Equal(decimal.NewFromFloat(15)) {
		t.Errorf("CommissionAmount = %s, want 15", order.CommissionAmount)
	}
	if order.PaymentReference != "REF-1" {
		t.Errorf("PaymentReference = %s, want REF-1", order.PaymentReference)
	}
	if order.PaidAt == nil {
		t.Error("PaidAt not set")
	}

	history, _ := st.HistoryForOrder(ctx, "100200")
	if len(history) != 1 {
		t.Errorf("history rows = %d, want 1", len(history))
	}
}

func TestPaymentImportParksUnmatched(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	result := importPayments(t, st, writeTestFile(t, "payments.csv", paymentsCSV), false)
	if result.Matched != 0 || result.Unmatched != 1 {
		t.Fatalf("result = %+v, want 0 matched / 1 unmatched", result)
	}

	parked, _ := st.ListUnmatched(ctx)
	if len(parked) != 1 {
		t.Fatalf("parked rows = %d, want 1", len(parked))
	}
	if !parked[0].InHistory {
		t.Error("parked aggregate should record that its rows are in history")
	}
	if !parked[0].NetAmount.Equal(decimal.NewFromFloat(135)) {
		t.Errorf("parked NetAmount = %s, want 135", parked[0].NetAmount)
	}

	// The settlement rows still reach the history log.
	history, _ := st.AllHistory(ctx)
	if len(history) != 1 {
		t.Errorf("history rows = %d, want 1", len(history))
	}
}

func TestParkedRowsWithoutReferenceDoNotCollide(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// Export without a reference column: the parked rows must still get
	// distinct references, or the store's reference upsert would fold two
	// different orders into one parked row.
	noRefCSV := "Sipariş Numarası;Tutar;Satıcı Hakediş\n" +
		"111111;100,00;90,00\n" +
		"222222;50,00;45,00\n"
	result := importPayments(t, st, writeTestFile(t, "payments.csv", noRefCSV), false)
	if result.Unmatched != 2 {
		t.Fatalf("result.Unmatched = %d, want 2", result.Unmatched)
	}

	parked, _ := st.ListUnmatched(ctx)
	if len(parked) != 2 {
		t.Fatalf("parked rows = %d, want one per order", len(parked))
	}
	refs := map[string]bool{}
	for _, p := range parked {
		if p.PaymentReference == "" {
			t.Error("parked row has no payment reference")
		}
		refs[p.PaymentReference] = true
	}
	if len(refs) != 2 {
		t.Errorf("distinct references = %d, want 2", len(refs))
	}

	// Both orders resolve once they are imported.
	ordersNoRef := "Sipariş Numarası;Ürün Adı;Adet;Satış Tutarı\n" +
		"111111;Kalem;1;100,00\n" +
		"222222;Defter;1;50,00\n"
	importOrders(t, st, writeTestFile(t, "orders.csv", ordersNoRef))

	if parked, _ = st.ListUnmatched(ctx); len(parked) != 0 {
		t.Fatalf("parked rows after order import = %d, want 0", len(parked))
	}
	for _, num := range []string{"111111", "222222"} {
		order, err := st.GetOrderByNumber(ctx, num)
		if err != nil {
			t.Fatalf("GetOrderByNumber(%s) error = %v", num, err)
		}
		if order.PaymentStatus != models.PaymentStatusPaid {
			t.Errorf("order %s not marked paid", num)
		}
	}
}

func TestRetroactiveMatchingConverges(t *testing.T) {
	ctx := context.Background()

	// Orders before payments.
	a := store.NewMemoryStore()
	importOrders(t, a, writeTestFile(t, "orders.csv", ordersCSV))
	importPayments(t, a, writeTestFile(t, "payments.csv", paymentsCSV), false)

	// Payments before orders: the settlement parks, then the order import
	// resolves it.
	b := store.NewMemoryStore()
	importPayments(t, b, writeTestFile(t, "payments.csv", paymentsCSV), false)
	result := importOrders(t, b, writeTestFile(t, "orders.csv", ordersCSV))
	if result.Matched != 1 {
		t.Errorf("order import Matched = %d, want 1 retroactive match", result.Matched)
	}

	parked, _ := b.ListUnmatched(ctx)
	if len(parked) != 0 {
		t.Fatalf("parked rows after retroactive match = %d, want 0", len(parked))
	}

	orderA, _ := a.GetOrderByNumber(ctx, "100200")
	orderB, _ := b.GetOrderByNumber(ctx, "100200")
	if orderB.PaymentStatus != models.PaymentStatusPaid {
		t.Fatal("retroactively matched order not marked paid")
	}
	if !orderA.PaidAmount.Equal(orderB.PaidAmount) ||
		!orderA.CommissionAmount.Equal(orderB.CommissionAmount) ||
		!orderA.GrossAmount.Equal(orderB.GrossAmount) {
		t.Errorf("import order changed the outcome: %s vs %s", orderA.PaidAmount, orderB.PaidAmount)
	}
}

func TestRepairIsNoOpOnConsistentData(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	importOrders(t, st, writeTestFile(t, "orders.csv", ordersCSV))
	importPayments(t, st, writeTestFile(t, "payments.csv", paymentsCSV), false)

	before, _ := st.GetOrderByNumber(ctx, "100200")

	result, err := NewRepairer(st).Run(ctx)
	if err != nil {
		t.Fatalf("Repair Run() error = %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("Updated = %d, want 1", result.Updated)
	}

	after, _ := st.GetOrderByNumber(ctx, "100200")
	if !before.PaidAmount.Equal(after.PaidAmount) ||
		!before.CommissionAmount.Equal(after.CommissionAmount) ||
		before.PaymentStatus != after.PaymentStatus {
		t.Errorf("repair changed a consistent order: %s -> %s", before.PaidAmount, after.PaidAmount)
	}
}

func TestRepairRestoresDamagedTotals(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	importOrders(t, st, writeTestFile(t, "orders.csv", ordersCSV))
	importPayments(t, st, writeTestFile(t, "payments.csv", paymentsCSV), false)

	damaged, _ := st.GetOrderByNumber(ctx, "100200")
	damaged.PaidAmount = decimal.NewFromFloat(999)
	if err := st.SaveOrder(ctx, damaged); err != nil {
		t.Fatalf("SaveOrder() error = %v", err)
	}

	if _, err := NewRepairer(st).Run(ctx); err != nil {
		t.Fatalf("Repair Run() error = %v", err)
	}

	repaired, _ := st.GetOrderByNumber(ctx, "100200")
	if !repaired.PaidAmount.Equal(decimal.NewFromFloat(135)) {
		t.Errorf("PaidAmount after repair = %s, want 135", repaired.PaidAmount)
	}
}

func TestResyncResolvesParkedRows(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// Settlement arrives before the order exists and parks.
	importPayments(t, st, writeTestFile(t, "payments.csv", paymentsCSV), false)

	// The order appears out of band, without going through the importer.
	if err := st.SaveOrder(ctx, &models.OrderRecord{
		OrderNumber:   "100200",
		PackageNo:     "PKG1",
		PaymentStatus: models.PaymentStatusUnpaid,
	}); err != nil {
		t.Fatalf("SaveOrder() error = %v", err)
	}

	result, err := NewResyncer(st).Run(ctx)
	if err != nil {
		t.Fatalf("Resync Run() error = %v", err)
	}
	if result.Matched != 1 || result.Unmatched != 0 {
		t.Errorf("result = %+v, want 1 matched / 0 remaining", result)
	}

	parked, _ := st.ListUnmatched(ctx)
	if len(parked) != 0 {
		t.Errorf("parked rows after resync = %d, want 0", len(parked))
	}
	order, _ := st.GetOrderByNumber(ctx, "100200")
	if order.PaymentStatus != models.PaymentStatusPaid || !order.PaidAmount.Equal(decimal.NewFromFloat(135)) {
		t.Errorf("order = %s / %s, want paid / 135", order.PaymentStatus, order.PaidAmount)
	}
}

func TestResyncIsAdditiveForPaidOrders(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// Order paid through a normal import cycle.
	importOrders(t, st, writeTestFile(t, "orders.csv", ordersCSV))
	importPayments(t, st, writeTestFile(t, "payments.csv", paymentsCSV), false)

	// A legacy parked aggregate for the same order, never written to
	// history, surfaces later.
	if err := st.SaveUnmatched(ctx, &models.UnmatchedPaymentRow{
		OrderNumber:      "100200",
		PackageNo:        "PKG9",
		NetAmount:        decimal.NewFromFloat(20),
		GrossAmount:      decimal.NewFromFloat(20),
		PaymentReference: "REF-LEGACY",
		RowCount:         1,
		InHistory:        false,
	}); err != nil {
		t.Fatalf("SaveUnmatched() error = %v", err)
	}

	if _, err := NewResyncer(st).Run(ctx); err != nil {
		t.Fatalf("Resync Run() error = %v", err)
	}

	order, _ := st.GetOrderByNumber(ctx, "100200")
	if !order.PaidAmount.Equal(decimal.NewFromFloat(155)) {
		t.Errorf("PaidAmount = %s, want 135 + 20 = 155", order.PaidAmount)
	}

	// The synthesized history row keeps repair in agreement.
	if _, err := NewRepairer(st).Run(ctx); err != nil {
		t.Fatalf("Repair Run() error = %v", err)
	}
	order, _ = st.GetOrderByNumber(ctx, "100200")
	if !order.PaidAmount.Equal(decimal.NewFromFloat(155)) {
		t.Errorf("PaidAmount after repair = %s, want 155", order.PaidAmount)
	}
}

func TestDuplicatePaymentsUploadGuard(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	path := writeTestFile(t, "payments.csv", paymentsCSV)
	importOrders(t, st, writeTestFile(t, "orders.csv", ordersCSV))
	importPayments(t, st, path, false)

	importer, err := NewPaymentImporter(st, nil)
	if err != nil {
		t.Fatalf("NewPaymentImporter() error = %v", err)
	}
	result, err := importer.Import(ctx, path)
	if err == nil || result.Success {
		t.Fatal("expected duplicate upload to be rejected")
	}
	fe, ok := ferrors.AsFinanceError(err)
	if !ok || fe.Code != ferrors.CodeDuplicateUpload {
		t.Errorf("error = %v, want duplicate_upload", err)
	}
	if history, _ := st.AllHistory(ctx); len(history) != 1 {
		t.Errorf("history rows = %d, duplicate import must not append", len(history))
	}

	// Force lets the file through and duplicates history knowingly.
	result = importPayments(t, st, path, true)
	if !result.Success {
		t.Fatalf("forced import failed: %s", result.Error)
	}
	if history, _ := st.AllHistory(ctx); len(history) != 2 {
		t.Errorf("history rows = %d after force, want 2", len(history))
	}
	order, _ := st.GetOrderByNumber(ctx, "100200")
	if !order.PaidAmount.Equal(decimal.NewFromFloat(270)) {
		t.Errorf("PaidAmount = %s, want doubled 270", order.PaidAmount)
	}
}

func TestImportFailuresAreLogged(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	// A file whose headers match nothing cannot be parsed, but the import
	// call must still leave its audit record.
	badPath := writeTestFile(t, "orders.csv", "kolon1;kolon2\nveri;veri\n")
	importer, err := NewOrderImporter(st, nil)
	if err != nil {
		t.Fatalf("NewOrderImporter() error = %v", err)
	}
	result, err := importer.Import(ctx, badPath)
	if err == nil || result.Success {
		t.Fatal("expected unparseable file to fail")
	}

	uploads, _ := st.ListUploads(ctx, 10)
	if len(uploads) != 1 {
		t.Fatalf("uploads = %d, want 1 entry for the failed orders import", len(uploads))
	}
	if uploads[0].Status != models.UploadStatusFailed || uploads[0].ErrorMessage == "" {
		t.Errorf("upload entry = %+v, want failed status with error message", uploads[0])
	}

	// A rejected duplicate payments file is also an import call, so it logs
	// too, without poisoning the hash guard for completed uploads.
	path := writeTestFile(t, "payments.csv", paymentsCSV)
	importOrders(t, st, writeTestFile(t, "good-orders.csv", ordersCSV))
	importPayments(t, st, path, false)

	pimporter, err := NewPaymentImporter(st, nil)
	if err != nil {
		t.Fatalf("NewPaymentImporter() error = %v", err)
	}
	if _, err := pimporter.Import(ctx, path); err == nil {
		t.Fatal("expected duplicate upload to be rejected")
	}

	uploads, _ = st.ListUploads(ctx, 10)
	var failed int
	for _, u := range uploads {
		if u.UploadType == models.UploadTypePayments && u.Status == models.UploadStatusFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("failed payments uploads = %d, want the rejected duplicate logged", failed)
	}
}

// failingStore wraps a Store and fails history appends, simulating a
// persistence outage mid-import.
type failingStore struct {
	store.Store
}

func (f *failingStore) AppendHistory(ctx context.Context, rows []*models.PaymentHistoryRow) error {
	return ferrors.StoreError(ferrors.CodeStoreWrite, "append_history", os.ErrDeadlineExceeded)
}

func TestPaymentImportStoreFailure(t *testing.T) {
	st := &failingStore{Store: store.NewMemoryStore()}
	ctx := context.Background()

	importer, err := NewPaymentImporter(st, nil)
	if err != nil {
		t.Fatalf("NewPaymentImporter() error = %v", err)
	}
	result, err := importer.Import(ctx, writeTestFile(t, "payments.csv", paymentsCSV))
	if err == nil {
		t.Fatal("expected store failure to surface")
	}
	if result.Success {
		t.Error("result.Success = true on store failure")
	}
	if result.Error == "" {
		t.Error("result.Error empty on store failure")
	}

	uploads, _ := st.ListUploads(ctx, 1)
	if len(uploads) != 1 || uploads[0].Status != models.UploadStatusFailed {
		t.Fatal("expected a failed upload log entry")
	}
	if uploads[0].ErrorMessage == "" {
		t.Error("failed upload log entry has no error message")
	}
}
