package store

import (
	"context"
	"sort"
	"sync"

	"marketplace-finance-service/internal/models"
)

// MemoryStore is an in-memory Store used by tests and --dry-run imports.
// It mirrors GormStore's semantics: order upserts only touch order-side
// columns, unmatched rows key on payment reference, history is append-only.
type MemoryStore struct {
	mu        sync.RWMutex
	orders    map[string]*models.OrderRecord
	history   []*models.PaymentHistoryRow
	unmatched map[uint]*models.UnmatchedPaymentRow
	byRef     map[string]uint
	uploads   []*models.UploadLogEntry
	nextID    uint
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]*models.OrderRecord),
		unmatched: make(map[uint]*models.UnmatchedPaymentRow),
		byRef:     make(map[string]uint),
	}
}

func (m *MemoryStore) allocID() uint {
	m.nextID++
	return m.nextID
}

// UpsertOrders writes orders keyed by order number. Existing records keep
// their financial columns; only order-side fields are replaced.
func (m *MemoryStore) UpsertOrders(_ context.Context, orders []*models.OrderRecord) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted, updated := 0, 0
	for _, o := range orders {
		if existing, ok := m.orders[o.OrderNumber]; ok {
			existing.PackageNo = o.PackageNo
			existing.Barcode = o.Barcode
			existing.ProductName = o.ProductName
			existing.Quantity = o.Quantity
			existing.SaleTotal = o.SaleTotal
			existing.OrderDate = o.OrderDate
			existing.DeliveredAt = o.DeliveredAt
			existing.DueAt = o.DueAt
			existing.ExpectedPayoutAt = o.ExpectedPayoutAt
			updated++
			continue
		}
		stored := *o
		stored.ID = m.allocID()
		m.orders[o.OrderNumber] = &stored
		inserted++
	}
	return inserted, updated, nil
}

// SaveOrder persists all columns of a single order
func (m *MemoryStore) SaveOrder(_ context.Context, order *models.OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *order
	if stored.ID == 0 {
		stored.ID = m.allocID()
	}
	m.orders[order.OrderNumber] = &stored
	return nil
}

// GetOrder fetches an order by its exact (order, package) key
func (m *MemoryStore) GetOrder(_ context.Context, orderNumber, packageNo string) (*models.OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if o, ok := m.orders[orderNumber]; ok && o.PackageNo == packageNo {
		out := *o
		return &out, nil
	}
	return nil, ErrNotFound
}

// GetOrderByNumber fetches an order by number alone
func (m *MemoryStore) GetOrderByNumber(_ context.Context, orderNumber string) (*models.OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if o, ok := m.orders[orderNumber]; ok {
		out := *o
		return &out, nil
	}
	return nil, ErrNotFound
}

// ListOrders returns every order
func (m *MemoryStore) ListOrders(_ context.Context) ([]*models.OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.OrderRecord, 0, len(m.orders))
	for _, o := range m.orders {
		copied := *o
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, nil
}

// AppendHistory appends settlement rows to the log
func (m *MemoryStore) AppendHistory(_ context.Context, rows []*models.PaymentHistoryRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rows {
		stored := *r
		stored.ID = m.allocID()
		m.history = append(m.history, &stored)
	}
	return nil
}

// HistoryForKey returns every history row under an (order, package) key
func (m *MemoryStore) HistoryForKey(_ context.Context, orderNumber, packageNo string) ([]*models.PaymentHistoryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.PaymentHistoryRow
	for _, r := range m.history {
		if r.OrderNumber == orderNumber && r.PackageNo == packageNo {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

// HistoryForOrder returns every history row under an order number
func (m *MemoryStore) HistoryForOrder(_ context.Context, orderNumber string) ([]*models.PaymentHistoryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.PaymentHistoryRow
	for _, r := range m.history {
		if r.OrderNumber == orderNumber {
			copied := *r
			out = append(out, &copied)
		}
	}
	return out, nil
}

// AllHistory returns the complete history log
func (m *MemoryStore) AllHistory(_ context.Context) ([]*models.PaymentHistoryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.PaymentHistoryRow, 0, len(m.history))
	for _, r := range m.history {
		copied := *r
		out = append(out, &copied)
	}
	return out, nil
}

// SaveUnmatched upserts a parked settlement keyed by payment reference.
// The MySQL schema has a unique index over payment_reference where the
// empty string is one value like any other, so the in-memory variant
// upserts on it the same way.
func (m *MemoryStore) SaveUnmatched(_ context.Context, row *models.UnmatchedPaymentRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *row
	if id, ok := m.byRef[row.PaymentReference]; ok {
		stored.ID = id
		m.unmatched[id] = &stored
		return nil
	}
	stored.ID = m.allocID()
	m.unmatched[stored.ID] = &stored
	m.byRef[stored.PaymentReference] = stored.ID
	return nil
}

// ListUnmatched returns every parked settlement
func (m *MemoryStore) ListUnmatched(_ context.Context) ([]*models.UnmatchedPaymentRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.UnmatchedPaymentRow, 0, len(m.unmatched))
	for _, r := range m.unmatched {
		copied := *r
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UnmatchedForOrder returns the parked settlements for one order number
func (m *MemoryStore) UnmatchedForOrder(_ context.Context, orderNumber string) ([]*models.UnmatchedPaymentRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.UnmatchedPaymentRow
	for _, r := range m.unmatched {
		if r.OrderNumber == orderNumber {
			copied := *r
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteUnmatched removes a parked settlement
func (m *MemoryStore) DeleteUnmatched(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.unmatched[id]; ok {
		delete(m.byRef, r.PaymentReference)
		delete(m.unmatched, id)
	}
	return nil
}

// RecordUpload persists an upload log entry
func (m *MemoryStore) RecordUpload(_ context.Context, entry *models.UploadLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *entry
	m.uploads = append(m.uploads, &copied)
	return nil
}

// ListUploads returns the most recent upload log entries, newest first
func (m *MemoryStore) ListUploads(_ context.Context, limit int) ([]*models.UploadLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.UploadLogEntry, 0, len(m.uploads))
	for i := len(m.uploads) - 1; i >= 0; i-- {
		copied := *m.uploads[i]
		out = append(out, &copied)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// FindUploadByHash returns the latest completed upload with the given hash
func (m *MemoryStore) FindUploadByHash(_ context.Context, hash string, uploadType models.UploadType) (*models.UploadLogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.uploads) - 1; i >= 0; i-- {
		u := m.uploads[i]
		if u.FileHash == hash && u.UploadType == uploadType && u.Status == models.UploadStatusCompleted {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// Reset wipes everything
func (m *MemoryStore) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.orders = make(map[string]*models.OrderRecord)
	m.history = nil
	m.unmatched = make(map[uint]*models.UnmatchedPaymentRow)
	m.byRef = make(map[string]uint)
	m.uploads = nil
	return nil
}
