package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"marketplace-finance-service/internal/models"
	"marketplace-finance-service/pkg/logger"
)

// Config holds the MySQL connection settings
type Config struct {
	User     string
	Password string
	Host     string
	Port     string
	Name     string
}

// ConfigFromEnv reads connection settings from FINANCE_DB_* environment
// variables, with local-development defaults.
func ConfigFromEnv() Config {
	return Config{
		User:     envOr("FINANCE_DB_USER", "root"),
		Password: envOr("FINANCE_DB_PASSWORD", ""),
		Host:     envOr("FINANCE_DB_HOST", "127.0.0.1"),
		Port:     envOr("FINANCE_DB_PORT", "3306"),
		Name:     envOr("FINANCE_DB_NAME", "seller_finance"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DSN renders the MySQL connection string
func (c Config) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Name)
}

// orderUpsertColumns are the columns an order re-import may overwrite.
// Financial columns are owned by reconciliation and never touched here.
var orderUpsertColumns = []string{
	"package_no", "barcode", "product_name", "quantity", "sale_total",
	"order_date", "delivered_at", "due_at", "expected_payout_at", "updated_at",
}

var unmatchedUpsertColumns = []string{
	"order_number", "package_no", "net_amount", "commission_amount",
	"discount_amount", "penalty_amount", "gross_amount", "paid_at",
	"row_count", "in_history",
}

// GormStore is the MySQL-backed Store implementation
type GormStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// Open connects to MySQL with a short retry loop; the database container
// often comes up a few seconds after the service during local development.
func Open(cfg Config) (*gorm.DB, error) {
	log := logger.GetGlobalLogger().WithComponent("store")

	var db *gorm.DB
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		db, err = gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err == nil {
			return db, nil
		}
		log.WithFields(logger.Fields{"attempt": attempt, "host": cfg.Host}).
			Warn("Database connection failed, retrying")
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("connecting to mysql at %s:%s: %w", cfg.Host, cfg.Port, err)
}

// NewGormStore wraps a gorm connection and migrates the finance tables
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(
		&models.OrderRecord{},
		&models.PaymentHistoryRow{},
		&models.UnmatchedPaymentRow{},
		&models.UploadLogEntry{},
	); err != nil {
		return nil, fmt.Errorf("migrating finance tables: %w", err)
	}
	return &GormStore{
		db:     db,
		logger: logger.GetGlobalLogger().WithComponent("store"),
	}, nil
}

// UpsertOrders writes orders keyed by order number in chunks, reporting how
// many rows were new and how many replaced existing records.
func (s *GormStore) UpsertOrders(ctx context.Context, orders []*models.OrderRecord) (int, int, error) {
	if len(orders) == 0 {
		return 0, 0, nil
	}

	numbers := make([]string, 0, len(orders))
	for _, o := range orders {
		numbers = append(numbers, o.OrderNumber)
	}

	var existing []string
	if err := s.db.WithContext(ctx).
		Model(&models.OrderRecord{}).
		Where("order_number IN ?", numbers).
		Pluck("order_number", &existing).Error; err != nil {
		return 0, 0, err
	}
	existingSet := make(map[string]bool, len(existing))
	for _, n := range existing {
		existingSet[n] = true
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_number"}},
			DoUpdates: clause.AssignmentColumns(orderUpsertColumns),
		}).
		CreateInBatches(orders, BatchSize).Error
	if err != nil {
		return 0, 0, err
	}

	updated := 0
	for _, o := range orders {
		if existingSet[o.OrderNumber] {
			updated++
		}
	}
	return len(orders) - updated, updated, nil
}

// SaveOrder persists all columns of a single order
func (s *GormStore) SaveOrder(ctx context.Context, order *models.OrderRecord) error {
	return s.db.WithContext(ctx).Save(order).Error
}

// GetOrder fetches an order by its exact (order, package) key
func (s *GormStore) GetOrder(ctx context.Context, orderNumber, packageNo string) (*models.OrderRecord, error) {
	var order models.OrderRecord
	err := s.db.WithContext(ctx).
		Where("order_number = ? AND package_no = ?", orderNumber, packageNo).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrderByNumber fetches an order by number alone, package-blind
func (s *GormStore) GetOrderByNumber(ctx context.Context, orderNumber string) (*models.OrderRecord, error) {
	var order models.OrderRecord
	err := s.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns every order
func (s *GormStore) ListOrders(ctx context.Context) ([]*models.OrderRecord, error) {
	var orders []*models.OrderRecord
	if err := s.db.WithContext(ctx).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// AppendHistory inserts settlement rows in chunks. History is append-only;
// there is no update path.
func (s *GormStore) AppendHistory(ctx context.Context, rows []*models.PaymentHistoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(rows, BatchSize).Error
}

// HistoryForKey returns every history row under an (order, package) key
func (s *GormStore) HistoryForKey(ctx context.Context, orderNumber, packageNo string) ([]*models.PaymentHistoryRow, error) {
	var rows []*models.PaymentHistoryRow
	err := s.db.WithContext(ctx).
		Where("order_number = ? AND package_no = ?", orderNumber, packageNo).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// HistoryForOrder returns every history row under an order number
func (s *GormStore) HistoryForOrder(ctx context.Context, orderNumber string) ([]*models.PaymentHistoryRow, error) {
	var rows []*models.PaymentHistoryRow
	err := s.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// AllHistory returns the complete history log
func (s *GormStore) AllHistory(ctx context.Context) ([]*models.PaymentHistoryRow, error) {
	var rows []*models.PaymentHistoryRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveUnmatched upserts a parked settlement keyed by payment reference, so
// re-importing the same file does not duplicate parked rows.
func (s *GormStore) SaveUnmatched(ctx context.Context, row *models.UnmatchedPaymentRow) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_reference"}},
			DoUpdates: clause.AssignmentColumns(unmatchedUpsertColumns),
		}).
		Create(row).Error
}

// ListUnmatched returns every parked settlement
func (s *GormStore) ListUnmatched(ctx context.Context) ([]*models.UnmatchedPaymentRow, error) {
	var rows []*models.UnmatchedPaymentRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UnmatchedForOrder returns the parked settlements for one order number
func (s *GormStore) UnmatchedForOrder(ctx context.Context, orderNumber string) ([]*models.UnmatchedPaymentRow, error) {
	var rows []*models.UnmatchedPaymentRow
	err := s.db.WithContext(ctx).
		Where("order_number = ?", orderNumber).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteUnmatched removes a parked settlement once it has been applied
func (s *GormStore) DeleteUnmatched(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Delete(&models.UnmatchedPaymentRow{}, id).Error
}

// RecordUpload persists an upload log entry
func (s *GormStore) RecordUpload(ctx context.Context, entry *models.UploadLogEntry) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

// ListUploads returns the most recent upload log entries
func (s *GormStore) ListUploads(ctx context.Context, limit int) ([]*models.UploadLogEntry, error) {
	var entries []*models.UploadLogEntry
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindUploadByHash returns the latest completed upload of the given type
// with the given content hash, or ErrNotFound.
func (s *GormStore) FindUploadByHash(ctx context.Context, hash string, uploadType models.UploadType) (*models.UploadLogEntry, error) {
	var entry models.UploadLogEntry
	err := s.db.WithContext(ctx).
		Where("file_hash = ? AND upload_type = ? AND status = ?", hash, uploadType, models.UploadStatusCompleted).
		Order("created_at DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Reset wipes every finance table
func (s *GormStore) Reset(ctx context.Context) error {
	s.logger.Warn("Resetting all finance data")
	for _, model := range []interface{}{
		&models.PaymentHistoryRow{},
		&models.UnmatchedPaymentRow{},
		&models.OrderRecord{},
		&models.UploadLogEntry{},
	} {
		if err := s.db.WithContext(ctx).Where("1 = 1").Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
