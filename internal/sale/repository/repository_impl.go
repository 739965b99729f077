package repository

import (
	"context"
	"errors"
	"time"

	orderdomain "github.com/bolibana/boutique/internal/order/domain"
	"github.com/bolibana/boutique/internal/sale/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOrder(ctx context.Context, db *gorm.DB, orderID int64) (*orderdomain.Order, error) {
	var o orderdomain.Order
	err := db.WithContext(ctx).Preload("Items").First(&o, "id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repo) FindRecordByOrder(ctx context.Context, db *gorm.DB, orderID int64) (*domain.OrderSyncRecord, error) {
	var rec domain.OrderSyncRecord
	err := db.WithContext(ctx).First(&rec, "order_id = ?", orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveRecord keys on order_id; a retry overwrites the previous outcome.
func (r *repo) SaveRecord(ctx context.Context, db *gorm.DB, record *domain.OrderSyncRecord) error {
	existing, err := r.FindRecordByOrder(ctx, db, record.OrderID)
	if err != nil {
		return err
	}
	if existing == nil {
		return db.WithContext(ctx).Create(record).Error
	}
	record.ID = existing.ID
	record.CreatedAt = existing.CreatedAt
	return db.WithContext(ctx).Exec(
		`UPDATE order_sync_records
		 SET upstream_sale_id = ?, status = ?, error_message = ?, synced_at = ?, updated_at = ?
		 WHERE id = ?`,
		record.UpstreamSaleID,
		record.Status,
		record.ErrorMessage,
		record.SyncedAt,
		time.Now().UTC(),
		record.ID,
	).Error
}
