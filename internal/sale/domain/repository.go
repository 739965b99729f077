package domain

import (
	"context"
	"errors"

	orderdomain "github.com/bolibana/boutique/internal/order/domain"
	"gorm.io/gorm"
)

type Repository interface {
	FindOrder(ctx context.Context, db *gorm.DB, orderID int64) (*orderdomain.Order, error)
	FindRecordByOrder(ctx context.Context, db *gorm.DB, orderID int64) (*OrderSyncRecord, error)
	SaveRecord(ctx context.Context, db *gorm.DB, record *OrderSyncRecord) error
}

var ErrNotFound = errors.New("not_found")
