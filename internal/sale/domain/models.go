package domain

import "time"

// Upload states of one order's upstream report.
const (
	UploadSynced = "synced"
	UploadError  = "error"
)

// OrderSyncRecord tracks whether a local order has been reported upstream.
// One record per order; a retry overwrites it.
type OrderSyncRecord struct {
	ID             int64      `json:"id" gorm:"primaryKey"`
	OrderID        int64      `json:"order_id" gorm:"column:order_id;not null;uniqueIndex:ux_order_sync_order"`
	UpstreamSaleID *int64     `json:"upstream_sale_id,omitempty" gorm:"column:upstream_sale_id"`
	Status         string     `json:"status" gorm:"type:text;not null"`
	ErrorMessage   *string    `json:"error_message,omitempty" gorm:"column:error_message;type:text"`
	SyncedAt       *time.Time `json:"synced_at,omitempty" gorm:"column:synced_at"`
	CreatedAt      time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderSyncRecord) TableName() string { return "order_sync_records" }

// Report is the caller-facing outcome of one upload attempt. Uploads never
// fail the checkout that triggered them, so failures surface here instead of
// as returned errors.
type Report struct {
	OrderID        int64   `json:"order_id"`
	Success        bool    `json:"success"`
	UpstreamSaleID *int64  `json:"upstream_sale_id,omitempty"`
	SkippedItems   []int64 `json:"skipped_items,omitempty"`
	Error          string  `json:"error,omitempty"`
}
