package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Category is a node of the consumer-facing catalog tree. Categories are
// created and updated only by the reconciler and never deleted by it.
type Category struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"type:text;not null"`
	Slug        string    `json:"slug" gorm:"type:text;not null;uniqueIndex:ux_categories_slug"`
	Description string    `json:"description" gorm:"type:text"`
	ParentID    *int64    `json:"parent_id,omitempty" gorm:"column:parent_id;index"`
	SortOrder   int       `json:"order" gorm:"column:sort_order;not null;default:0"`
	Level       int       `json:"level" gorm:"not null;default:0"`
	RayonType   string    `json:"rayon_type" gorm:"column:rayon_type;type:text"`
	ImagePath   string    `json:"image,omitempty" gorm:"column:image_path;type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Category) TableName() string { return "categories" }

// CategoryMapping ties a local category to its upstream counterpart. Its
// existence is what makes a category a "B2B category".
type CategoryMapping struct {
	ID               int64     `json:"id" gorm:"primaryKey"`
	CategoryID       int64     `json:"category_id" gorm:"column:category_id;not null;uniqueIndex:ux_category_mappings_category"`
	UpstreamID       int64     `json:"upstream_id" gorm:"column:upstream_id;not null;uniqueIndex:ux_category_mappings_upstream"`
	UpstreamParentID *int64    `json:"upstream_parent_id,omitempty" gorm:"column:upstream_parent_id"`
	LastSyncedAt     time.Time `json:"last_synced_at" gorm:"column:last_synced_at;not null"`
	CreatedAt        time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (CategoryMapping) TableName() string { return "category_mappings" }

// SyncStatus tracks the reconciliation state of a mapped product.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncError   SyncStatus = "error"
)

type Product struct {
	ID             int64             `json:"id" gorm:"primaryKey"`
	Title          string            `json:"title" gorm:"type:text;not null"`
	Slug           string            `json:"slug" gorm:"type:text;not null;uniqueIndex:ux_products_slug"`
	Description    string            `json:"description" gorm:"type:text"`
	Price          decimal.Decimal   `json:"price" gorm:"type:decimal(16,2);not null"`
	DiscountPrice  *decimal.Decimal  `json:"discount_price,omitempty" gorm:"column:discount_price;type:decimal(16,2)"`
	CategoryID     int64             `json:"category_id" gorm:"column:category_id;not null;index"`
	Brand          string            `json:"brand" gorm:"type:text"`
	SKU            string            `json:"sku" gorm:"column:sku;type:text;index"`
	Stock          int               `json:"stock" gorm:"not null;default:0"`
	IsAvailable    bool              `json:"is_available" gorm:"column:is_available;not null;default:true"`
	IsSalam        bool              `json:"is_salam" gorm:"column:is_salam;not null;default:false"`
	Weight         *decimal.Decimal  `json:"weight,omitempty" gorm:"type:decimal(12,3)"`
	Dimensions     *string           `json:"dimensions,omitempty" gorm:"type:text"`
	ImagePath      string            `json:"image,omitempty" gorm:"column:image_path;type:text"`
	ImageURLs      datatypes.JSONMap `json:"image_urls,omitempty" gorm:"column:image_urls;type:jsonb"`
	Specifications datatypes.JSONMap `json:"specifications,omitempty" gorm:"type:jsonb"`
	CreatedAt      time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }

// ProductMapping ties a local product to its upstream counterpart and carries
// the per-product sync status.
type ProductMapping struct {
	ID                 int64      `json:"id" gorm:"primaryKey"`
	ProductID          int64      `json:"product_id" gorm:"column:product_id;not null;uniqueIndex:ux_product_mappings_product"`
	UpstreamID         int64      `json:"upstream_id" gorm:"column:upstream_id;not null;uniqueIndex:ux_product_mappings_upstream"`
	UpstreamSKU        string     `json:"upstream_sku" gorm:"column:upstream_sku;type:text"`
	UpstreamCategoryID *int64     `json:"upstream_category_id,omitempty" gorm:"column:upstream_category_id"`
	SyncStatus         SyncStatus `json:"sync_status" gorm:"column:sync_status;type:text;not null;default:'pending'"`
	SyncError          *string    `json:"sync_error,omitempty" gorm:"column:sync_error;type:text"`
	LastSyncedAt       *time.Time `json:"last_synced_at,omitempty" gorm:"column:last_synced_at"`
	CreatedAt          time.Time  `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time  `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProductMapping) TableName() string { return "product_mappings" }

// ProductImageAsset is one stored image file attached to a product.
// SortOrder 0 is the primary image, 1..N the gallery.
type ProductImageAsset struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	ProductID   int64     `json:"product_id" gorm:"column:product_id;not null;uniqueIndex:ux_product_images_product_order,priority:1"`
	SortOrder   int       `json:"order" gorm:"column:sort_order;not null;uniqueIndex:ux_product_images_product_order,priority:2"`
	FilePath    string    `json:"file_path" gorm:"column:file_path;type:text;not null"`
	ContentType string    `json:"content_type" gorm:"column:content_type;type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ProductImageAsset) TableName() string { return "product_image_assets" }

// SyncCounts backs the operator status endpoint.
type SyncCounts struct {
	TotalProducts   int64 `json:"total_products"`
	SyncedProducts  int64 `json:"synced_products"`
	PendingProducts int64 `json:"pending_products"`
	ErrorProducts   int64 `json:"error_products"`
	TotalCategories int64 `json:"total_categories"`
}
