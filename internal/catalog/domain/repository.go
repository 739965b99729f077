package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository is the persistence surface shared by the reconciler, the image
// pipeline and the sale uploader. Every method accepts the *gorm.DB it should
// run against so callers can pass a transaction.
type Repository interface {
	FindCategoryByID(ctx context.Context, db *gorm.DB, id int64) (*Category, error)
	FindProductByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	SaveCategory(ctx context.Context, db *gorm.DB, category *Category) error
	SaveProduct(ctx context.Context, db *gorm.DB, product *Product) error
	SetCategoryParent(ctx context.Context, db *gorm.DB, categoryID int64, parentID *int64) error

	CategorySlugTaken(ctx context.Context, db *gorm.DB, slug string, excludeID int64) (bool, error)
	ProductSlugTaken(ctx context.Context, db *gorm.DB, slug string, excludeID int64) (bool, error)

	FindCategoryMappingByUpstream(ctx context.Context, db *gorm.DB, upstreamID int64) (*CategoryMapping, error)
	FindProductMappingByUpstream(ctx context.Context, db *gorm.DB, upstreamID int64) (*ProductMapping, error)
	FindProductMappingByProduct(ctx context.Context, db *gorm.DB, productID int64) (*ProductMapping, error)
	UpsertCategoryMapping(ctx context.Context, db *gorm.DB, mapping *CategoryMapping) error
	UpsertProductMapping(ctx context.Context, db *gorm.DB, mapping *ProductMapping) error
	MarkProductSynced(ctx context.Context, db *gorm.DB, mappingID int64, at time.Time) error
	MarkProductErrored(ctx context.Context, db *gorm.DB, mappingID int64, message string, at time.Time) error

	FindImageAsset(ctx context.Context, db *gorm.DB, productID int64, order int) (*ProductImageAsset, error)
	ListImageAssets(ctx context.Context, db *gorm.DB, productID int64) ([]ProductImageAsset, error)
	UpsertImageAsset(ctx context.Context, db *gorm.DB, asset *ProductImageAsset) error

	Counts(ctx context.Context, db *gorm.DB) (SyncCounts, error)
	RecentlySyncedProducts(ctx context.Context, db *gorm.DB, limit int) ([]Product, error)
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrMissingCategory = errors.New("missing_category")
)
