package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bolibana/boutique/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindCategoryByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Category, error) {
	var c domain.Category
	err := db.WithContext(ctx).First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repo) FindProductByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) SaveCategory(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Save(category).Error
}

func (r *repo) SaveProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Save(product).Error
}

func (r *repo) SetCategoryParent(ctx context.Context, db *gorm.DB, categoryID int64, parentID *int64) error {
	return db.WithContext(ctx).Exec(
		`UPDATE categories SET parent_id = ?, updated_at = ? WHERE id = ?`,
		parentID,
		time.Now().UTC(),
		categoryID,
	).Error
}

func (r *repo) CategorySlugTaken(ctx context.Context, db *gorm.DB, slug string, excludeID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM categories WHERE slug = ? AND id <> ?`,
		slug,
		excludeID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) ProductSlugTaken(ctx context.Context, db *gorm.DB, slug string, excludeID int64) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM products WHERE slug = ? AND id <> ?`,
		slug,
		excludeID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindCategoryMappingByUpstream(ctx context.Context, db *gorm.DB, upstreamID int64) (*domain.CategoryMapping, error) {
	var m domain.CategoryMapping
	err := db.WithContext(ctx).First(&m, "upstream_id = ?", upstreamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repo) FindProductMappingByUpstream(ctx context.Context, db *gorm.DB, upstreamID int64) (*domain.ProductMapping, error) {
	var m domain.ProductMapping
	err := db.WithContext(ctx).First(&m, "upstream_id = ?", upstreamID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repo) FindProductMappingByProduct(ctx context.Context, db *gorm.DB, productID int64) (*domain.ProductMapping, error) {
	var m domain.ProductMapping
	err := db.WithContext(ctx).First(&m, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertCategoryMapping keys on upstream_id; repeated calls with the same
// inputs are a fixed point.
func (r *repo) UpsertCategoryMapping(ctx context.Context, db *gorm.DB, mapping *domain.CategoryMapping) error {
	existing, err := r.FindCategoryMappingByUpstream(ctx, db, mapping.UpstreamID)
	if err != nil {
		return err
	}
	if existing == nil {
		return db.WithContext(ctx).Create(mapping).Error
	}
	mapping.ID = existing.ID
	mapping.CreatedAt = existing.CreatedAt
	return db.WithContext(ctx).Exec(
		`UPDATE category_mappings
		 SET category_id = ?, upstream_parent_id = ?, last_synced_at = ?, updated_at = ?
		 WHERE id = ?`,
		mapping.CategoryID,
		mapping.UpstreamParentID,
		mapping.LastSyncedAt,
		time.Now().UTC(),
		mapping.ID,
	).Error
}

func (r *repo) UpsertProductMapping(ctx context.Context, db *gorm.DB, mapping *domain.ProductMapping) error {
	existing, err := r.FindProductMappingByUpstream(ctx, db, mapping.UpstreamID)
	if err != nil {
		return err
	}
	if existing == nil {
		return db.WithContext(ctx).Create(mapping).Error
	}
	mapping.ID = existing.ID
	mapping.CreatedAt = existing.CreatedAt
	return db.WithContext(ctx).Exec(
		`UPDATE product_mappings
		 SET product_id = ?, upstream_sku = ?, upstream_category_id = ?,
		     sync_status = ?, sync_error = ?, last_synced_at = ?, updated_at = ?
		 WHERE id = ?`,
		mapping.ProductID,
		mapping.UpstreamSKU,
		mapping.UpstreamCategoryID,
		mapping.SyncStatus,
		mapping.SyncError,
		mapping.LastSyncedAt,
		time.Now().UTC(),
		mapping.ID,
	).Error
}

func (r *repo) MarkProductSynced(ctx context.Context, db *gorm.DB, mappingID int64, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE product_mappings
		 SET sync_status = ?, sync_error = NULL, last_synced_at = ?, updated_at = ?
		 WHERE id = ?`,
		domain.SyncSynced,
		at,
		at,
		mappingID,
	).Error
}

func (r *repo) MarkProductErrored(ctx context.Context, db *gorm.DB, mappingID int64, message string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE product_mappings
		 SET sync_status = ?, sync_error = ?, updated_at = ?
		 WHERE id = ?`,
		domain.SyncError,
		message,
		at,
		mappingID,
	).Error
}

func (r *repo) FindImageAsset(ctx context.Context, db *gorm.DB, productID int64, order int) (*domain.ProductImageAsset, error) {
	var a domain.ProductImageAsset
	err := db.WithContext(ctx).First(&a, "product_id = ? AND sort_order = ?", productID, order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *repo) ListImageAssets(ctx context.Context, db *gorm.DB, productID int64) ([]domain.ProductImageAsset, error) {
	var assets []domain.ProductImageAsset
	err := db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("sort_order ASC").
		Find(&assets).Error
	if err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *repo) UpsertImageAsset(ctx context.Context, db *gorm.DB, asset *domain.ProductImageAsset) error {
	existing, err := r.FindImageAsset(ctx, db, asset.ProductID, asset.SortOrder)
	if err != nil {
		return err
	}
	if existing == nil {
		return db.WithContext(ctx).Create(asset).Error
	}
	asset.ID = existing.ID
	asset.CreatedAt = existing.CreatedAt
	return db.WithContext(ctx).Exec(
		`UPDATE product_image_assets
		 SET file_path = ?, content_type = ?, updated_at = ?
		 WHERE id = ?`,
		asset.FilePath,
		asset.ContentType,
		time.Now().UTC(),
		asset.ID,
	).Error
}

func (r *repo) Counts(ctx context.Context, db *gorm.DB) (domain.SyncCounts, error) {
	var counts domain.SyncCounts
	err := db.WithContext(ctx).Raw(
		`SELECT
			(SELECT COUNT(1) FROM product_mappings) AS total_products,
			(SELECT COUNT(1) FROM product_mappings WHERE sync_status = 'synced') AS synced_products,
			(SELECT COUNT(1) FROM product_mappings WHERE sync_status = 'pending') AS pending_products,
			(SELECT COUNT(1) FROM product_mappings WHERE sync_status = 'error') AS error_products,
			(SELECT COUNT(1) FROM category_mappings) AS total_categories`,
	).Scan(&counts).Error
	return counts, err
}

func (r *repo) RecentlySyncedProducts(ctx context.Context, db *gorm.DB, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 10
	}
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT p.*
		 FROM products p
		 JOIN product_mappings pm ON pm.product_id = p.id
		 WHERE pm.last_synced_at IS NOT NULL
		 ORDER BY pm.last_synced_at DESC
		 LIMIT ?`,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
