package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bolibana/boutique/internal/b2b"
	catalogdomain "github.com/bolibana/boutique/internal/catalog/domain"
	"github.com/bolibana/boutique/internal/clock"
	"github.com/bolibana/boutique/internal/images"
	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ReconcilerParams struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Repo     catalogdomain.Repository
	Client   *b2b.Client
	Pipeline *images.Pipeline
	Clock    clock.Clock
	GenID    *snowflake.Node
	Cfg      Config
}

// Reconciler pulls the upstream catalog and converges the local one onto it.
// Both entry points are additive: local rows are created and updated but never
// deleted, and a record that fails is skipped without aborting the run.
type Reconciler struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     catalogdomain.Repository
	client   *b2b.Client
	pipeline *images.Pipeline
	clock    clock.Clock
	genID    *snowflake.Node
	cfg      Config
}

func NewReconciler(p ReconcilerParams) *Reconciler {
	return &Reconciler{
		db:       p.DB,
		log:      p.Log.Named("reconciler"),
		repo:     p.Repo,
		client:   p.Client,
		pipeline: p.Pipeline,
		clock:    p.Clock,
		genID:    p.GenID,
		cfg:      p.Cfg.withDefaults(),
	}
}

// SyncCategories converges local categories onto the upstream tree in two
// passes: first every node is upserted flat, then parent links are resolved.
// Linking runs second so ordering inside the upstream payload never matters.
func (r *Reconciler) SyncCategories(ctx context.Context) (*Stats, error) {
	records, err := b2b.WithRetry(ctx, func(ctx context.Context) ([]b2b.CategoryRecord, error) {
		return r.client.ListCategories(ctx)
	})
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(records)}

	localByUpstream := make(map[int64]int64, len(records))
	for i := range records {
		rec := &records[i]
		localID, created, err := r.upsertCategory(ctx, rec)
		if err != nil {
			r.log.Warn("category upsert failed",
				zap.Int64("upstream_id", rec.ID),
				zap.Error(err))
			stats.addError(rec.ID, err)
			continue
		}
		localByUpstream[rec.ID] = localID
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	for i := range records {
		rec := &records[i]
		localID, ok := localByUpstream[rec.ID]
		if !ok {
			continue
		}
		if err := r.linkCategoryParent(ctx, rec, localID, localByUpstream); err != nil {
			r.log.Warn("category parent link failed",
				zap.Int64("upstream_id", rec.ID),
				zap.Error(err))
			stats.addError(rec.ID, err)
		}
	}

	return stats, nil
}

func (r *Reconciler) upsertCategory(ctx context.Context, rec *b2b.CategoryRecord) (int64, bool, error) {
	now := r.clock.Now()

	mapping, err := r.repo.FindCategoryMappingByUpstream(ctx, r.db, rec.ID)
	if err != nil {
		return 0, false, err
	}

	var category *catalogdomain.Category
	if mapping != nil {
		category, err = r.repo.FindCategoryByID(ctx, r.db, mapping.CategoryID)
		if err != nil {
			return 0, false, err
		}
	}
	created := category == nil
	if category == nil {
		category = &catalogdomain.Category{ID: r.genID.Generate().Int64()}
	}

	titleChanged := category.Name != rec.Name
	category.Name = rec.Name
	category.Description = rec.Description
	category.SortOrder = rec.Order
	category.Level = rec.Level
	category.RayonType = rec.RayonType
	if ref := rec.ImageRef(); ref != "" {
		category.ImagePath = ref
	}

	newSlug, err := r.resolveSlug(ctx, rec.Slug, rec.Name, rec.ID, category.Slug, created || titleChanged, r.repo.CategorySlugTaken, category.ID)
	if err != nil {
		return 0, false, err
	}
	category.Slug = newSlug

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.repo.SaveCategory(ctx, tx, category); err != nil {
			return err
		}
		next := &catalogdomain.CategoryMapping{
			CategoryID:       category.ID,
			UpstreamID:       rec.ID,
			UpstreamParentID: rec.ParentUpstreamID(),
			LastSyncedAt:     now,
		}
		if mapping != nil {
			next.ID = mapping.ID
		} else {
			next.ID = r.genID.Generate().Int64()
		}
		return r.repo.UpsertCategoryMapping(ctx, tx, next)
	})
	if err != nil {
		return 0, false, err
	}
	return category.ID, created, nil
}

func (r *Reconciler) linkCategoryParent(ctx context.Context, rec *b2b.CategoryRecord, localID int64, localByUpstream map[int64]int64) error {
	parentUpstream := rec.ParentUpstreamID()
	if parentUpstream == nil {
		return r.repo.SetCategoryParent(ctx, r.db, localID, nil)
	}

	parentLocal, ok := localByUpstream[*parentUpstream]
	if !ok {
		mapping, err := r.repo.FindCategoryMappingByUpstream(ctx, r.db, *parentUpstream)
		if err != nil {
			return err
		}
		if mapping == nil {
			r.log.Warn("parent category not present upstream, keeping node at root",
				zap.Int64("upstream_id", rec.ID),
				zap.Int64("upstream_parent_id", *parentUpstream))
			return r.repo.SetCategoryParent(ctx, r.db, localID, nil)
		}
		parentLocal = mapping.CategoryID
	}
	return r.repo.SetCategoryParent(ctx, r.db, localID, &parentLocal)
}

// SyncProducts walks the upstream listing page by page and converges each
// product independently. A failing record is marked errored and skipped.
func (r *Reconciler) SyncProducts(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	page := 1
	for {
		listing, err := b2b.WithRetry(ctx, func(ctx context.Context) (*b2b.ProductPage, error) {
			return r.client.ListProducts(ctx, r.cfg.SiteID, page, r.cfg.PageSize)
		})
		if err != nil {
			if stats.Total == 0 {
				return nil, err
			}
			// Later pages failing should not discard the work already done.
			r.log.Error("product page fetch failed, ending run early",
				zap.Int("page", page),
				zap.Error(err))
			stats.addError(0, err)
			return stats, nil
		}

		stats.Total += len(listing.Results)
		for i := range listing.Results {
			rec := &listing.Results[i]
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			created, err := r.syncProduct(ctx, rec)
			if err != nil {
				stats.addError(rec.ID, err)
				if errors.Is(err, catalogdomain.ErrMissingCategory) {
					stats.addSkip(fmt.Sprintf("product %d has no resolvable category", rec.ID))
				}
				continue
			}
			if created {
				stats.Created++
			} else {
				stats.Updated++
			}
		}

		if listing.Next == nil || len(listing.Results) == 0 {
			break
		}
		page++
	}

	return stats, nil
}

func (r *Reconciler) syncProduct(ctx context.Context, rec *b2b.ProductRecord) (bool, error) {
	if r.cfg.FetchDetail {
		detail, err := r.client.GetProduct(ctx, rec.ID)
		if err != nil {
			// The listing row alone is not enough to trust; skip this one.
			r.log.Warn("product detail fetch failed, skipping record",
				zap.Int64("upstream_id", rec.ID),
				zap.Error(err))
			r.markErrored(ctx, rec.ID, err)
			return false, err
		}
		merged, err := b2b.MergeDetail(rec, detail)
		if err != nil {
			r.markErrored(ctx, rec.ID, err)
			return false, err
		}
		rec = merged
	}

	categoryID, err := r.resolveCategory(ctx, rec)
	if err != nil {
		r.log.Warn("product category unresolved",
			zap.Int64("upstream_id", rec.ID),
			zap.Error(err))
		r.markErrored(ctx, rec.ID, err)
		return false, err
	}

	created, err := r.persistProduct(ctx, rec, categoryID)
	if err != nil {
		r.markErrored(ctx, rec.ID, err)
		return false, err
	}
	return created, nil
}

// resolveCategory maps the record's upstream category to a local one,
// materializing the category on demand when it has not been seen yet.
func (r *Reconciler) resolveCategory(ctx context.Context, rec *b2b.ProductRecord) (int64, error) {
	upstreamID := rec.CategoryUpstreamID()
	if upstreamID == nil {
		return 0, catalogdomain.ErrMissingCategory
	}

	mapping, err := r.repo.FindCategoryMappingByUpstream(ctx, r.db, *upstreamID)
	if err != nil {
		return 0, err
	}
	if mapping != nil {
		return mapping.CategoryID, nil
	}

	// Unknown category. Prefer the object embedded in the product payload,
	// otherwise ask the upstream for it.
	catRec := rec.CategoryObject()
	if catRec == nil {
		fetched, err := r.client.GetCategory(ctx, *upstreamID)
		if err != nil {
			return 0, fmt.Errorf("materialize category %d: %w", *upstreamID, err)
		}
		catRec = fetched
	}
	localID, _, err := r.upsertCategory(ctx, catRec)
	if err != nil {
		return 0, err
	}
	return localID, nil
}

func (r *Reconciler) persistProduct(ctx context.Context, rec *b2b.ProductRecord, categoryID int64) (bool, error) {
	now := r.clock.Now()

	mapping, err := r.repo.FindProductMappingByUpstream(ctx, r.db, rec.ID)
	if err != nil {
		return false, err
	}

	var product *catalogdomain.Product
	if mapping != nil {
		product, err = r.repo.FindProductByID(ctx, r.db, mapping.ProductID)
		if err != nil {
			return false, err
		}
	}
	created := product == nil
	if product == nil {
		product = &catalogdomain.Product{ID: r.genID.Generate().Int64()}
	}

	title := ResolveTitle(rec)
	titleChanged := product.Title != title
	price := ResolvePrice(rec)
	sku := ResolveSKU(rec)

	product.Title = title
	product.Description = rec.Description
	product.CategoryID = categoryID
	product.Brand = rec.Brand
	product.SKU = sku
	product.IsAvailable = ResolveAvailability(rec)
	if rec.Dimensions != "" {
		dims := rec.Dimensions
		product.Dimensions = &dims
	}

	if discount, err := ToNumber(rec.DiscountPrice, false); err == nil && discount.Sign() > 0 && discount.LessThan(price) {
		product.DiscountPrice = &discount
	} else {
		product.DiscountPrice = nil
	}

	specs := map[string]any{}
	for k, v := range rec.SpecificationsMap() {
		specs[k] = v
	}

	byWeight := IsByWeight(rec)
	if byWeight {
		facts := DeriveWeightFacts(rec, price)
		product.Price = facts.PricePerKg
		product.Stock = facts.Stock
		weightKg := facts.WeightKg
		product.Weight = &weightKg
		specs["available_weight_kg"] = facts.WeightKg.String()
		specs["available_weight_g"] = facts.WeightG.String()
		specs["price_per_kg"] = facts.PricePerKg.String()
		if facts.UnitIsGram {
			specs["price_per_g"] = facts.PricePerG.String()
		}
		// Weight items with no stock on hand are sold on order.
		product.IsSalam = boolOr(rec.IsSalam, facts.WeightKg.Sign() <= 0)
	} else {
		product.Price = price
		stock, err := ToNumber(firstNonNil(rec.Quantity, rec.Stock), true)
		if err == nil {
			product.Stock = int(stock.IntPart())
		} else {
			product.Stock = 0
		}
		if weight, err := ToNumber(rec.Weight, false); err == nil && weight.Sign() > 0 {
			product.Weight = &weight
		}
		product.IsSalam = boolOr(rec.IsSalam, false)
	}
	if len(specs) > 0 {
		product.Specifications = specs
	}

	newSlug, err := r.resolveSlug(ctx, rec.Slug, title, rec.ID, product.Slug, created || titleChanged, r.repo.ProductSlugTaken, product.ID)
	if err != nil {
		return false, err
	}
	product.Slug = newSlug

	nextMapping := &catalogdomain.ProductMapping{
		ProductID:          product.ID,
		UpstreamID:         rec.ID,
		UpstreamSKU:        sku,
		UpstreamCategoryID: rec.CategoryUpstreamID(),
		SyncStatus:         catalogdomain.SyncPending,
	}
	if mapping != nil {
		nextMapping.ID = mapping.ID
		nextMapping.LastSyncedAt = mapping.LastSyncedAt
	} else {
		nextMapping.ID = r.genID.Generate().Int64()
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.repo.SaveProduct(ctx, tx, product); err != nil {
			return err
		}
		return r.repo.UpsertProductMapping(ctx, tx, nextMapping)
	})
	if err != nil {
		return false, err
	}

	// Image work happens outside the transaction, it must never undo the
	// catalog write above.
	r.pipeline.Attach(ctx, product, rec.ImageSources(), created)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.repo.SaveProduct(ctx, tx, product); err != nil {
			return err
		}
		return r.repo.MarkProductSynced(ctx, tx, nextMapping.ID, now)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (r *Reconciler) markErrored(ctx context.Context, upstreamID int64, cause error) {
	mapping, err := r.repo.FindProductMappingByUpstream(ctx, r.db, upstreamID)
	if err != nil || mapping == nil {
		return
	}
	if err := r.repo.MarkProductErrored(ctx, r.db, mapping.ID, cause.Error(), r.clock.Now()); err != nil {
		r.log.Warn("could not record product sync error",
			zap.Int64("upstream_id", upstreamID),
			zap.Error(err))
	}
}

type slugTakenFunc func(ctx context.Context, db *gorm.DB, candidate string, excludeID int64) (bool, error)

// resolveSlug prefers the upstream slug when it is free, otherwise derives one
// from the title, disambiguating on collision with the upstream id and then a
// counter. An already-derived slug is kept as long as the title has not
// changed, so re-syncs do not churn public URLs.
func (r *Reconciler) resolveSlug(ctx context.Context, upstreamSlug, title string, upstreamID int64, current string, titleChanged bool, taken slugTakenFunc, excludeID int64) (string, error) {
	if trimmed := strings.TrimSpace(upstreamSlug); trimmed != "" {
		used, err := taken(ctx, r.db, trimmed, excludeID)
		if err != nil {
			return "", err
		}
		if !used {
			return trimmed, nil
		}
	}

	if current != "" && !titleChanged {
		return current, nil
	}

	base := slug.Make(title)
	if base == "" {
		base = "produit"
	}
	used, err := taken(ctx, r.db, base, excludeID)
	if err != nil {
		return "", err
	}
	if !used {
		return base, nil
	}
	candidate := fmt.Sprintf("%s-%d", base, upstreamID)
	for n := 2; ; n++ {
		used, err := taken(ctx, r.db, candidate, excludeID)
		if err != nil {
			return "", err
		}
		if !used {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d-%d", base, upstreamID, n)
	}
}

func boolOr(flag *bool, fallback bool) bool {
	if flag != nil {
		return *flag
	}
	return fallback
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
