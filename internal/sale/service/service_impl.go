package service

import (
	"context"
	"errors"
	"time"

	"github.com/bolibana/boutique/internal/b2b"
	catalogdomain "github.com/bolibana/boutique/internal/catalog/domain"
	"github.com/bolibana/boutique/internal/clock"
	"github.com/bolibana/boutique/internal/config"
	"github.com/bolibana/boutique/internal/sale/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Catalog catalogdomain.Repository
	Client  *b2b.Client
	Clock   clock.Clock
	GenID   *snowflake.Node
	Cfg     config.Config
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	catalog catalogdomain.Repository
	client  *b2b.Client
	clock   clock.Clock
	genID   *snowflake.Node
	siteID  int64
}

func New(p Params) domain.Uploader {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("sale"),
		repo:    p.Repo,
		catalog: p.Catalog,
		client:  p.Client,
		clock:   p.Clock,
		genID:   p.GenID,
		siteID:  p.Cfg.B2BSiteID,
	}
}

func (s *Service) Upload(ctx context.Context, orderID int64) *domain.Report {
	report := &domain.Report{OrderID: orderID}

	order, err := s.repo.FindOrder(ctx, s.db, orderID)
	if err != nil {
		return s.fail(ctx, report, err)
	}

	items := make([]b2b.SaleItem, 0, len(order.Items))
	for _, line := range order.Items {
		mapping, err := s.catalog.FindProductMappingByProduct(ctx, s.db, line.ProductID)
		if err != nil {
			return s.fail(ctx, report, err)
		}
		if mapping == nil {
			// Local-only product, the upstream has no id for it.
			s.log.Warn("order line has no upstream mapping, skipping",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", line.ProductID))
			report.SkippedItems = append(report.SkippedItems, line.ProductID)
			continue
		}
		items = append(items, b2b.SaleItem{
			ProductUpstreamID: mapping.UpstreamID,
			Quantity:          line.Quantity,
			Price:             line.UnitPrice,
			SiteID:            s.siteID,
		})
	}
	if len(items) == 0 {
		return s.fail(ctx, report, errNoMappedItems)
	}

	payload := b2b.SalePayload{
		OrderNumber:   order.Number,
		Items:         items,
		Total:         order.Total,
		CustomerEmail: order.CustomerEmail,
		CreatedAt:     order.CreatedAt.UTC().Format(time.RFC3339),
	}

	existing, err := s.repo.FindRecordByOrder(ctx, s.db, orderID)
	if err != nil {
		return s.fail(ctx, report, err)
	}

	var sale *b2b.SaleRecord
	if existing != nil && existing.Status == domain.UploadSynced && existing.UpstreamSaleID != nil {
		sale, err = s.client.UpdateSale(ctx, *existing.UpstreamSaleID, payload)
	} else {
		sale, err = s.client.CreateSale(ctx, payload)
	}
	if err != nil {
		s.log.Error("sale upload failed",
			zap.Int64("order_id", orderID),
			zap.String("order_number", order.Number),
			zap.Error(err))
		return s.fail(ctx, report, err)
	}

	now := s.clock.Now()
	record := &domain.OrderSyncRecord{
		ID:             s.genID.Generate().Int64(),
		OrderID:        orderID,
		UpstreamSaleID: &sale.ID,
		Status:         domain.UploadSynced,
		SyncedAt:       &now,
	}
	if err := s.repo.SaveRecord(ctx, s.db, record); err != nil {
		s.log.Error("sale record save failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
	}

	report.Success = true
	report.UpstreamSaleID = &sale.ID
	s.log.Info("sale uploaded",
		zap.Int64("order_id", orderID),
		zap.Int64("upstream_sale_id", sale.ID),
		zap.Int("items", len(items)),
		zap.Int("skipped", len(report.SkippedItems)))
	return report
}

// fail records the failed attempt and hands back a report instead of an
// error, so checkout flows stay unaffected.
func (s *Service) fail(ctx context.Context, report *domain.Report, cause error) *domain.Report {
	report.Error = cause.Error()

	message := cause.Error()
	record := &domain.OrderSyncRecord{
		ID:           s.genID.Generate().Int64(),
		OrderID:      report.OrderID,
		Status:       domain.UploadError,
		ErrorMessage: &message,
	}
	if existing, err := s.repo.FindRecordByOrder(ctx, s.db, report.OrderID); err == nil && existing != nil {
		record.UpstreamSaleID = existing.UpstreamSaleID
	}
	if err := s.repo.SaveRecord(ctx, s.db, record); err != nil {
		s.log.Warn("sale failure record save failed",
			zap.Int64("order_id", report.OrderID),
			zap.Error(err))
	}
	return report
}

var errNoMappedItems = errors.New("order has no upstream-mapped items")
