package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bolibana/boutique/internal/b2b"
	catalogdomain "github.com/bolibana/boutique/internal/catalog/domain"
	catalogrepository "github.com/bolibana/boutique/internal/catalog/repository"
	"github.com/bolibana/boutique/internal/clock"
	"github.com/bolibana/boutique/internal/config"
	orderdomain "github.com/bolibana/boutique/internal/order/domain"
	"github.com/bolibana/boutique/internal/sale/domain"
	salerepository "github.com/bolibana/boutique/internal/sale/repository"
	vaultdomain "github.com/bolibana/boutique/internal/vault/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type staticVault struct{ key string }

func (v *staticVault) SetKey(context.Context, string, string) error { return nil }
func (v *staticVault) GetActiveKey(context.Context) string          { return v.key }
func (v *staticVault) RecordUsage(context.Context) error            { return nil }
func (v *staticVault) List(context.Context) ([]vaultdomain.Response, error) {
	return nil, nil
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(
		&catalogdomain.Product{},
		&catalogdomain.ProductMapping{},
		&orderdomain.Order{},
		&orderdomain.OrderItem{},
		&domain.OrderSyncRecord{},
	)
	assert.NoError(t, err)
	return db
}

// saleUpstream records every sale request it receives and answers with a
// fixed upstream sale id, or a 500 when failing is set.
type saleUpstream struct {
	srv      *httptest.Server
	requests []recordedRequest
	failing  bool
}

type recordedRequest struct {
	method  string
	path    string
	payload b2b.SalePayload
}

func newSaleUpstream(t *testing.T) *saleUpstream {
	t.Helper()
	u := &saleUpstream{}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload b2b.SalePayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		u.requests = append(u.requests, recordedRequest{method: r.Method, path: r.URL.Path, payload: payload})
		if u.failing {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"detail":"boom"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":9001,"order_number":%q,"status":"recorded"}`, payload.OrderNumber)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func newTestUploader(t *testing.T, db *gorm.DB, baseURL string) domain.Uploader {
	t.Helper()
	node, err := snowflake.NewNode(1)
	assert.NoError(t, err)

	client := b2b.New(config.Config{
		B2BAPIURL:  baseURL,
		APITimeout: 2 * time.Second,
	}, &staticVault{key: "test-key"}, zap.NewNop())

	return New(Params{
		DB:      db,
		Log:     zap.NewNop(),
		Repo:    salerepository.Provide(),
		Catalog: catalogrepository.Provide(),
		Client:  client,
		Clock:   clock.NewFakeClock(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)),
		GenID:   node,
		Cfg:     config.Config{B2BSiteID: 3},
	})
}

func seedOrder(t *testing.T, db *gorm.DB, productIDs ...int64) *orderdomain.Order {
	t.Helper()
	order := &orderdomain.Order{
		ID:            5001,
		Number:        "CMD-2026-0042",
		CustomerEmail: "client@example.ml",
		Status:        orderdomain.StatusPaid,
		Total:         decimal.NewFromInt(3500),
	}
	for i, productID := range productIDs {
		order.Items = append(order.Items, orderdomain.OrderItem{
			ID:        6001 + int64(i),
			ProductID: productID,
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(1750),
		})
	}
	assert.NoError(t, db.Create(order).Error)
	return order
}

func seedMapping(t *testing.T, db *gorm.DB, productID, upstreamID int64) {
	t.Helper()
	assert.NoError(t, db.Create(&catalogdomain.ProductMapping{
		ID:         productID * 10,
		ProductID:  productID,
		UpstreamID: upstreamID,
		SyncStatus: catalogdomain.SyncSynced,
	}).Error)
}

func loadRecord(t *testing.T, db *gorm.DB, orderID int64) *domain.OrderSyncRecord {
	t.Helper()
	var record domain.OrderSyncRecord
	assert.NoError(t, db.Where("order_id = ?", orderID).First(&record).Error)
	return &record
}

func TestUpload_CreatesThenUpdates(t *testing.T) {
	db := openTestDB(t)
	upstream := newSaleUpstream(t)
	seedMapping(t, db, 101, 7101)
	seedMapping(t, db, 102, 7102)
	order := seedOrder(t, db, 101, 102)
	uploader := newTestUploader(t, db, upstream.srv.URL)

	report := uploader.Upload(context.Background(), order.ID)
	assert.True(t, report.Success)
	assert.Empty(t, report.Error)
	assert.NotNil(t, report.UpstreamSaleID)
	assert.Equal(t, int64(9001), *report.UpstreamSaleID)

	assert.Len(t, upstream.requests, 1)
	assert.Equal(t, http.MethodPost, upstream.requests[0].method)
	assert.Equal(t, "/b2c/sales/", upstream.requests[0].path)
	assert.Equal(t, "CMD-2026-0042", upstream.requests[0].payload.OrderNumber)
	assert.Len(t, upstream.requests[0].payload.Items, 2)
	assert.Equal(t, int64(7101), upstream.requests[0].payload.Items[0].ProductUpstreamID)
	assert.Equal(t, int64(3), upstream.requests[0].payload.Items[0].SiteID)
	assert.Equal(t, int64(3), upstream.requests[0].payload.Items[1].SiteID)

	record := loadRecord(t, db, order.ID)
	assert.Equal(t, domain.UploadSynced, record.Status)
	assert.NotNil(t, record.SyncedAt)

	// Re-uploading an already reported order updates it in place upstream.
	report = uploader.Upload(context.Background(), order.ID)
	assert.True(t, report.Success)
	assert.Len(t, upstream.requests, 2)
	assert.Equal(t, http.MethodPut, upstream.requests[1].method)
	assert.Equal(t, "/b2c/sales/9001/", upstream.requests[1].path)

	var count int64
	assert.NoError(t, db.Model(&domain.OrderSyncRecord{}).Where("order_id = ?", order.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpload_SkipsUnmappedLines(t *testing.T) {
	db := openTestDB(t)
	upstream := newSaleUpstream(t)
	seedMapping(t, db, 101, 7101)
	order := seedOrder(t, db, 101, 999)
	uploader := newTestUploader(t, db, upstream.srv.URL)

	report := uploader.Upload(context.Background(), order.ID)

	assert.True(t, report.Success)
	assert.Equal(t, []int64{999}, report.SkippedItems)
	assert.Len(t, upstream.requests, 1)
	assert.Len(t, upstream.requests[0].payload.Items, 1)
	assert.Equal(t, int64(7101), upstream.requests[0].payload.Items[0].ProductUpstreamID)
}

func TestUpload_NoMappedItemsFailsWithoutCalling(t *testing.T) {
	db := openTestDB(t)
	upstream := newSaleUpstream(t)
	order := seedOrder(t, db, 999)
	uploader := newTestUploader(t, db, upstream.srv.URL)

	report := uploader.Upload(context.Background(), order.ID)

	assert.False(t, report.Success)
	assert.NotEmpty(t, report.Error)
	assert.Empty(t, upstream.requests)

	record := loadRecord(t, db, order.ID)
	assert.Equal(t, domain.UploadError, record.Status)
	assert.NotNil(t, record.ErrorMessage)
}

func TestUpload_UnknownOrder(t *testing.T) {
	db := openTestDB(t)
	upstream := newSaleUpstream(t)
	uploader := newTestUploader(t, db, upstream.srv.URL)

	report := uploader.Upload(context.Background(), 12345)

	assert.False(t, report.Success)
	assert.NotEmpty(t, report.Error)
	assert.Empty(t, upstream.requests)
}

func TestUpload_UpstreamFailurePreservesSaleID(t *testing.T) {
	db := openTestDB(t)
	upstream := newSaleUpstream(t)
	seedMapping(t, db, 101, 7101)
	order := seedOrder(t, db, 101)
	uploader := newTestUploader(t, db, upstream.srv.URL)

	report := uploader.Upload(context.Background(), order.ID)
	assert.True(t, report.Success)

	upstream.failing = true
	report = uploader.Upload(context.Background(), order.ID)
	assert.False(t, report.Success)
	assert.NotEmpty(t, report.Error)

	// The failed retry keeps the previously assigned upstream id on record.
	record := loadRecord(t, db, order.ID)
	assert.Equal(t, domain.UploadError, record.Status)
	assert.NotNil(t, record.UpstreamSaleID)
	assert.Equal(t, int64(9001), *record.UpstreamSaleID)

	upstream.failing = false
	report = uploader.Upload(context.Background(), order.ID)
	assert.True(t, report.Success)
	record = loadRecord(t, db, order.ID)
	assert.Equal(t, domain.UploadSynced, record.Status)
}
