package images

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"io"
	"net/http"
	"strings"
	"time"

	// Register the decoders the upstream is known to serve.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	catalogdomain "github.com/bolibana/boutique/internal/catalog/domain"
	"github.com/bolibana/boutique/internal/clock"
	"github.com/bolibana/boutique/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	downloadTimeout = 30 * time.Second
	jpegQuality     = 85
	maxImageBytes   = 20 << 20
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Repo  catalogdomain.Repository
	Clock clock.Clock
}

// Pipeline downloads, normalizes and attaches remote images to products.
// It never propagates failures: a bad image costs the product one asset, not
// its sync.
type Pipeline struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       catalogdomain.Repository
	store      *Store
	httpClient *http.Client
	clock      clock.Clock
}

func New(p Params) *Pipeline {
	return &Pipeline{
		db:         p.DB,
		log:        p.Log.Named("images.pipeline"),
		repo:       p.Repo,
		store:      NewStore(p.Cfg.MediaRoot),
		httpClient: &http.Client{Timeout: downloadTimeout},
		clock:      p.Clock,
	}
}

// Attach processes urls in order: the first becomes the primary image, the
// rest the gallery. Existing assets are only overwritten when the product was
// created in this run. The product's ImagePath and ImageURLs fields are
// updated in place; persisting them is the caller's business.
func (p *Pipeline) Attach(ctx context.Context, product *catalogdomain.Product, urls []string, newlyCreated bool) {
	for index, rawURL := range urls {
		if err := p.attachOne(ctx, product, rawURL, index, newlyCreated); err != nil {
			p.log.Warn("image skipped",
				zap.Int64("product_id", product.ID),
				zap.String("url", rawURL),
				zap.Error(err),
			)
		}
	}
	p.refreshImageURLs(ctx, product)
}

func (p *Pipeline) attachOne(ctx context.Context, product *catalogdomain.Product, rawURL string, index int, newlyCreated bool) error {
	existing, err := p.repo.FindImageAsset(ctx, p.db, product.ID, index)
	if err != nil {
		return err
	}
	if existing != nil && !newlyCreated {
		// Frozen: re-syncs never clobber an asset that is already in place.
		return nil
	}

	data, contentType, err := p.download(ctx, rawURL)
	if err != nil {
		return err
	}

	normalized, err := normalizeToJPEG(data)
	if err != nil {
		// Decode or re-encode failure degrades to storing the raw bytes.
		p.log.Debug("image stored unmodified",
			zap.Int64("product_id", product.ID),
			zap.String("url", rawURL),
			zap.Error(err),
		)
		normalized = data
	}

	slugPart := product.Slug
	if slugPart == "" {
		slugPart = "product"
	}
	ext := extensionFor(contentType)
	filename := fmt.Sprintf("b2b_%d_%s.%s", product.ID, slugPart, ext)
	if index > 0 {
		filename = fmt.Sprintf("b2b_%d_%s_%d.%s", product.ID, slugPart, index, ext)
	}

	relPath, err := p.store.Save(slugPart, filename, p.clock.Now(), normalized)
	if err != nil {
		return err
	}

	asset := &catalogdomain.ProductImageAsset{
		ProductID:   product.ID,
		SortOrder:   index,
		FilePath:    relPath,
		ContentType: contentType,
	}
	if err := p.repo.UpsertImageAsset(ctx, p.db, asset); err != nil {
		return err
	}

	if index == 0 {
		if product.ImagePath == "" || newlyCreated {
			product.ImagePath = relPath
		}
	}
	return nil
}

func (p *Pipeline) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image fetch returned %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("not an image: %q", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// refreshImageURLs recomputes the product's image_urls map from the stored
// assets so it always reflects the on-disk state.
func (p *Pipeline) refreshImageURLs(ctx context.Context, product *catalogdomain.Product) {
	assets, err := p.repo.ListImageAssets(ctx, p.db, product.ID)
	if err != nil {
		p.log.Warn("failed to list image assets", zap.Int64("product_id", product.ID), zap.Error(err))
		return
	}
	urls := datatypes.JSONMap{}
	for _, asset := range assets {
		if asset.SortOrder == 0 {
			urls["primary"] = asset.FilePath
			continue
		}
		urls[fmt.Sprintf("gallery_%d", asset.SortOrder)] = asset.FilePath
	}
	product.ImageURLs = urls
}

// normalizeToJPEG re-encodes any decodable image as an opaque JPEG,
// compositing transparent pixels over white.
func normalizeToJPEG(data []byte) ([]byte, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := decoded.Bounds()
	flattened := image.NewRGBA(bounds)
	draw.Draw(flattened, bounds, image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flattened, bounds, decoded, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flattened, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "webp"):
		return "webp"
	case strings.Contains(contentType, "gif"):
		return "gif"
	default:
		return "jpg"
	}
}

var Module = fx.Module("images.pipeline",
	fx.Provide(New),
)
