package b2b

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CategoryRecord is one upstream category. The parent may arrive as a flat
// parent_id or as a nested object.
type CategoryRecord struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	Description string          `json:"description"`
	Order       int             `json:"order"`
	Level       int             `json:"level"`
	RayonType   string          `json:"rayon_type"`
	ParentID    *int64          `json:"parent_id"`
	Parent      json.RawMessage `json:"parent"`
	Image       string          `json:"image"`
	ImageURL    string          `json:"image_url"`
}

// ParentUpstreamID resolves the parent reference from either representation.
func (c *CategoryRecord) ParentUpstreamID() *int64 {
	if c.ParentID != nil {
		return c.ParentID
	}
	if len(c.Parent) == 0 || string(c.Parent) == "null" {
		return nil
	}
	var nested struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(c.Parent, &nested); err == nil && nested.ID != 0 {
		return &nested.ID
	}
	var flat int64
	if err := json.Unmarshal(c.Parent, &flat); err == nil && flat != 0 {
		return &flat
	}
	return nil
}

// ImageRef returns the first usable image URL, if any.
func (c *CategoryRecord) ImageRef() string {
	if c.Image != "" {
		return c.Image
	}
	return c.ImageURL
}

// ProductRecord is one upstream product. Upstream payloads are heterogeneous:
// numeric fields may be numbers or strings with either decimal convention, and
// several aliases exist for the same logical field, so the loosely typed
// members are declared as any and resolved by the reconciler's normalizers.
type ProductRecord struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Brand       string `json:"brand"`
	Dimensions  string `json:"dimensions"`

	SellingPrice  any `json:"selling_price"`
	Price         any `json:"price"`
	UnitPrice     any `json:"unit_price"`
	DiscountPrice any `json:"discount_price"`

	CUG  any `json:"cug"`
	SKU  any `json:"sku"`
	Code any `json:"code"`

	Quantity any `json:"quantity"`
	Stock    any `json:"stock"`

	IsAvailableB2C *bool `json:"is_available_b2c"`
	IsAvailable    *bool `json:"is_available"`
	IsActive       *bool `json:"is_active"`
	Available      *bool `json:"available"`
	IsSalam        *bool `json:"is_salam"`

	SoldByWeight    any    `json:"sold_by_weight"`
	ByWeight        any    `json:"by_weight"`
	SaleUnitType    string `json:"sale_unit_type"`
	UnitType        string `json:"unit_type"`
	SellingUnit     string `json:"selling_unit"`
	WeightUnit      string `json:"weight_unit"`
	PricePerKg      any    `json:"price_per_kg"`
	AvailableWeight any    `json:"available_weight"`
	Weight          any    `json:"weight"`

	CategoryID *int64          `json:"category_id"`
	Category   json.RawMessage `json:"category"`

	Images    []any  `json:"images"`
	ImageURLs []any  `json:"image_urls"`
	Gallery   []any  `json:"gallery"`
	ImageURL  string `json:"image_url"`
	Image     string `json:"image"`
	MainImage string `json:"main_image"`
	Photo     string `json:"photo"`

	Specifications map[string]any `json:"specifications"`
	Attributes     map[string]any `json:"attributes"`
	Features       map[string]any `json:"features"`

	EAN            any    `json:"ean"`
	AlertThreshold any    `json:"alert_threshold"`
	UnitDisplay    string `json:"unit_display"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// CategoryObject decodes the nested category payload when the upstream sends
// an object rather than a bare id.
func (p *ProductRecord) CategoryObject() *CategoryRecord {
	if len(p.Category) == 0 || string(p.Category) == "null" {
		return nil
	}
	var nested CategoryRecord
	if err := json.Unmarshal(p.Category, &nested); err == nil && nested.ID != 0 {
		return &nested
	}
	return nil
}

// CategoryUpstreamID resolves the category reference from any representation.
func (p *ProductRecord) CategoryUpstreamID() *int64 {
	if nested := p.CategoryObject(); nested != nil {
		return &nested.ID
	}
	if p.CategoryID != nil {
		return p.CategoryID
	}
	var flat int64
	if len(p.Category) > 0 {
		if err := json.Unmarshal(p.Category, &flat); err == nil && flat != 0 {
			return &flat
		}
	}
	return nil
}

// ImageSources collects every image URL the record carries, primary first.
func (p *ProductRecord) ImageSources() []string {
	var urls []string
	appendURL := func(raw string) {
		if raw == "" {
			return
		}
		for _, existing := range urls {
			if existing == raw {
				return
			}
		}
		urls = append(urls, raw)
	}
	appendList := func(items []any) {
		for _, item := range items {
			switch v := item.(type) {
			case string:
				appendURL(v)
			case map[string]any:
				for _, key := range []string{"url", "image", "image_url", "src"} {
					if s, ok := v[key].(string); ok && s != "" {
						appendURL(s)
						break
					}
				}
			}
		}
	}
	appendList(p.Images)
	appendList(p.ImageURLs)
	appendList(p.Gallery)
	appendURL(p.ImageURL)
	appendURL(p.Image)
	appendURL(p.MainImage)
	appendURL(p.Photo)
	return urls
}

// SpecificationsMap returns the first populated specification alias.
func (p *ProductRecord) SpecificationsMap() map[string]any {
	if len(p.Specifications) > 0 {
		return p.Specifications
	}
	if len(p.Attributes) > 0 {
		return p.Attributes
	}
	if len(p.Features) > 0 {
		return p.Features
	}
	return nil
}

// MergeDetail overlays a per-product detail payload on top of a listing
// payload; fields present in the detail win.
func MergeDetail(list, detail *ProductRecord) (*ProductRecord, error) {
	if detail == nil {
		return list, nil
	}
	if list == nil {
		return detail, nil
	}

	base := map[string]json.RawMessage{}
	listRaw, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(listRaw, &base); err != nil {
		return nil, err
	}

	overlay := map[string]json.RawMessage{}
	detailRaw, err := json.Marshal(detail)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(detailRaw, &overlay); err != nil {
		return nil, err
	}

	for key, value := range overlay {
		if len(value) == 0 || string(value) == "null" || string(value) == `""` || string(value) == "0" {
			continue
		}
		base[key] = value
	}

	mergedRaw, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var merged ProductRecord
	if err := json.Unmarshal(mergedRaw, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// ProductPage is one page of the upstream product listing.
type ProductPage struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []ProductRecord `json:"results"`
}

// SiteRecord is one upstream site.
type SiteRecord struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	IsActive bool   `json:"is_active"`
}

// SaleItem is one line of an upstream sale.
type SaleItem struct {
	ProductUpstreamID int64           `json:"product_id"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	SiteID            int64           `json:"site_id,omitempty"`
}

// SalePayload is the create/update body for an upstream sale.
type SalePayload struct {
	OrderNumber   string          `json:"order_number"`
	Items         []SaleItem      `json:"items"`
	Total         decimal.Decimal `json:"total"`
	CustomerEmail string          `json:"customer_email"`
	CreatedAt     string          `json:"created_at"`
}

// SaleRecord is the upstream's view of a sale.
type SaleRecord struct {
	ID          int64  `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}
