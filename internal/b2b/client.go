package b2b

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bolibana/boutique/internal/config"
	vaultdomain "github.com/bolibana/boutique/internal/vault/domain"
	"go.uber.org/zap"
)

// Client is the single point of contact with the upstream B2B API. It is
// stateless between calls aside from the pooled http.Client; the API key is
// fetched from the vault on every request.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	vault      vaultdomain.Service
	log        *zap.Logger
}

func New(cfg config.Config, vault vaultdomain.Service, log *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.B2BAPIURL, "/"),
		timeout:    cfg.APITimeout,
		httpClient: &http.Client{},
		vault:      vault,
		log:        log.Named("b2b.client"),
	}
}

// ListProducts fetches one page of the product listing. siteID 0 means no
// site filter.
func (c *Client) ListProducts(ctx context.Context, siteID int64, page, pageSize int) (*ProductPage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("page_size", strconv.Itoa(pageSize))
	if siteID > 0 {
		query.Set("site_id", strconv.FormatInt(siteID, 10))
	}

	var out ProductPage
	if err := c.do(ctx, http.MethodGet, "b2c/products/", query, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetProduct fetches one product detail. The upstream answers either with the
// object itself or with a single-element results page.
func (c *Client) GetProduct(ctx context.Context, upstreamID int64) (*ProductRecord, error) {
	var raw json.RawMessage
	path := fmt.Sprintf("b2c/products/%d/", upstreamID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &raw); err != nil {
		return nil, err
	}

	var record ProductRecord
	if err := json.Unmarshal(raw, &record); err == nil && record.ID != 0 {
		return &record, nil
	}
	var page ProductPage
	if err := json.Unmarshal(raw, &page); err == nil && len(page.Results) > 0 {
		return &page.Results[0], nil
	}
	return nil, &HTTPError{StatusCode: http.StatusOK, URL: c.requestURL(path), Body: "unrecognized product payload"}
}

// ListCategories fetches the flat category list. A paged body is unwrapped.
func (c *Client) ListCategories(ctx context.Context) ([]CategoryRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "b2c/categories/", nil, nil, &raw); err != nil {
		return nil, err
	}

	var categories []CategoryRecord
	if err := json.Unmarshal(raw, &categories); err == nil {
		return categories, nil
	}
	var page struct {
		Results []CategoryRecord `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err == nil {
		return page.Results, nil
	}
	return nil, &HTTPError{StatusCode: http.StatusOK, URL: c.requestURL("b2c/categories/"), Body: "unrecognized category payload"}
}

func (c *Client) GetCategory(ctx context.Context, upstreamID int64) (*CategoryRecord, error) {
	var out CategoryRecord
	path := fmt.Sprintf("b2c/categories/%d/", upstreamID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSites(ctx context.Context) ([]SiteRecord, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "b2c/sites/", nil, nil, &raw); err != nil {
		return nil, err
	}
	var sites []SiteRecord
	if err := json.Unmarshal(raw, &sites); err == nil {
		return sites, nil
	}
	var page struct {
		Results []SiteRecord `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err == nil {
		return page.Results, nil
	}
	return nil, &HTTPError{StatusCode: http.StatusOK, URL: c.requestURL("b2c/sites/"), Body: "unrecognized site payload"}
}

func (c *Client) CreateSale(ctx context.Context, payload SalePayload) (*SaleRecord, error) {
	var out SaleRecord
	if err := c.do(ctx, http.MethodPost, "b2c/sales/", nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSale(ctx context.Context, upstreamSaleID int64, payload SalePayload) (*SaleRecord, error) {
	var out SaleRecord
	path := fmt.Sprintf("b2c/sales/%d/", upstreamSaleID)
	if err := c.do(ctx, http.MethodPut, path, nil, payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TestConnection reports whether the upstream answers an authenticated
// category listing.
func (c *Client) TestConnection(ctx context.Context) bool {
	_, err := c.ListCategories(ctx)
	return err == nil
}

func (c *Client) requestURL(path string) string {
	return c.baseURL + "/" + strings.TrimPrefix(path, "/")
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	key := c.vault.GetActiveKey(ctx)
	if key == "" {
		return ErrNoCredential
	}

	requestURL := c.requestURL(path)
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-Key", key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.translateNetworkError(requestURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.translateNetworkError(requestURL, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return decodePayload(respBody, out)
	case resp.StatusCode == http.StatusForbidden:
		forbidden := &ForbiddenError{
			URL:           requestURL,
			MaskedKey:     vaultdomain.MaskKey(key),
			HadAuthHeader: req.Header.Get("X-API-Key") != "",
			Body:          truncateBody(string(respBody)),
		}
		c.log.Warn("upstream denied request",
			zap.String("url", requestURL),
			zap.String("key", forbidden.MaskedKey),
			zap.Bool("auth_header", forbidden.HadAuthHeader),
		)
		return forbidden
	default:
		return &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        requestURL,
			Body:       truncateBody(string(respBody)),
		}
	}
}

func decodePayload(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err == nil {
		return nil
	}
	// 2xx with a non-JSON body degrades to {content: truncated} when the
	// caller can accept it.
	if content, ok := out.(*map[string]any); ok {
		*content = map[string]any{"content": truncateBody(string(body))}
		return nil
	}
	return fmt.Errorf("non-JSON upstream response: %s", truncateBody(string(body)))
}

func (c *Client) translateNetworkError(requestURL string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{URL: requestURL, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{URL: requestURL, Err: err}
	}
	return &ConnectionError{URL: requestURL, Err: err}
}
