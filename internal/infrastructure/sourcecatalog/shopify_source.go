// Package sourcecatalog implements the source catalog fetcher port: pulling
// product data out of the platforms a sync connection reads from.
package sourcecatalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/infrastructure/ratelimit"
	"github.com/channelsync/backend/internal/infrastructure/retry"
)

var (
	// ErrShopifySourceMissingDomain indicates the source shop domain is not set
	ErrShopifySourceMissingDomain = errors.New("sourcecatalog: missing shop domain")
	// ErrShopifySourceMissingToken indicates the source access token is not set
	ErrShopifySourceMissingToken = errors.New("sourcecatalog: missing access token")
)

const (
	shopifySourceAPIVersion = "2024-01"
	shopifyPageSize         = 250
	maxSourceResponseSize   = 10 * 1024 * 1024
)

// ShopifySourceConfig holds credentials for a source Shopify shop.
type ShopifySourceConfig struct {
	ShopDomain  string
	AccessToken string
	// APIBaseURL overrides the Admin API base URL, mainly for tests (optional)
	APIBaseURL string
	// TimeoutSeconds bounds each HTTP call (default 30)
	TimeoutSeconds int
	// Primary marks this source as authoritative when the same SKU appears
	// in several sources
	Primary bool
}

// Validate checks the configuration
func (c *ShopifySourceConfig) Validate() error {
	if strings.TrimSpace(c.ShopDomain) == "" {
		return ErrShopifySourceMissingDomain
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return ErrShopifySourceMissingToken
	}
	return nil
}

func (c *ShopifySourceConfig) baseURL() string {
	if c.APIBaseURL != "" {
		return fmt.Sprintf("%s/admin/api/%s", strings.TrimRight(c.APIBaseURL, "/"), shopifySourceAPIVersion)
	}
	return fmt.Sprintf("https://%s/admin/api/%s", c.ShopDomain, shopifySourceAPIVersion)
}

// Source-side wire types. Only the fields the catalog model carries.

type sourceVariant struct {
	ID                int64  `json:"id"`
	ProductID         int64  `json:"product_id"`
	Title             string `json:"title"`
	SKU               string `json:"sku"`
	Barcode           string `json:"barcode"`
	Price             string `json:"price"`
	CompareAtPrice    string `json:"compare_at_price"`
	InventoryItemID   int64  `json:"inventory_item_id"`
	InventoryQuantity int    `json:"inventory_quantity"`
	Grams             int    `json:"grams"`
}

type sourceImage struct {
	Src string `json:"src"`
}

type sourceProduct struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	BodyHTML    string          `json:"body_html"`
	Vendor      string          `json:"vendor"`
	ProductType string          `json:"product_type"`
	Tags        string          `json:"tags"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Images      []sourceImage   `json:"images"`
	Variants    []sourceVariant `json:"variants"`
}

type sourceCollectionRule struct {
	Column    string `json:"column"`
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}

type sourceSmartCollection struct {
	ID          int64                  `json:"id"`
	Title       string                 `json:"title"`
	Rules       []sourceCollectionRule `json:"rules"`
	Disjunctive bool                   `json:"disjunctive"`
}

type sourceCustomCollection struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ShopifySourceFetcher reads the full catalog of a source Shopify shop,
// including which collections each product belongs to. Calls go through the
// rate-limited dispatcher like destination traffic does.
type ShopifySourceFetcher struct {
	config     *ShopifySourceConfig
	dispatcher *ratelimit.Registry
	httpClient *http.Client
}

// NewShopifySourceFetcher creates a fetcher for one source shop.
func NewShopifySourceFetcher(config *ShopifySourceConfig, dispatcher *ratelimit.Registry) (*ShopifySourceFetcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &ShopifySourceFetcher{
		config:     config,
		dispatcher: dispatcher,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

// SourcePlatform identifies the source in catalog items and group keys
func (f *ShopifySourceFetcher) SourcePlatform() string {
	return "shopify:" + f.config.ShopDomain
}

// FetchSourceCatalog pulls every product of the shop with its collection
// memberships and flattens variants into catalog items.
func (f *ShopifySourceFetcher) FetchSourceCatalog(ctx context.Context) ([]catalogsync.CatalogItem, error) {
	collections, err := f.fetchCollectionMembership(ctx)
	if err != nil {
		return nil, err
	}

	var items []catalogsync.CatalogItem
	sinceID := int64(0)
	for {
		query := url.Values{}
		query.Set("limit", strconv.Itoa(shopifyPageSize))
		if sinceID > 0 {
			query.Set("since_id", strconv.FormatInt(sinceID, 10))
		}

		var page struct {
			Products []sourceProduct `json:"products"`
		}
		if err := f.get(ctx, "/products.json", query, &page); err != nil {
			return nil, err
		}
		if len(page.Products) == 0 {
			break
		}

		for _, p := range page.Products {
			items = append(items, f.convertProduct(p, collections[p.ID])...)
			if p.ID > sinceID {
				sinceID = p.ID
			}
		}

		if len(page.Products) < shopifyPageSize {
			break
		}
	}
	return items, nil
}

// fetchCollectionMembership lists smart and custom collections and resolves
// which products belong to each, keyed by product ID.
func (f *ShopifySourceFetcher) fetchCollectionMembership(ctx context.Context) (map[int64][]catalogsync.SourceCollection, error) {
	membership := make(map[int64][]catalogsync.SourceCollection)

	var smart struct {
		SmartCollections []sourceSmartCollection `json:"smart_collections"`
	}
	if err := f.get(ctx, "/smart_collections.json", nil, &smart); err != nil {
		return nil, err
	}
	for _, c := range smart.SmartCollections {
		coll := catalogsync.SourceCollection{
			Title:       c.Title,
			Type:        catalogsync.CollectionTypeSmart,
			Disjunctive: c.Disjunctive,
		}
		for _, r := range c.Rules {
			coll.Rules = append(coll.Rules, catalogsync.CollectionRule(r))
		}
		if err := f.addMembers(ctx, c.ID, coll, membership); err != nil {
			return nil, err
		}
	}

	var custom struct {
		CustomCollections []sourceCustomCollection `json:"custom_collections"`
	}
	if err := f.get(ctx, "/custom_collections.json", nil, &custom); err != nil {
		return nil, err
	}
	for _, c := range custom.CustomCollections {
		coll := catalogsync.SourceCollection{
			Title: c.Title,
			Type:  catalogsync.CollectionTypeCustom,
		}
		if err := f.addMembers(ctx, c.ID, coll, membership); err != nil {
			return nil, err
		}
	}

	return membership, nil
}

// addMembers records the collection against every product it contains.
func (f *ShopifySourceFetcher) addMembers(ctx context.Context, collectionID int64, coll catalogsync.SourceCollection, membership map[int64][]catalogsync.SourceCollection) error {
	query := url.Values{}
	query.Set("collection_id", strconv.FormatInt(collectionID, 10))
	query.Set("limit", strconv.Itoa(shopifyPageSize))

	var page struct {
		Products []struct {
			ID int64 `json:"id"`
		} `json:"products"`
	}
	if err := f.get(ctx, "/products.json", query, &page); err != nil {
		return err
	}
	for _, p := range page.Products {
		membership[p.ID] = append(membership[p.ID], coll)
	}
	return nil
}

// convertProduct flattens a product into one catalog item per variant.
func (f *ShopifySourceFetcher) convertProduct(p sourceProduct, collections []catalogsync.SourceCollection) []catalogsync.CatalogItem {
	var tags []string
	for _, t := range strings.Split(p.Tags, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	var images []string
	for _, img := range p.Images {
		images = append(images, img.Src)
	}

	items := make([]catalogsync.CatalogItem, 0, len(p.Variants))
	for _, v := range p.Variants {
		item := catalogsync.CatalogItem{
			SKU:            v.SKU,
			Title:          p.Title,
			VariantTitle:   v.Title,
			Price:          parseSourceDecimal(v.Price),
			CompareAtPrice: parseSourceDecimal(v.CompareAtPrice),
			Stock:          v.InventoryQuantity,
			Images:         images,
			Description:    p.BodyHTML,
			ProductType:    p.ProductType,
			Vendor:         p.Vendor,
			Tags:           tags,
			Barcode:        v.Barcode,
			WeightGrams:    decimal.NewFromInt(int64(v.Grams)),
			ProductID:      strconv.FormatInt(p.ID, 10),
			VariantID:      strconv.FormatInt(v.ID, 10),
			Collections:    collections,
			SourcePlatform: f.SourcePlatform(),
			PrimarySource:  f.config.Primary,
			UpdatedAt:      p.UpdatedAt,
		}
		if v.InventoryItemID > 0 {
			item.InventoryItemID = strconv.FormatInt(v.InventoryItemID, 10)
		}
		items = append(items, item)
	}
	return items
}

// get performs one dispatcher-gated GET against the source Admin API.
func (f *ShopifySourceFetcher) get(ctx context.Context, path string, query url.Values, out any) error {
	return f.dispatcher.Execute(ctx, f.config.ShopDomain, ratelimit.TierGeneral, func(ctx context.Context) error {
		endpoint := f.config.baseURL() + path
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("sourcecatalog: create request: %w", err)
		}
		req.Header.Set("X-Shopify-Access-Token", f.config.AccessToken)

		resp, err := f.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sourcecatalog: GET %s: %w", path, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceResponseSize))
		if err != nil {
			return fmt.Errorf("sourcecatalog: read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return &retry.HTTPError{
				StatusCode: resp.StatusCode,
				RetryAfter: retryAfterSeconds(resp.Header.Get("Retry-After")),
				Message:    strings.TrimSpace(string(raw)),
			}
		}
		return json.Unmarshal(raw, out)
	})
}

// retryAfterSeconds parses a Retry-After header given in seconds.
func retryAfterSeconds(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// parseSourceDecimal parses a money string, tolerating empty values.
func parseSourceDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Ensure the fetcher implements the source catalog port
var _ catalogsync.SourceCatalogFetcher = (*ShopifySourceFetcher)(nil)
