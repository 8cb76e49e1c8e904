package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/domain/destination"
	"github.com/channelsync/backend/internal/infrastructure/ratelimit"
	"github.com/channelsync/backend/internal/infrastructure/retry"
)

// maxResponseSize is the maximum allowed response size from a destination API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// ShopifyAdapter implements the destination.Platform port for Shopify stores.
// Every outbound call is gated by the rate-limited dispatcher; the adapter
// itself never retries.
type ShopifyAdapter struct {
	config     *ShopifyConfig
	dispatcher *ratelimit.Registry
	httpClient *http.Client
}

// NewShopifyAdapter creates a Shopify adapter for one destination shop.
func NewShopifyAdapter(config *ShopifyConfig, dispatcher *ratelimit.Registry) (*ShopifyAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &ShopifyAdapter{
		config:     config,
		dispatcher: dispatcher,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

// PlatformType returns the destination platform kind
func (a *ShopifyAdapter) PlatformType() catalogsync.PlatformType {
	return catalogsync.PlatformTypeShopify
}

// Domain returns the destination domain keying the dispatcher's buckets
func (a *ShopifyAdapter) Domain() string {
	return a.config.ShopDomain
}

// ---------------------------------------------------------------------------
// Variant lookup
// ---------------------------------------------------------------------------

// FindVariantBySKU looks a variant up through the variant search endpoint.
// The search is fuzzy on some shops, so results are verified by exact SKU
// comparison before anything is returned.
func (a *ShopifyAdapter) FindVariantBySKU(ctx context.Context, sku string) (*destination.Variant, error) {
	query := url.Values{}
	query.Set("sku", sku)

	var resp shopifyVariantsEnvelope
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, "/variants.json", query, nil, &resp); err != nil {
		return nil, err
	}

	for _, v := range resp.Variants {
		if v.SKU == sku {
			variant := convertShopifyVariant(v)
			return &variant, nil
		}
	}
	return nil, destination.ErrVariantNotFound
}

// FindProductByTitle looks a product up by normalized title match.
func (a *ShopifyAdapter) FindProductByTitle(ctx context.Context, title string) (*destination.Product, error) {
	query := url.Values{}
	query.Set("title", title)

	var resp shopifyProductsEnvelope
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, "/products.json", query, nil, &resp); err != nil {
		return nil, err
	}

	for _, p := range resp.Products {
		if catalogsync.TitlesMatch(p.Title, title) {
			product := convertShopifyProduct(p)
			return &product, nil
		}
	}
	return nil, destination.ErrProductNotFound
}

// GetProduct fetches a product with its variants
func (a *ShopifyAdapter) GetProduct(ctx context.Context, productID string) (*destination.Product, error) {
	var resp shopifyProductEnvelope
	path := fmt.Sprintf("/products/%s.json", productID)
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	product := convertShopifyProduct(resp.Product)
	return &product, nil
}

// ---------------------------------------------------------------------------
// Product creation
// ---------------------------------------------------------------------------

// CreateProduct creates a product carrying all given variants at once.
func (a *ShopifyAdapter) CreateProduct(ctx context.Context, product destination.NewProduct) (*destination.Product, error) {
	payload := shopifyProductEnvelope{
		Product: ShopifyProduct{
			Title:       product.Title,
			BodyHTML:    product.Description,
			Vendor:      product.Vendor,
			ProductType: product.ProductType,
			Tags:        strings.Join(product.Tags, ", "),
			Status:      shopifyStatus(product.PublishStatus),
		},
	}
	for _, img := range product.Images {
		payload.Product.Images = append(payload.Product.Images, ShopifyImage{Src: img})
	}
	for i, v := range product.Variants {
		payload.Product.Variants = append(payload.Product.Variants, newShopifyVariant(v, i+1))
	}

	var resp shopifyProductEnvelope
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPost, "/products.json", nil, payload, &resp); err != nil {
		return nil, err
	}
	created := convertShopifyProduct(resp.Product)
	return &created, nil
}

// AddVariant adds one variant to an existing product
func (a *ShopifyAdapter) AddVariant(ctx context.Context, productID string, variant destination.NewVariant) (*destination.Variant, error) {
	payload := shopifyVariantEnvelope{Variant: newShopifyVariant(variant, variant.Position)}

	var resp shopifyVariantEnvelope
	path := fmt.Sprintf("/products/%s/variants.json", productID)
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPost, path, nil, payload, &resp); err != nil {
		return nil, err
	}
	created := convertShopifyVariant(resp.Variant)
	return &created, nil
}

// ---------------------------------------------------------------------------
// Price and inventory
// ---------------------------------------------------------------------------

// UpdateVariantPrice sets the variant's price and compare-at price
func (a *ShopifyAdapter) UpdateVariantPrice(ctx context.Context, variantID string, price, compareAt decimal.Decimal) error {
	id, err := strconv.ParseInt(variantID, 10, 64)
	if err != nil {
		return fmt.Errorf("shopify: invalid variant ID %q: %w", variantID, err)
	}

	v := ShopifyVariant{ID: id, Price: price.StringFixed(2)}
	if !compareAt.IsZero() {
		s := compareAt.StringFixed(2)
		v.CompareAtPrice = &s
	}

	path := fmt.Sprintf("/variants/%d.json", id)
	return a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPut, path, nil, shopifyVariantEnvelope{Variant: v}, nil)
}

// SetInventoryLevel sets available stock at a location through the dedicated
// inventory endpoint, gated by the inventory tier.
func (a *ShopifyAdapter) SetInventoryLevel(ctx context.Context, level destination.InventoryLevel) error {
	locationID, err := strconv.ParseInt(level.LocationID, 10, 64)
	if err != nil {
		return fmt.Errorf("shopify: invalid location ID %q: %w", level.LocationID, err)
	}
	itemID, err := strconv.ParseInt(level.InventoryItemID, 10, 64)
	if err != nil {
		return fmt.Errorf("shopify: invalid inventory item ID %q: %w", level.InventoryItemID, err)
	}

	payload := ShopifyInventoryLevelSet{
		LocationID:      locationID,
		InventoryItemID: itemID,
		Available:       level.Available,
	}
	return a.doRequest(ctx, ratelimit.TierInventory, http.MethodPost, "/inventory_levels/set.json", nil, payload, nil)
}

// ---------------------------------------------------------------------------
// Collections
// ---------------------------------------------------------------------------

// FindCollectionByTitle searches smart and custom collections by title.
func (a *ShopifyAdapter) FindCollectionByTitle(ctx context.Context, title string) (*destination.Collection, error) {
	query := url.Values{}
	query.Set("title", title)

	var smart shopifySmartCollectionsEnvelope
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, "/smart_collections.json", query, nil, &smart); err != nil {
		return nil, err
	}
	for _, c := range smart.SmartCollections {
		if catalogsync.TitlesMatch(c.Title, title) {
			return &destination.Collection{
				ID:    strconv.FormatInt(c.ID, 10),
				Title: c.Title,
				Type:  catalogsync.CollectionTypeSmart,
			}, nil
		}
	}

	var custom shopifyCustomCollectionsEnvelope
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, "/custom_collections.json", query, nil, &custom); err != nil {
		return nil, err
	}
	for _, c := range custom.CustomCollections {
		if catalogsync.TitlesMatch(c.Title, title) {
			return &destination.Collection{
				ID:    strconv.FormatInt(c.ID, 10),
				Title: c.Title,
				Type:  catalogsync.CollectionTypeCustom,
			}, nil
		}
	}

	return nil, destination.ErrCollectionNotFound
}

// CreateCollection creates a collection preserving its source type.
func (a *ShopifyAdapter) CreateCollection(ctx context.Context, collection destination.NewCollection) (*destination.Collection, error) {
	if collection.Type == catalogsync.CollectionTypeSmart {
		payload := shopifySmartCollectionEnvelope{
			SmartCollection: ShopifySmartCollection{
				Title:       collection.Title,
				Disjunctive: collection.Disjunctive,
			},
		}
		for _, r := range collection.Rules {
			payload.SmartCollection.Rules = append(payload.SmartCollection.Rules, ShopifyCollectionRule(r))
		}

		var resp shopifySmartCollectionEnvelope
		if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPost, "/smart_collections.json", nil, payload, &resp); err != nil {
			return nil, err
		}
		return &destination.Collection{
			ID:    strconv.FormatInt(resp.SmartCollection.ID, 10),
			Title: resp.SmartCollection.Title,
			Type:  catalogsync.CollectionTypeSmart,
		}, nil
	}

	payload := shopifyCustomCollectionEnvelope{
		CustomCollection: ShopifyCustomCollection{Title: collection.Title},
	}
	var resp shopifyCustomCollectionEnvelope
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPost, "/custom_collections.json", nil, payload, &resp); err != nil {
		return nil, err
	}
	return &destination.Collection{
		ID:    strconv.FormatInt(resp.CustomCollection.ID, 10),
		Title: resp.CustomCollection.Title,
		Type:  catalogsync.CollectionTypeCustom,
	}, nil
}

// AddProductToCollection associates a product with a custom collection via a collect.
func (a *ShopifyAdapter) AddProductToCollection(ctx context.Context, collectionID, productID string) error {
	cid, err := strconv.ParseInt(collectionID, 10, 64)
	if err != nil {
		return fmt.Errorf("shopify: invalid collection ID %q: %w", collectionID, err)
	}
	pid, err := strconv.ParseInt(productID, 10, 64)
	if err != nil {
		return fmt.Errorf("shopify: invalid product ID %q: %w", productID, err)
	}

	payload := shopifyCollectEnvelope{Collect: ShopifyCollect{CollectionID: cid, ProductID: pid}}
	return a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPost, "/collects.json", nil, payload, nil)
}

// ---------------------------------------------------------------------------
// Internal helpers
// ---------------------------------------------------------------------------

// doRequest performs one Admin API call through the dispatcher. Non-2xx
// responses surface as *retry.HTTPError carrying the Retry-After hint so the
// retry policy can classify them.
func (a *ShopifyAdapter) doRequest(ctx context.Context, tier ratelimit.Tier, method, path string, query url.Values, body, out any) error {
	return a.dispatcher.Execute(ctx, a.config.ShopDomain, tier, func(ctx context.Context) error {
		endpoint := a.config.BaseURL() + path
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}

		var reqBody io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("shopify: encode request: %w", err)
			}
			reqBody = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return fmt.Errorf("shopify: create request: %w", err)
		}
		req.Header.Set("X-Shopify-Access-Token", a.config.AccessToken)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("shopify: %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("shopify: read response: %w", err)
		}

		if resp.StatusCode >= 400 {
			return &retry.HTTPError{
				StatusCode: resp.StatusCode,
				RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
				Message:    condenseBody(raw),
			}
		}

		if out != nil {
			if err := json.Unmarshal(raw, out); err != nil {
				return fmt.Errorf("shopify: decode response: %w", err)
			}
		}
		return nil
	})
}

// parseRetryAfter parses a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// condenseBody trims a response body into a single short error line.
func condenseBody(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

// shopifyStatus maps the connection's publish setting to a product status.
func shopifyStatus(s catalogsync.PublishStatus) string {
	if s == catalogsync.PublishStatusDraft {
		return "draft"
	}
	return "active"
}

// newShopifyVariant builds a creation payload for one variant.
func newShopifyVariant(v destination.NewVariant, position int) ShopifyVariant {
	sv := ShopifyVariant{
		SKU:                 v.SKU,
		Barcode:             v.Barcode,
		Price:               v.Price.StringFixed(2),
		InventoryManagement: "shopify",
		InventoryPolicy:     "deny",
		Option1:             v.OptionTitle,
		Position:            position,
	}
	if !v.CompareAtPrice.IsZero() {
		s := v.CompareAtPrice.StringFixed(2)
		sv.CompareAtPrice = &s
	}
	if !v.WeightGrams.IsZero() {
		sv.Weight = v.WeightGrams.String()
		sv.WeightUnit = "g"
	}
	return sv
}

// convertShopifyVariant maps a wire variant to the domain value.
func convertShopifyVariant(v ShopifyVariant) destination.Variant {
	out := destination.Variant{
		ID:             strconv.FormatInt(v.ID, 10),
		ProductID:      strconv.FormatInt(v.ProductID, 10),
		SKU:            v.SKU,
		Title:          v.Title,
		Price:          parseDecimal(v.Price),
		CompareAtPrice: parseDecimalPtr(v.CompareAtPrice),
	}
	if v.InventoryItemID > 0 {
		out.InventoryItemID = strconv.FormatInt(v.InventoryItemID, 10)
	}
	return out
}

// convertShopifyProduct maps a wire product to the domain value.
func convertShopifyProduct(p ShopifyProduct) destination.Product {
	out := destination.Product{
		ID:    strconv.FormatInt(p.ID, 10),
		Title: p.Title,
	}
	for _, v := range p.Variants {
		if v.ProductID == 0 {
			v.ProductID = p.ID
		}
		out.Variants = append(out.Variants, convertShopifyVariant(v))
	}
	return out
}

// Ensure ShopifyAdapter implements the destination.Platform port
var _ destination.Platform = (*ShopifyAdapter)(nil)
