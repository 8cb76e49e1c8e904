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
	"time"

	"github.com/shopspring/decimal"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/domain/destination"
	"github.com/channelsync/backend/internal/infrastructure/ratelimit"
	"github.com/channelsync/backend/internal/infrastructure/retry"
)

// WooAdapter implements the destination.Platform port for WooCommerce stores.
//
// WooCommerce has no standalone variant resource, so the adapter flattens the
// model: each variant becomes a simple product (additional variants get a
// "Title - Option" name) and each collection becomes a product category. The
// pseudo-variant's ID, product ID and inventory item ID are all the WooCommerce
// product ID.
type WooAdapter struct {
	config     *WooConfig
	dispatcher *ratelimit.Registry
	httpClient *http.Client
}

// NewWooAdapter creates a WooCommerce adapter for one destination store.
func NewWooAdapter(config *WooConfig, dispatcher *ratelimit.Registry) (*WooAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	timeout := config.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	return &WooAdapter{
		config:     config,
		dispatcher: dispatcher,
		httpClient: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

// PlatformType returns the destination platform kind
func (a *WooAdapter) PlatformType() catalogsync.PlatformType {
	return catalogsync.PlatformTypeWooCommerce
}

// Domain returns the destination domain keying the dispatcher's buckets
func (a *WooAdapter) Domain() string {
	return a.config.StoreDomain
}

// FindVariantBySKU looks a simple product up by its SKU. The sku query
// parameter is an exact filter on WooCommerce, but results are verified
// anyway since some SKU plugins loosen it.
func (a *WooAdapter) FindVariantBySKU(ctx context.Context, sku string) (*destination.Variant, error) {
	query := url.Values{}
	query.Set("sku", sku)

	var products []WooProduct
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, "/products", query, nil, &products); err != nil {
		return nil, err
	}

	for _, p := range products {
		if p.SKU == sku {
			variant := wooPseudoVariant(p)
			return &variant, nil
		}
	}
	return nil, destination.ErrVariantNotFound
}

// FindProductByTitle looks a product up by normalized title match.
func (a *WooAdapter) FindProductByTitle(ctx context.Context, title string) (*destination.Product, error) {
	query := url.Values{}
	query.Set("search", title)

	var products []WooProduct
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, "/products", query, nil, &products); err != nil {
		return nil, err
	}

	for _, p := range products {
		if catalogsync.TitlesMatch(p.Name, title) {
			product := convertWooProduct(p)
			return &product, nil
		}
	}
	return nil, destination.ErrProductNotFound
}

// GetProduct fetches a product; the flattened model yields one pseudo-variant
func (a *WooAdapter) GetProduct(ctx context.Context, productID string) (*destination.Product, error) {
	var p WooProduct
	path := fmt.Sprintf("/products/%s", productID)
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, path, nil, nil, &p); err != nil {
		return nil, err
	}
	product := convertWooProduct(p)
	return &product, nil
}

// CreateProduct creates one simple product per variant. The first variant
// takes the plain title; each further variant is suffixed with its option.
func (a *WooAdapter) CreateProduct(ctx context.Context, product destination.NewProduct) (*destination.Product, error) {
	out := &destination.Product{Title: product.Title}

	for i, v := range product.Variants {
		name := product.Title
		if i > 0 && v.OptionTitle != "" {
			name = product.Title + " - " + v.OptionTitle
		}

		payload := newWooProduct(name, product, v)
		var created WooProduct
		if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPost, "/products", nil, payload, &created); err != nil {
			return nil, err
		}

		if i == 0 {
			out.ID = strconv.FormatInt(created.ID, 10)
		}
		out.Variants = append(out.Variants, wooPseudoVariant(created))
	}

	return out, nil
}

// AddVariant creates another simple product next to an existing one, reusing
// the existing product's base title with the variant's option as suffix.
func (a *WooAdapter) AddVariant(ctx context.Context, productID string, variant destination.NewVariant) (*destination.Variant, error) {
	existing, err := a.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	name := catalogsync.BaseTitle(existing.Title)
	if variant.OptionTitle != "" {
		name = name + " - " + variant.OptionTitle
	}

	payload := newWooProduct(name, destination.NewProduct{}, variant)
	var created WooProduct
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPost, "/products", nil, payload, &created); err != nil {
		return nil, err
	}
	v := wooPseudoVariant(created)
	return &v, nil
}

// UpdateVariantPrice sets the product's pricing. A non-zero compare-at price
// maps to the regular price with the sync price as sale price; otherwise the
// sale price is cleared.
func (a *WooAdapter) UpdateVariantPrice(ctx context.Context, variantID string, price, compareAt decimal.Decimal) error {
	payload := wooPriceUpdate{RegularPrice: price.StringFixed(2)}
	if !compareAt.IsZero() {
		payload.RegularPrice = compareAt.StringFixed(2)
		payload.SalePrice = price.StringFixed(2)
	}

	path := fmt.Sprintf("/products/%s", variantID)
	return a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPut, path, nil, payload, nil)
}

// SetInventoryLevel sets the product's managed stock quantity. WooCommerce
// has no locations, so the level's location ID is ignored.
func (a *WooAdapter) SetInventoryLevel(ctx context.Context, level destination.InventoryLevel) error {
	payload := wooStockUpdate{
		ManageStock:   true,
		StockQuantity: level.Available,
		StockStatus:   "instock",
	}
	if level.Available <= 0 {
		payload.StockStatus = "outofstock"
	}

	path := fmt.Sprintf("/products/%s", level.InventoryItemID)
	return a.doRequest(ctx, ratelimit.TierInventory, http.MethodPut, path, nil, payload, nil)
}

// FindCollectionByTitle looks a product category up by name. Categories have
// no rule machinery, so every collection surfaces as a custom one and gets
// explicit product association.
func (a *WooAdapter) FindCollectionByTitle(ctx context.Context, title string) (*destination.Collection, error) {
	query := url.Values{}
	query.Set("search", title)

	var categories []WooCategory
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, "/products/categories", query, nil, &categories); err != nil {
		return nil, err
	}

	for _, c := range categories {
		if catalogsync.TitlesMatch(c.Name, title) {
			return &destination.Collection{
				ID:    strconv.FormatInt(c.ID, 10),
				Title: c.Name,
				Type:  catalogsync.CollectionTypeCustom,
			}, nil
		}
	}
	return nil, destination.ErrCollectionNotFound
}

// CreateCollection creates a product category
func (a *WooAdapter) CreateCollection(ctx context.Context, collection destination.NewCollection) (*destination.Collection, error) {
	payload := WooCategory{Name: collection.Title}

	var created WooCategory
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPost, "/products/categories", nil, payload, &created); err != nil {
		return nil, err
	}
	return &destination.Collection{
		ID:    strconv.FormatInt(created.ID, 10),
		Title: created.Name,
		Type:  catalogsync.CollectionTypeCustom,
	}, nil
}

// AddProductToCollection appends the category to the product's category list.
func (a *WooAdapter) AddProductToCollection(ctx context.Context, collectionID, productID string) error {
	cid, err := strconv.ParseInt(collectionID, 10, 64)
	if err != nil {
		return fmt.Errorf("woocommerce: invalid category ID %q: %w", collectionID, err)
	}

	var p WooProduct
	path := fmt.Sprintf("/products/%s", productID)
	if err := a.doRequest(ctx, ratelimit.TierGeneral, http.MethodGet, path, nil, nil, &p); err != nil {
		return err
	}

	for _, c := range p.Categories {
		if c.ID == cid {
			return nil
		}
	}

	payload := wooCategoryUpdate{Categories: append(p.Categories, WooCategoryRef{ID: cid})}
	return a.doRequest(ctx, ratelimit.TierGeneral, http.MethodPut, path, nil, payload, nil)
}

// doRequest performs one REST API call through the dispatcher, authenticated
// with the consumer key pair. Non-2xx responses surface as *retry.HTTPError.
func (a *WooAdapter) doRequest(ctx context.Context, tier ratelimit.Tier, method, path string, query url.Values, body, out any) error {
	return a.dispatcher.Execute(ctx, a.config.StoreDomain, tier, func(ctx context.Context) error {
		endpoint := a.config.BaseURL() + path
		if len(query) > 0 {
			endpoint += "?" + query.Encode()
		}

		var reqBody io.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("woocommerce: encode request: %w", err)
			}
			reqBody = bytes.NewReader(raw)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
		if err != nil {
			return fmt.Errorf("woocommerce: create request: %w", err)
		}
		req.SetBasicAuth(a.config.ConsumerKey, a.config.ConsumerSecret)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("woocommerce: %s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return fmt.Errorf("woocommerce: read response: %w", err)
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
				return fmt.Errorf("woocommerce: decode response: %w", err)
			}
		}
		return nil
	})
}

// newWooProduct builds a simple-product creation payload from one variant.
func newWooProduct(name string, product destination.NewProduct, v destination.NewVariant) WooProduct {
	p := WooProduct{
		Name:         name,
		Type:         "simple",
		Status:       wooStatus(product.PublishStatus),
		SKU:          v.SKU,
		Description:  product.Description,
		RegularPrice: v.Price.StringFixed(2),
	}
	if !v.CompareAtPrice.IsZero() {
		p.RegularPrice = v.CompareAtPrice.StringFixed(2)
		p.SalePrice = v.Price.StringFixed(2)
	}
	if !v.WeightGrams.IsZero() {
		p.Weight = v.WeightGrams.String()
	}
	for _, img := range product.Images {
		p.Images = append(p.Images, WooImage{Src: img})
	}
	for _, tag := range product.Tags {
		p.Tags = append(p.Tags, WooTagRef{Name: tag})
	}
	return p
}

// wooStatus maps the connection's publish setting to a product status.
func wooStatus(s catalogsync.PublishStatus) string {
	if s == catalogsync.PublishStatusDraft {
		return "draft"
	}
	return "publish"
}

// wooPseudoVariant maps a simple product to the port's variant shape.
func wooPseudoVariant(p WooProduct) destination.Variant {
	id := strconv.FormatInt(p.ID, 10)
	price := p.Price
	if price == "" {
		price = p.RegularPrice
	}
	compareAt := ""
	if p.SalePrice != "" {
		// An active sale means the regular price is the strike-through one.
		price = p.SalePrice
		compareAt = p.RegularPrice
	}
	return destination.Variant{
		ID:              id,
		ProductID:       id,
		SKU:             p.SKU,
		Title:           p.Name,
		Price:           parseDecimal(price),
		CompareAtPrice:  parseDecimal(compareAt),
		InventoryItemID: id,
	}
}

// convertWooProduct maps a product to the port shape with its pseudo-variant.
func convertWooProduct(p WooProduct) destination.Product {
	return destination.Product{
		ID:       strconv.FormatInt(p.ID, 10),
		Title:    p.Name,
		Variants: []destination.Variant{wooPseudoVariant(p)},
	}
}

// Ensure WooAdapter implements the destination.Platform port
var _ destination.Platform = (*WooAdapter)(nil)
