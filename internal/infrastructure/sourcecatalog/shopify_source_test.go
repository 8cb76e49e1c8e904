package sourcecatalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/infrastructure/ratelimit"
)

func newTestShopifySource(t *testing.T, handler http.HandlerFunc) *ShopifySourceFetcher {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	fetcher, err := NewShopifySourceFetcher(&ShopifySourceConfig{
		ShopDomain:  "source.myshopify.com",
		AccessToken: "shpat_source",
		APIBaseURL:  server.URL,
		Primary:     true,
	}, ratelimit.NewRegistry(ratelimit.DefaultConfig(), zap.NewNop()))
	require.NoError(t, err)
	return fetcher
}

func TestShopifySourceConfig_Validate(t *testing.T) {
	assert.ErrorIs(t, (&ShopifySourceConfig{AccessToken: "x"}).Validate(), ErrShopifySourceMissingDomain)
	assert.ErrorIs(t, (&ShopifySourceConfig{ShopDomain: "x"}).Validate(), ErrShopifySourceMissingToken)
	assert.NoError(t, (&ShopifySourceConfig{ShopDomain: "x", AccessToken: "y"}).Validate())
}

func TestShopifySourceFetcher_FetchSourceCatalog(t *testing.T) {
	fetcher := newTestShopifySource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shpat_source", r.Header.Get("X-Shopify-Access-Token"))

		switch r.URL.Path {
		case "/admin/api/2024-01/smart_collections.json":
			_, _ = w.Write([]byte(`{"smart_collections":[{"id":1,"title":"Summer","disjunctive":true,"rules":[{"column":"tag","relation":"equals","condition":"summer"}]}]}`))
		case "/admin/api/2024-01/custom_collections.json":
			_, _ = w.Write([]byte(`{"custom_collections":[]}`))
		case "/admin/api/2024-01/products.json":
			if r.URL.Query().Get("collection_id") == "1" {
				_, _ = w.Write([]byte(`{"products":[{"id":100}]}`))
				return
			}
			if r.URL.Query().Get("since_id") != "" {
				_, _ = w.Write([]byte(`{"products":[]}`))
				return
			}
			resp := map[string][]sourceProduct{"products": {
				{
					ID:          100,
					Title:       "Widget",
					Vendor:      "Acme",
					ProductType: "Gadget",
					Tags:        "summer, sale",
					Images:      []sourceImage{{Src: "https://cdn.example.com/widget.png"}},
					Variants: []sourceVariant{
						{ID: 1000, ProductID: 100, Title: "Red", SKU: "SKU-R", Price: "19.99", InventoryItemID: 500, InventoryQuantity: 3, Grams: 120},
						{ID: 1001, ProductID: 100, Title: "Blue", SKU: "SKU-B", Price: "19.99", InventoryQuantity: 0},
					},
				},
				{
					ID:    101,
					Title: "Gizmo",
					Variants: []sourceVariant{
						{ID: 1002, ProductID: 101, SKU: "SKU-G", Price: "5.00", InventoryQuantity: 10},
					},
				},
			}}
			_ = json.NewEncoder(w).Encode(resp)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	items, err := fetcher.FetchSourceCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)

	red := items[0]
	assert.Equal(t, "SKU-R", red.SKU)
	assert.Equal(t, "Widget", red.Title)
	assert.Equal(t, "Red", red.VariantTitle)
	assert.True(t, red.Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, 3, red.Stock)
	assert.Equal(t, []string{"summer", "sale"}, red.Tags)
	assert.Equal(t, "100", red.ProductID)
	assert.Equal(t, "500", red.InventoryItemID)
	assert.True(t, red.WeightGrams.Equal(decimal.NewFromInt(120)))
	assert.True(t, red.PrimarySource)
	assert.Equal(t, "shopify:source.myshopify.com", red.SourcePlatform)

	require.Len(t, red.Collections, 1)
	assert.Equal(t, "Summer", red.Collections[0].Title)
	assert.Equal(t, catalogsync.CollectionTypeSmart, red.Collections[0].Type)
	require.Len(t, red.Collections[0].Rules, 1)
	assert.Equal(t, "tag", red.Collections[0].Rules[0].Column)

	// Product 101 is in no collection.
	gizmo := items[2]
	assert.Equal(t, "SKU-G", gizmo.SKU)
	assert.Empty(t, gizmo.Collections)
}

func TestFeedFetcher_FetchSourceCatalogBasic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"items":[
			{"sku":"SKU-1","title":"Widget","price":"12.50","stock":4,"tags":["a"],"updated_at":"2026-08-01T00:00:00Z"},
			{"sku":"SKU-2","title":"Gizmo","price":"bad","stock":0}
		]}`))
	}))
	t.Cleanup(server.Close)

	fetcher, err := NewFeedFetcher(&FeedConfig{Name: "supplier", URL: server.URL, BearerToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, "feed:supplier", fetcher.SourcePlatform())

	items, err := fetcher.FetchSourceCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "feed:supplier", items[0].SourcePlatform)
	// Malformed price degrades to zero instead of failing the fetch.
	assert.True(t, items[1].Price.IsZero())
}

func TestNewFeedFetcher_MissingURL(t *testing.T) {
	_, err := NewFeedFetcher(&FeedConfig{})
	assert.ErrorIs(t, err, ErrFeedMissingURL)
}
