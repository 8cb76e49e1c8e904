package catalogsync

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(sku, productID, platform string, opts ...func(*CatalogItem)) CatalogItem {
	it := CatalogItem{
		SKU:            sku,
		Title:          "Widget",
		Price:          decimal.NewFromInt(10),
		Stock:          5,
		ProductID:      productID,
		SourcePlatform: platform,
	}
	for _, opt := range opts {
		opt(&it)
	}
	return it
}

func TestGroupKey(t *testing.T) {
	withProduct := item("SKU-1", "p1", "shopify")
	assert.Equal(t, "shopify:p1", withProduct.GroupKey())

	standalone := item("SKU-2", "", "feed")
	assert.Equal(t, "sku:SKU-2", standalone.GroupKey())
}

func TestDeduplicate(t *testing.T) {
	older := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(24 * time.Hour)

	t.Run("drops items without sku", func(t *testing.T) {
		out := Deduplicate([]CatalogItem{
			item("", "p1", "shopify"),
			item("  ", "p1", "shopify"),
			item("SKU-1", "p1", "shopify"),
		})
		require.Len(t, out, 1)
		assert.Equal(t, "SKU-1", out[0].SKU)
	})

	t.Run("primary source wins", func(t *testing.T) {
		feed := item("SKU-1", "p1", "feed", func(i *CatalogItem) { i.UpdatedAt = newer })
		shopify := item("SKU-1", "p2", "shopify", func(i *CatalogItem) {
			i.PrimarySource = true
			i.UpdatedAt = older
		})

		out := Deduplicate([]CatalogItem{feed, shopify})
		require.Len(t, out, 1)
		assert.Equal(t, "shopify", out[0].SourcePlatform, "primary beats recency")

		// Order of arrival must not matter
		out = Deduplicate([]CatalogItem{shopify, feed})
		require.Len(t, out, 1)
		assert.Equal(t, "shopify", out[0].SourcePlatform)
	})

	t.Run("recency breaks ties", func(t *testing.T) {
		a := item("SKU-1", "p1", "feed", func(i *CatalogItem) { i.UpdatedAt = older })
		b := item("SKU-1", "p2", "shopify", func(i *CatalogItem) { i.UpdatedAt = newer })

		out := Deduplicate([]CatalogItem{a, b})
		require.Len(t, out, 1)
		assert.Equal(t, "shopify", out[0].SourcePlatform)
	})

	t.Run("sku match is case-insensitive", func(t *testing.T) {
		out := Deduplicate([]CatalogItem{
			item("sku-1", "p1", "feed"),
			item("SKU-1", "p2", "shopify", func(i *CatalogItem) { i.PrimarySource = true }),
		})
		require.Len(t, out, 1)
		assert.Equal(t, "shopify", out[0].SourcePlatform)
	})

	t.Run("first-seen order is preserved", func(t *testing.T) {
		out := Deduplicate([]CatalogItem{
			item("B", "p1", "feed"),
			item("A", "p2", "feed"),
			item("B", "p3", "feed"),
		})
		require.Len(t, out, 2)
		assert.Equal(t, "B", out[0].SKU)
		assert.Equal(t, "A", out[1].SKU)
	})
}

func TestGroupByProduct(t *testing.T) {
	items := []CatalogItem{
		item("SKU-1", "p1", "shopify"),
		item("SKU-2", "p2", "shopify"),
		item("SKU-3", "p1", "shopify"),
		item("SKU-4", "", "feed"),
	}

	groups := GroupByProduct(items)
	require.Len(t, groups, 3)

	assert.Equal(t, "shopify:p1", groups[0].Key)
	assert.Len(t, groups[0].Items, 2)
	assert.Equal(t, "shopify:p2", groups[1].Key)
	assert.Equal(t, "sku:SKU-4", groups[2].Key)
}

func TestFilterInStock(t *testing.T) {
	items := []CatalogItem{
		item("A", "", "feed", func(i *CatalogItem) { i.Stock = 3 }),
		item("B", "", "feed", func(i *CatalogItem) { i.Stock = 0 }),
		item("C", "", "feed", func(i *CatalogItem) { i.Stock = -1 }),
	}

	out := FilterInStock(items)
	require.Len(t, out, 1)
	assert.Equal(t, "A", out[0].SKU)
}

func TestFilterBySKUs(t *testing.T) {
	items := []CatalogItem{
		item("SKU-1", "", "feed"),
		item("SKU-2", "", "feed"),
	}

	assert.Len(t, FilterBySKUs(items, nil), 2, "empty filter keeps everything")

	out := FilterBySKUs(items, []string{" sku-2 "})
	require.Len(t, out, 1)
	assert.Equal(t, "SKU-2", out[0].SKU)
}

func TestSKUs(t *testing.T) {
	items := []CatalogItem{
		item("B", "", "feed"),
		item("A", "", "feed"),
		item("B", "", "feed"),
	}
	assert.Equal(t, []string{"A", "B"}, SKUs(items))
}

func TestCatalogItemClone(t *testing.T) {
	orig := item("SKU-1", "p1", "shopify", func(i *CatalogItem) {
		i.Images = []string{"a.jpg"}
		i.Tags = []string{"new"}
		i.Collections = []SourceCollection{{
			Title: "Summer",
			Type:  CollectionTypeSmart,
			Rules: []CollectionRule{{Column: "tag", Relation: "equals", Condition: "summer"}},
		}}
	})

	clone := orig.Clone()
	clone.Images[0] = "b.jpg"
	clone.Tags[0] = "old"
	clone.Collections[0].Rules[0].Condition = "winter"

	assert.Equal(t, "a.jpg", orig.Images[0])
	assert.Equal(t, "new", orig.Tags[0])
	assert.Equal(t, "summer", orig.Collections[0].Rules[0].Condition)
}
