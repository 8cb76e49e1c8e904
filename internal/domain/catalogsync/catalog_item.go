package catalogsync

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// CatalogItem
// ---------------------------------------------------------------------------

// CollectionType distinguishes rule-driven collections from manually curated ones.
type CollectionType string

const (
	// CollectionTypeSmart collections include members via their own rule conditions
	CollectionTypeSmart CollectionType = "smart"
	// CollectionTypeCustom collections require explicit product association
	CollectionTypeCustom CollectionType = "custom"
)

// CollectionRule is one condition of a smart collection.
type CollectionRule struct {
	Column    string `json:"column"`
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}

// SourceCollection is a collection attached to a catalog item on its source platform.
type SourceCollection struct {
	Title       string           `json:"title"`
	Type        CollectionType   `json:"type"`
	Rules       []CollectionRule `json:"rules,omitempty"`
	Disjunctive bool             `json:"disjunctive,omitempty"`
}

// CatalogItem is one sellable variant pulled from a source platform. It is an
// in-memory value; it is never persisted. Items without a SKU are dropped
// before they reach the engine.
type CatalogItem struct {
	// SKU is the stock keeping unit; required and non-empty
	SKU string
	// Title is the product title
	Title string
	// VariantTitle is the variant-level title (e.g. "Red / L")
	VariantTitle string
	// Price is the selling price
	Price decimal.Decimal
	// CompareAtPrice is the strike-through price (zero when unset)
	CompareAtPrice decimal.Decimal
	// Currency is the price currency code
	Currency string
	// Stock is the available quantity
	Stock int
	// Images holds product image URLs
	Images []string
	// Description is the product body text
	Description string
	// ProductType is the source category/type
	ProductType string
	// Vendor is the source vendor name
	Vendor string
	// Tags are the source tags
	Tags []string
	// Barcode is the variant barcode (may be empty)
	Barcode string
	// WeightGrams is the variant weight in grams
	WeightGrams decimal.Decimal
	// ProductID is the source product identifier the variant belongs to
	ProductID string
	// VariantID is the source variant identifier
	VariantID string
	// InventoryItemID is the source inventory item identifier
	InventoryItemID string
	// Collections are the source collections the product belongs to
	Collections []SourceCollection
	// SourcePlatform tags which source platform reported the item
	SourcePlatform string
	// PrimarySource marks the winning source for cross-platform SKU dedup
	PrimarySource bool
	// UpdatedAt is the source-side last update time
	UpdatedAt time.Time
}

// HasSKU returns true if the item carries a non-empty SKU.
func (i CatalogItem) HasSKU() bool {
	return strings.TrimSpace(i.SKU) != ""
}

// GroupKey returns the key the reconciler groups variants by: the source
// product identifier, falling back to the SKU for standalone variants.
func (i CatalogItem) GroupKey() string {
	if i.ProductID != "" {
		return i.SourcePlatform + ":" + i.ProductID
	}
	return "sku:" + i.SKU
}

// Clone returns a deep copy of the item.
func (i CatalogItem) Clone() CatalogItem {
	c := i
	c.Images = cloneStrings(i.Images)
	c.Tags = cloneStrings(i.Tags)
	if i.Collections != nil {
		c.Collections = make([]SourceCollection, len(i.Collections))
		copy(c.Collections, i.Collections)
		for j, col := range i.Collections {
			if col.Rules != nil {
				rules := make([]CollectionRule, len(col.Rules))
				copy(rules, col.Rules)
				c.Collections[j].Rules = rules
			}
		}
	}
	return c
}

// ---------------------------------------------------------------------------
// Deduplication and grouping
// ---------------------------------------------------------------------------

// Deduplicate collapses items from multiple source platforms by SKU. Items
// without a SKU are dropped. When two sources report the same SKU, the record
// from a primary-tagged source wins; among equals the most recently updated
// record wins.
func Deduplicate(items []CatalogItem) []CatalogItem {
	bySKU := make(map[string]CatalogItem, len(items))
	order := make([]string, 0, len(items))

	for _, item := range items {
		if !item.HasSKU() {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(item.SKU))
		existing, ok := bySKU[key]
		if !ok {
			bySKU[key] = item
			order = append(order, key)
			continue
		}
		if wins(item, existing) {
			bySKU[key] = item
		}
	}

	out := make([]CatalogItem, 0, len(order))
	for _, key := range order {
		out = append(out, bySKU[key])
	}
	return out
}

// wins reports whether candidate should replace current in the dedup map.
func wins(candidate, current CatalogItem) bool {
	if candidate.PrimarySource != current.PrimarySource {
		return candidate.PrimarySource
	}
	return candidate.UpdatedAt.After(current.UpdatedAt)
}

// ProductGroup is one logical product: all variants sharing a group key.
type ProductGroup struct {
	Key   string
	Items []CatalogItem
}

// GroupByProduct buckets items into per-product variant sets, keyed by source
// product identifier with SKU fallback. Group order follows first appearance
// so reconciliation is deterministic.
func GroupByProduct(items []CatalogItem) []ProductGroup {
	byKey := make(map[string][]CatalogItem)
	order := make([]string, 0)

	for _, item := range items {
		key := item.GroupKey()
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], item)
	}

	groups := make([]ProductGroup, 0, len(order))
	for _, key := range order {
		groups = append(groups, ProductGroup{Key: key, Items: byKey[key]})
	}
	return groups
}

// FilterInStock drops items with zero or negative stock. Out-of-stock items
// are never synced; see the connection documentation for the rationale.
func FilterInStock(items []CatalogItem) []CatalogItem {
	out := make([]CatalogItem, 0, len(items))
	for _, item := range items {
		if item.Stock > 0 {
			out = append(out, item)
		}
	}
	return out
}

// FilterBySKUs restricts items to the given SKU set (case-insensitive).
// A nil or empty filter keeps everything.
func FilterBySKUs(items []CatalogItem, skus []string) []CatalogItem {
	if len(skus) == 0 {
		return items
	}
	want := make(map[string]struct{}, len(skus))
	for _, s := range skus {
		want[strings.ToUpper(strings.TrimSpace(s))] = struct{}{}
	}
	out := make([]CatalogItem, 0, len(items))
	for _, item := range items {
		if _, ok := want[strings.ToUpper(strings.TrimSpace(item.SKU))]; ok {
			out = append(out, item)
		}
	}
	return out
}

// SKUs returns the sorted distinct SKU list of the items.
func SKUs(items []CatalogItem) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.SKU]; ok {
			continue
		}
		seen[item.SKU] = struct{}{}
		out = append(out, item.SKU)
	}
	sort.Strings(out)
	return out
}
