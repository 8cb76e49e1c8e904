package catalogsync

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// RuleSet
// ---------------------------------------------------------------------------

// RuleSet is a connection's mapping rule set. All fields are optional; a zero
// RuleSet keeps every item unchanged. It is validated when the connection is
// created or updated, never inside the evaluation hot path.
type RuleSet struct {
	// PriceMultiplier scales the item price before the fixed adjustment
	PriceMultiplier *decimal.Decimal `json:"price_multiplier,omitempty"`
	// PriceAdjustment is added to the price after the multiplier
	PriceAdjustment *decimal.Decimal `json:"price_adjustment,omitempty"`

	// SKUAllowList, when non-empty, restricts sync to the listed SKUs
	SKUAllowList []string `json:"sku_allow_list,omitempty"`
	// SKUDenyList always excludes the listed SKUs
	SKUDenyList []string `json:"sku_deny_list,omitempty"`

	// TagAllowList requires at least one of the listed tags on the item
	TagAllowList []string `json:"tag_allow_list,omitempty"`
	// TagDenyList excludes items carrying any of the listed tags
	TagDenyList []string `json:"tag_deny_list,omitempty"`
	// ProductTypeAllowList restricts sync to the listed product types
	ProductTypeAllowList []string `json:"product_type_allow_list,omitempty"`
	// VendorAllowList restricts sync to the listed vendors
	VendorAllowList []string `json:"vendor_allow_list,omitempty"`

	// MinPrice and MaxPrice bound the item price (inclusive)
	MinPrice *decimal.Decimal `json:"min_price,omitempty"`
	MaxPrice *decimal.Decimal `json:"max_price,omitempty"`
	// MinStock and MaxStock bound the item stock quantity (inclusive)
	MinStock *int `json:"min_stock,omitempty"`
	MaxStock *int `json:"max_stock,omitempty"`

	// ProductTypeOverride unconditionally replaces the item's product type
	ProductTypeOverride string `json:"product_type_override,omitempty"`
	// VendorOverride unconditionally replaces the item's vendor
	VendorOverride string `json:"vendor_override,omitempty"`
	// TagsOverride unconditionally replaces the item's tags
	TagsOverride []string `json:"tags_override,omitempty"`
}

// Validate checks the rule set's invariants.
func (r *RuleSet) Validate() error {
	if r.PriceMultiplier != nil && !r.PriceMultiplier.IsPositive() {
		return ErrRuleSetInvalidMultiplier
	}
	if r.MinPrice != nil && r.MaxPrice != nil && r.MinPrice.GreaterThan(*r.MaxPrice) {
		return ErrRuleSetInvalidPriceRange
	}
	if r.MinStock != nil && r.MaxStock != nil && *r.MinStock > *r.MaxStock {
		return ErrRuleSetInvalidStockRange
	}
	return nil
}

// Clone returns a deep copy of the rule set.
func (r RuleSet) Clone() RuleSet {
	c := r
	c.PriceMultiplier = cloneDecimal(r.PriceMultiplier)
	c.PriceAdjustment = cloneDecimal(r.PriceAdjustment)
	c.MinPrice = cloneDecimal(r.MinPrice)
	c.MaxPrice = cloneDecimal(r.MaxPrice)
	c.MinStock = cloneInt(r.MinStock)
	c.MaxStock = cloneInt(r.MaxStock)
	c.SKUAllowList = cloneStrings(r.SKUAllowList)
	c.SKUDenyList = cloneStrings(r.SKUDenyList)
	c.TagAllowList = cloneStrings(r.TagAllowList)
	c.TagDenyList = cloneStrings(r.TagDenyList)
	c.ProductTypeAllowList = cloneStrings(r.ProductTypeAllowList)
	c.VendorAllowList = cloneStrings(r.VendorAllowList)
	c.TagsOverride = cloneStrings(r.TagsOverride)
	return c
}

// ---------------------------------------------------------------------------
// Rules Engine
// ---------------------------------------------------------------------------

// Evaluate applies a connection's rule set to one catalog item. It returns the
// transformed item and skip=true when the item must not be synced. The
// function is pure: it never mutates its input and the skip decision is stable
// under re-evaluation.
//
// Order: SKU deny list, SKU allow list, filters (AND semantics), then price
// multiplier, fixed price adjustment, and field overrides.
func Evaluate(item CatalogItem, rules RuleSet) (CatalogItem, bool) {
	if containsFold(rules.SKUDenyList, item.SKU) {
		return item, true
	}
	if len(rules.SKUAllowList) > 0 && !containsFold(rules.SKUAllowList, item.SKU) {
		return item, true
	}

	if len(rules.TagDenyList) > 0 && intersects(item.Tags, rules.TagDenyList) {
		return item, true
	}
	if len(rules.TagAllowList) > 0 && !intersects(item.Tags, rules.TagAllowList) {
		return item, true
	}
	if len(rules.ProductTypeAllowList) > 0 && !containsFold(rules.ProductTypeAllowList, item.ProductType) {
		return item, true
	}
	if len(rules.VendorAllowList) > 0 && !containsFold(rules.VendorAllowList, item.Vendor) {
		return item, true
	}
	if rules.MinPrice != nil && item.Price.LessThan(*rules.MinPrice) {
		return item, true
	}
	if rules.MaxPrice != nil && item.Price.GreaterThan(*rules.MaxPrice) {
		return item, true
	}
	if rules.MinStock != nil && item.Stock < *rules.MinStock {
		return item, true
	}
	if rules.MaxStock != nil && item.Stock > *rules.MaxStock {
		return item, true
	}

	out := item.Clone()

	if rules.PriceMultiplier != nil {
		out.Price = out.Price.Mul(*rules.PriceMultiplier)
		if !out.CompareAtPrice.IsZero() {
			out.CompareAtPrice = out.CompareAtPrice.Mul(*rules.PriceMultiplier)
		}
	}
	if rules.PriceAdjustment != nil {
		out.Price = out.Price.Add(*rules.PriceAdjustment)
		if !out.CompareAtPrice.IsZero() {
			out.CompareAtPrice = out.CompareAtPrice.Add(*rules.PriceAdjustment)
		}
	}

	if rules.ProductTypeOverride != "" {
		out.ProductType = rules.ProductTypeOverride
	}
	if rules.VendorOverride != "" {
		out.Vendor = rules.VendorOverride
	}
	if rules.TagsOverride != nil {
		out.Tags = cloneStrings(rules.TagsOverride)
	}

	return out, false
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if containsFold(b, x) {
			return true
		}
	}
	return false
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	c := make([]string, len(s))
	copy(c, s)
	return c
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
