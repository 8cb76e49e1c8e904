package ecommerce

// Wire types for the Shopify Admin REST API. Fields mirror the payloads the
// sync engine touches; everything else is omitted.

// ShopifyVariant is one variant in Admin API payloads.
type ShopifyVariant struct {
	ID                  int64   `json:"id,omitempty"`
	ProductID           int64   `json:"product_id,omitempty"`
	Title               string  `json:"title,omitempty"`
	SKU                 string  `json:"sku,omitempty"`
	Barcode             string  `json:"barcode,omitempty"`
	Price               string  `json:"price,omitempty"`
	CompareAtPrice      *string `json:"compare_at_price,omitempty"`
	InventoryItemID     int64   `json:"inventory_item_id,omitempty"`
	InventoryManagement string  `json:"inventory_management,omitempty"`
	InventoryPolicy     string  `json:"inventory_policy,omitempty"`
	Weight              string  `json:"weight,omitempty"`
	WeightUnit          string  `json:"weight_unit,omitempty"`
	Option1             string  `json:"option1,omitempty"`
	Position            int     `json:"position,omitempty"`
}

// ShopifyImage is one product image in Admin API payloads.
type ShopifyImage struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src"`
}

// ShopifyProduct is one product in Admin API payloads.
type ShopifyProduct struct {
	ID          int64            `json:"id,omitempty"`
	Title       string           `json:"title"`
	BodyHTML    string           `json:"body_html,omitempty"`
	Vendor      string           `json:"vendor,omitempty"`
	ProductType string           `json:"product_type,omitempty"`
	Tags        string           `json:"tags,omitempty"`
	Status      string           `json:"status,omitempty"`
	Images      []ShopifyImage   `json:"images,omitempty"`
	Variants    []ShopifyVariant `json:"variants,omitempty"`
}

// ShopifyCollectionRule is one smart collection condition.
type ShopifyCollectionRule struct {
	Column    string `json:"column"`
	Relation  string `json:"relation"`
	Condition string `json:"condition"`
}

// ShopifySmartCollection is a rule-driven collection.
type ShopifySmartCollection struct {
	ID          int64                   `json:"id,omitempty"`
	Title       string                  `json:"title"`
	Rules       []ShopifyCollectionRule `json:"rules,omitempty"`
	Disjunctive bool                    `json:"disjunctive"`
}

// ShopifyCustomCollection is a manually curated collection.
type ShopifyCustomCollection struct {
	ID    int64  `json:"id,omitempty"`
	Title string `json:"title"`
}

// ShopifyCollect associates a product with a custom collection.
type ShopifyCollect struct {
	ID           int64 `json:"id,omitempty"`
	CollectionID int64 `json:"collection_id"`
	ProductID    int64 `json:"product_id"`
}

// ShopifyInventoryLevelSet is the body of the inventory level set endpoint.
type ShopifyInventoryLevelSet struct {
	LocationID      int64 `json:"location_id"`
	InventoryItemID int64 `json:"inventory_item_id"`
	Available       int   `json:"available"`
}

// Request/response envelopes

type shopifyProductEnvelope struct {
	Product ShopifyProduct `json:"product"`
}

type shopifyProductsEnvelope struct {
	Products []ShopifyProduct `json:"products"`
}

type shopifyVariantEnvelope struct {
	Variant ShopifyVariant `json:"variant"`
}

type shopifyVariantsEnvelope struct {
	Variants []ShopifyVariant `json:"variants"`
}

type shopifySmartCollectionEnvelope struct {
	SmartCollection ShopifySmartCollection `json:"smart_collection"`
}

type shopifySmartCollectionsEnvelope struct {
	SmartCollections []ShopifySmartCollection `json:"smart_collections"`
}

type shopifyCustomCollectionEnvelope struct {
	CustomCollection ShopifyCustomCollection `json:"custom_collection"`
}

type shopifyCustomCollectionsEnvelope struct {
	CustomCollections []ShopifyCustomCollection `json:"custom_collections"`
}

type shopifyCollectEnvelope struct {
	Collect ShopifyCollect `json:"collect"`
}
