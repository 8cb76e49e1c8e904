package ecommerce

// Wire types for the WooCommerce REST API v3. WooCommerce has no separate
// variant resource the way Shopify does, so the sync engine maps each variant
// onto a simple product and each collection onto a product category.

// WooCategoryRef references a product category on a product.
type WooCategoryRef struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// WooTagRef references a product tag on a product.
type WooTagRef struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// WooImage is one product image.
type WooImage struct {
	ID  int64  `json:"id,omitempty"`
	Src string `json:"src,omitempty"`
}

// WooProduct is one product in REST API payloads.
type WooProduct struct {
	ID            int64            `json:"id,omitempty"`
	Name          string           `json:"name,omitempty"`
	Type          string           `json:"type,omitempty"`
	Status        string           `json:"status,omitempty"`
	SKU           string           `json:"sku,omitempty"`
	Description   string           `json:"description,omitempty"`
	RegularPrice  string           `json:"regular_price,omitempty"`
	SalePrice     string           `json:"sale_price,omitempty"`
	Price         string           `json:"price,omitempty"`
	ManageStock   bool             `json:"manage_stock,omitempty"`
	StockQuantity *int             `json:"stock_quantity,omitempty"`
	StockStatus   string           `json:"stock_status,omitempty"`
	Weight        string           `json:"weight,omitempty"`
	Categories    []WooCategoryRef `json:"categories,omitempty"`
	Tags          []WooTagRef      `json:"tags,omitempty"`
	Images        []WooImage       `json:"images,omitempty"`
}

// WooCategory is one product category.
type WooCategory struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Partial update payloads. These omit omitempty so that clearing a sale
// price or zeroing stock actually reaches the store.

type wooPriceUpdate struct {
	RegularPrice string `json:"regular_price"`
	SalePrice    string `json:"sale_price"`
}

type wooStockUpdate struct {
	ManageStock   bool   `json:"manage_stock"`
	StockQuantity int    `json:"stock_quantity"`
	StockStatus   string `json:"stock_status"`
}

type wooCategoryUpdate struct {
	Categories []WooCategoryRef `json:"categories"`
}
