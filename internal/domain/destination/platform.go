package destination

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/channelsync/backend/internal/domain/catalogsync"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	ErrVariantNotFound    = errors.New("destination: variant not found")
	ErrProductNotFound    = errors.New("destination: product not found")
	ErrCollectionNotFound = errors.New("destination: collection not found")
	ErrPlatformUnknown    = errors.New("destination: unknown platform type")
)

// ---------------------------------------------------------------------------
// Value objects
// ---------------------------------------------------------------------------

// Variant is a destination-side product variant.
type Variant struct {
	// ID is the destination variant identifier
	ID string
	// ProductID is the destination product the variant belongs to
	ProductID string
	// SKU is the variant stock keeping unit
	SKU string
	// Title is the variant title
	Title string
	// Price is the current destination price
	Price decimal.Decimal
	// CompareAtPrice is the current strike-through price (zero when unset)
	CompareAtPrice decimal.Decimal
	// InventoryItemID keys inventory level updates (empty when the platform
	// does not expose one)
	InventoryItemID string
}

// Product is a destination-side product with its variants.
type Product struct {
	// ID is the destination product identifier
	ID string
	// Title is the product title
	Title string
	// Variants are the product's variants
	Variants []Variant
}

// HasSKU reports whether any variant of the product carries the given SKU.
func (p *Product) HasSKU(sku string) bool {
	for _, v := range p.Variants {
		if v.SKU == sku {
			return true
		}
	}
	return false
}

// NewVariant describes a variant to create on the destination.
type NewVariant struct {
	SKU            string
	Barcode        string
	Price          decimal.Decimal
	CompareAtPrice decimal.Decimal
	WeightGrams    decimal.Decimal
	// OptionTitle is the variant's option value (e.g. "Red / L")
	OptionTitle string
	// Position orders variants within the product
	Position int
}

// NewProduct describes a product to create on the destination, carrying all
// of its initial variants at once.
type NewProduct struct {
	Title       string
	Description string
	Vendor      string
	ProductType string
	Tags        []string
	Images      []string
	// PublishStatus is the initial publish state from the connection setting
	PublishStatus catalogsync.PublishStatus
	Variants      []NewVariant
}

// Collection is a destination-side collection.
type Collection struct {
	// ID is the destination collection identifier
	ID string
	// Title is the collection title
	Title string
	// Type preserves the source collection type
	Type catalogsync.CollectionType
}

// NewCollection describes a collection to create on the destination.
type NewCollection struct {
	Title string
	Type  catalogsync.CollectionType
	// Rules apply to smart collections only
	Rules []catalogsync.CollectionRule
	// Disjunctive selects any-rule instead of all-rule matching
	Disjunctive bool
}

// InventoryLevel sets available stock for one inventory item at one location.
type InventoryLevel struct {
	LocationID      string
	InventoryItemID string
	Available       int
}

// ---------------------------------------------------------------------------
// Platform port
// ---------------------------------------------------------------------------

// Platform is the port interface the reconciler drives a destination store
// through. Adapters route every call through the rate-limited dispatcher;
// retries are layered outside by the caller.
type Platform interface {
	// PlatformType returns the destination platform kind
	PlatformType() catalogsync.PlatformType

	// Domain returns the destination domain the adapter targets, which keys
	// the dispatcher's token buckets
	Domain() string

	// FindVariantBySKU looks a variant up by exact SKU match. Fuzzy results
	// from the platform's search endpoint must be verified before returning.
	// Returns ErrVariantNotFound when no exact match exists.
	FindVariantBySKU(ctx context.Context, sku string) (*Variant, error)

	// FindProductByTitle looks a product up by normalized title match.
	// Returns ErrProductNotFound when no match exists.
	FindProductByTitle(ctx context.Context, title string) (*Product, error)

	// GetProduct fetches a product with its variants
	GetProduct(ctx context.Context, productID string) (*Product, error)

	// CreateProduct creates a product carrying all given variants
	CreateProduct(ctx context.Context, product NewProduct) (*Product, error)

	// AddVariant adds one variant to an existing product
	AddVariant(ctx context.Context, productID string, variant NewVariant) (*Variant, error)

	// UpdateVariantPrice sets the variant's price and compare-at price
	UpdateVariantPrice(ctx context.Context, variantID string, price, compareAt decimal.Decimal) error

	// SetInventoryLevel sets available stock at a location (inventory tier)
	SetInventoryLevel(ctx context.Context, level InventoryLevel) error

	// FindCollectionByTitle looks a collection up by title.
	// Returns ErrCollectionNotFound when no match exists.
	FindCollectionByTitle(ctx context.Context, title string) (*Collection, error)

	// CreateCollection creates a collection preserving its type
	CreateCollection(ctx context.Context, collection NewCollection) (*Collection, error)

	// AddProductToCollection explicitly associates a product with a custom
	// collection. Smart collections include members via their own rules.
	AddProductToCollection(ctx context.Context, collectionID, productID string) error
}

// Registry builds a platform adapter for a connection. Implemented in the
// infrastructure layer where credentials are decrypted and HTTP clients wired.
type Registry interface {
	// ForConnection returns the adapter for the connection's platform type
	ForConnection(conn catalogsync.Connection) (Platform, error)
}
