// Package destination defines the port interface for destination e-commerce
// platforms following the Ports & Adapters pattern: the interface lives in
// the domain layer, and concrete adapters (Shopify, WooCommerce) live in the
// infrastructure layer.
package destination
