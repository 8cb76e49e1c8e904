package ecommerce

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWooConfigMissingDomain indicates the store domain is not set
	ErrWooConfigMissingDomain = errors.New("woocommerce: missing store domain")
	// ErrWooConfigMissingKey indicates the consumer key is not set
	ErrWooConfigMissingKey = errors.New("woocommerce: missing consumer key")
	// ErrWooConfigMissingSecret indicates the consumer secret is not set
	ErrWooConfigMissingSecret = errors.New("woocommerce: missing consumer secret")
)

// wooAPIPrefix is the WooCommerce REST API v3 path prefix.
const wooAPIPrefix = "/wp-json/wc/v3"

// WooConfig holds the per-connection WooCommerce credentials and endpoint.
type WooConfig struct {
	// StoreDomain is the store's domain, e.g. "shop.example.com"
	StoreDomain string
	// ConsumerKey is the decrypted REST API consumer key
	ConsumerKey string
	// ConsumerSecret is the decrypted REST API consumer secret
	ConsumerSecret string
	// APIBaseURL overrides the API base URL, mainly for tests (optional)
	APIBaseURL string
	// TimeoutSeconds bounds each HTTP call (default 30)
	TimeoutSeconds int
}

// Validate checks the configuration
func (c *WooConfig) Validate() error {
	if strings.TrimSpace(c.StoreDomain) == "" {
		return ErrWooConfigMissingDomain
	}
	if strings.TrimSpace(c.ConsumerKey) == "" {
		return ErrWooConfigMissingKey
	}
	if strings.TrimSpace(c.ConsumerSecret) == "" {
		return ErrWooConfigMissingSecret
	}
	return nil
}

// BaseURL returns the REST API base URL for the store
func (c *WooConfig) BaseURL() string {
	if c.APIBaseURL != "" {
		return strings.TrimRight(c.APIBaseURL, "/") + wooAPIPrefix
	}
	return fmt.Sprintf("https://%s%s", c.StoreDomain, wooAPIPrefix)
}
