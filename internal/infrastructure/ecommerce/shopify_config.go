package ecommerce

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrShopifyConfigMissingDomain indicates the shop domain is not set
	ErrShopifyConfigMissingDomain = errors.New("shopify: missing shop domain")
	// ErrShopifyConfigMissingToken indicates the access token is not set
	ErrShopifyConfigMissingToken = errors.New("shopify: missing access token")
)

// defaultShopifyAPIVersion is the Admin REST API version the adapter speaks.
const defaultShopifyAPIVersion = "2024-01"

// ShopifyConfig holds the per-connection Shopify credentials and endpoint.
type ShopifyConfig struct {
	// ShopDomain is the myshopify domain, e.g. "example.myshopify.com"
	ShopDomain string
	// AccessToken is the decrypted Admin API access token
	AccessToken string
	// APIVersion overrides the Admin API version (optional)
	APIVersion string
	// APIBaseURL overrides the Admin API base URL, mainly for tests (optional)
	APIBaseURL string
	// TimeoutSeconds bounds each HTTP call (default 30)
	TimeoutSeconds int
}

// Validate checks the configuration
func (c *ShopifyConfig) Validate() error {
	if strings.TrimSpace(c.ShopDomain) == "" {
		return ErrShopifyConfigMissingDomain
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return ErrShopifyConfigMissingToken
	}
	return nil
}

// apiVersion returns the configured or default API version
func (c *ShopifyConfig) apiVersion() string {
	if c.APIVersion != "" {
		return c.APIVersion
	}
	return defaultShopifyAPIVersion
}

// BaseURL returns the Admin API base URL for the shop
func (c *ShopifyConfig) BaseURL() string {
	if c.APIBaseURL != "" {
		return fmt.Sprintf("%s/admin/api/%s", strings.TrimRight(c.APIBaseURL, "/"), c.apiVersion())
	}
	return fmt.Sprintf("https://%s/admin/api/%s", c.ShopDomain, c.apiVersion())
}
