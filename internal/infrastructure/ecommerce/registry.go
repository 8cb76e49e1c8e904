package ecommerce

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/domain/destination"
	"github.com/channelsync/backend/internal/infrastructure/ratelimit"
	"github.com/channelsync/backend/internal/infrastructure/secrets"
)

// shopifyCredentials is the decrypted credential blob for Shopify connections.
type shopifyCredentials struct {
	AccessToken string `json:"access_token"`
	APIVersion  string `json:"api_version,omitempty"`
}

// wooCredentials is the decrypted credential blob for WooCommerce connections.
type wooCredentials struct {
	ConsumerKey    string `json:"consumer_key"`
	ConsumerSecret string `json:"consumer_secret"`
}

// PlatformRegistry builds destination adapters from connection records. It
// owns credential decryption; the domain layer only ever sees the encrypted
// blob.
type PlatformRegistry struct {
	dispatcher *ratelimit.Registry
	decryptor  *secrets.Decryptor
	logger     *zap.Logger
}

// NewPlatformRegistry creates the registry backing destination.Registry.
func NewPlatformRegistry(dispatcher *ratelimit.Registry, decryptor *secrets.Decryptor, logger *zap.Logger) *PlatformRegistry {
	return &PlatformRegistry{
		dispatcher: dispatcher,
		decryptor:  decryptor,
		logger:     logger,
	}
}

// ForConnection returns the adapter for the connection's platform type.
func (r *PlatformRegistry) ForConnection(conn catalogsync.Connection) (destination.Platform, error) {
	if conn.Credentials == "" {
		return nil, catalogsync.ErrConnectionNoCredentials
	}

	plaintext, err := r.decryptor.Decrypt(conn.Credentials)
	if err != nil {
		return nil, fmt.Errorf("ecommerce: decrypt credentials for connection %s: %w", conn.ID, err)
	}

	switch conn.PlatformType {
	case catalogsync.PlatformTypeShopify:
		var creds shopifyCredentials
		if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
			return nil, fmt.Errorf("ecommerce: parse shopify credentials: %w", err)
		}
		return NewShopifyAdapter(&ShopifyConfig{
			ShopDomain:  conn.TargetDomain,
			AccessToken: creds.AccessToken,
			APIVersion:  creds.APIVersion,
		}, r.dispatcher)

	case catalogsync.PlatformTypeWooCommerce:
		var creds wooCredentials
		if err := json.Unmarshal([]byte(plaintext), &creds); err != nil {
			return nil, fmt.Errorf("ecommerce: parse woocommerce credentials: %w", err)
		}
		return NewWooAdapter(&WooConfig{
			StoreDomain:    conn.TargetDomain,
			ConsumerKey:    creds.ConsumerKey,
			ConsumerSecret: creds.ConsumerSecret,
		}, r.dispatcher)

	default:
		return nil, destination.ErrPlatformUnknown
	}
}

// Ensure PlatformRegistry implements the destination.Registry port
var _ destination.Registry = (*PlatformRegistry)(nil)
