package ecommerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/domain/destination"
	"github.com/channelsync/backend/internal/infrastructure/ratelimit"
	"github.com/channelsync/backend/internal/infrastructure/secrets"
)

func newTestRegistry(t *testing.T) (*PlatformRegistry, *secrets.Decryptor) {
	t.Helper()

	decryptor, err := secrets.NewDecryptor("test-passphrase", "test-salt")
	require.NoError(t, err)

	dispatcher := ratelimit.NewRegistry(ratelimit.DefaultConfig(), zap.NewNop())
	return NewPlatformRegistry(dispatcher, decryptor, zap.NewNop()), decryptor
}

func TestPlatformRegistry_ForConnection(t *testing.T) {
	registry, decryptor := newTestRegistry(t)

	t.Run("shopify", func(t *testing.T) {
		blob, err := decryptor.Encrypt(`{"access_token":"shpat_x"}`)
		require.NoError(t, err)

		platform, err := registry.ForConnection(catalogsync.Connection{
			PlatformType: catalogsync.PlatformTypeShopify,
			TargetDomain: "example.myshopify.com",
			Credentials:  blob,
		})
		require.NoError(t, err)
		assert.Equal(t, catalogsync.PlatformTypeShopify, platform.PlatformType())
		assert.Equal(t, "example.myshopify.com", platform.Domain())
	})

	t.Run("woocommerce", func(t *testing.T) {
		blob, err := decryptor.Encrypt(`{"consumer_key":"ck_x","consumer_secret":"cs_x"}`)
		require.NoError(t, err)

		platform, err := registry.ForConnection(catalogsync.Connection{
			PlatformType: catalogsync.PlatformTypeWooCommerce,
			TargetDomain: "shop.example.com",
			Credentials:  blob,
		})
		require.NoError(t, err)
		assert.Equal(t, catalogsync.PlatformTypeWooCommerce, platform.PlatformType())
	})

	t.Run("missing credentials", func(t *testing.T) {
		_, err := registry.ForConnection(catalogsync.Connection{
			PlatformType: catalogsync.PlatformTypeShopify,
			TargetDomain: "example.myshopify.com",
		})
		assert.ErrorIs(t, err, catalogsync.ErrConnectionNoCredentials)
	})

	t.Run("unknown platform", func(t *testing.T) {
		blob, err := decryptor.Encrypt(`{}`)
		require.NoError(t, err)

		_, err = registry.ForConnection(catalogsync.Connection{
			PlatformType: "magento",
			TargetDomain: "shop.example.com",
			Credentials:  blob,
		})
		assert.ErrorIs(t, err, destination.ErrPlatformUnknown)
	})

	t.Run("garbled blob", func(t *testing.T) {
		_, err := registry.ForConnection(catalogsync.Connection{
			PlatformType: catalogsync.PlatformTypeShopify,
			TargetDomain: "example.myshopify.com",
			Credentials:  "not-a-ciphertext",
		})
		assert.Error(t, err)
	})
}
