package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/infrastructure/persistence/models"
)

func setupConnectionTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.ConnectionModel{})
	require.NoError(t, err)
	return db
}

func newTestConnection(t *testing.T) *catalogsync.Connection {
	t.Helper()
	conn, err := catalogsync.NewConnection(uuid.New(), catalogsync.PlatformTypeShopify, "example.myshopify.com")
	require.NoError(t, err)
	return conn
}

func TestGormConnectionRepository_SaveAndFind(t *testing.T) {
	repo := NewGormConnectionRepository(setupConnectionTestDB(t))
	ctx := context.Background()

	conn := newTestConnection(t)
	multiplier := decimal.RequireFromString("1.2")
	conn.Rules = catalogsync.RuleSet{
		PriceMultiplier: &multiplier,
		SKUDenyList:     []string{"SKU-X"},
	}
	conn.SyncPrice = true
	conn.CreateMissing = true
	require.NoError(t, repo.Save(ctx, conn))

	found, err := repo.FindByID(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, conn.ID, found.ID)
	assert.Equal(t, catalogsync.PlatformTypeShopify, found.PlatformType)
	assert.True(t, found.CreateMissing)

	// The rule set round-trips through its JSON column.
	require.NotNil(t, found.Rules.PriceMultiplier)
	assert.True(t, found.Rules.PriceMultiplier.Equal(multiplier))
	assert.Equal(t, []string{"SKU-X"}, found.Rules.SKUDenyList)
}

func TestGormConnectionRepository_FindByID_NotFound(t *testing.T) {
	repo := NewGormConnectionRepository(setupConnectionTestDB(t))
	_, err := repo.FindByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, catalogsync.ErrConnectionNotFound)
}

func TestGormConnectionRepository_FindAllActive(t *testing.T) {
	repo := NewGormConnectionRepository(setupConnectionTestDB(t))
	ctx := context.Background()

	active := newTestConnection(t)
	require.NoError(t, repo.Save(ctx, active))

	paused := newTestConnection(t)
	paused.Pause()
	require.NoError(t, repo.Save(ctx, paused))

	found, err := repo.FindAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, active.ID, found[0].ID)
}

func TestGormConnectionRepository_FindByInstallation(t *testing.T) {
	repo := NewGormConnectionRepository(setupConnectionTestDB(t))
	ctx := context.Background()

	installationID := uuid.New()
	conn, err := catalogsync.NewConnection(installationID, catalogsync.PlatformTypeWooCommerce, "shop.example.com")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, conn))
	require.NoError(t, repo.Save(ctx, newTestConnection(t)))

	found, err := repo.FindByInstallation(ctx, installationID)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, conn.ID, found[0].ID)
}

func TestGormConnectionRepository_Updates(t *testing.T) {
	repo := NewGormConnectionRepository(setupConnectionTestDB(t))
	ctx := context.Background()

	conn := newTestConnection(t)
	require.NoError(t, repo.Save(ctx, conn))

	t.Run("last synced at", func(t *testing.T) {
		at := time.Now().Truncate(time.Second)
		require.NoError(t, repo.UpdateLastSyncedAt(ctx, conn.ID, at))

		found, err := repo.FindByID(ctx, conn.ID)
		require.NoError(t, err)
		require.NotNil(t, found.LastSyncedAt)
		assert.WithinDuration(t, at, *found.LastSyncedAt, time.Second)
	})

	t.Run("status", func(t *testing.T) {
		require.NoError(t, repo.UpdateStatus(ctx, conn.ID, catalogsync.ConnectionStatusPaused))

		found, err := repo.FindByID(ctx, conn.ID)
		require.NoError(t, err)
		assert.Equal(t, catalogsync.ConnectionStatusPaused, found.Status)
	})

	t.Run("missing connection", func(t *testing.T) {
		assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.New(), catalogsync.ConnectionStatusPaused), catalogsync.ErrConnectionNotFound)
		assert.ErrorIs(t, repo.UpdateLastSyncedAt(ctx, uuid.New(), time.Now()), catalogsync.ErrConnectionNotFound)
	})
}
