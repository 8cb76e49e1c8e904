package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/infrastructure/persistence/models"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.AuditLogModel{})
	require.NoError(t, err)
	return db
}

func TestGormAuditLogRepository_WriteAndQuery(t *testing.T) {
	repo := NewGormAuditLogRepository(setupAuditTestDB(t))
	ctx := context.Background()

	connID := uuid.New()
	jobID := uuid.New()
	otherConn := uuid.New()

	entries := []catalogsync.AuditLogEntry{
		catalogsync.NewAuditLogEntry(connID, jobID, "SKU-A", catalogsync.AuditLevelInfo, "created product"),
		catalogsync.NewAuditLogEntry(connID, jobID, "SKU-B", catalogsync.AuditLevelWarn, "create-missing disabled"),
		catalogsync.NewAuditLogEntry(connID, jobID, "SKU-A", catalogsync.AuditLevelError, "lookup failed"),
		catalogsync.NewAuditLogEntry(otherConn, uuid.New(), "SKU-Z", catalogsync.AuditLevelInfo, "updated stock"),
	}
	for _, e := range entries {
		require.NoError(t, repo.Write(ctx, e))
	}

	t.Run("by connection", func(t *testing.T) {
		found, err := repo.Query(ctx, catalogsync.AuditLogFilter{ConnectionID: &connID})
		require.NoError(t, err)
		assert.Len(t, found, 3)
	})

	t.Run("by level", func(t *testing.T) {
		level := catalogsync.AuditLevelWarn
		found, err := repo.Query(ctx, catalogsync.AuditLogFilter{ConnectionID: &connID, Level: &level})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "SKU-B", found[0].SKU)
	})

	t.Run("by SKU", func(t *testing.T) {
		found, err := repo.Query(ctx, catalogsync.AuditLogFilter{SKU: "SKU-A"})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("limit", func(t *testing.T) {
		found, err := repo.Query(ctx, catalogsync.AuditLogFilter{ConnectionID: &connID, Limit: 2})
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("since window", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		found, err := repo.Query(ctx, catalogsync.AuditLogFilter{Since: &future})
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestGormAuditLogRepository_CountByLevel(t *testing.T) {
	repo := NewGormAuditLogRepository(setupAuditTestDB(t))
	ctx := context.Background()
	connID := uuid.New()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Write(ctx, catalogsync.NewAuditLogEntry(connID, uuid.New(), "SKU", catalogsync.AuditLevelInfo, "ok")))
	}
	require.NoError(t, repo.Write(ctx, catalogsync.NewAuditLogEntry(connID, uuid.New(), "SKU", catalogsync.AuditLevelError, "bad")))

	counts, err := repo.CountByLevel(ctx, connID, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[catalogsync.AuditLevelInfo])
	assert.Equal(t, int64(1), counts[catalogsync.AuditLevelError])
}

func TestGormAuditLogRepository_DeleteByConnection(t *testing.T) {
	repo := NewGormAuditLogRepository(setupAuditTestDB(t))
	ctx := context.Background()

	connID := uuid.New()
	keep := uuid.New()
	require.NoError(t, repo.Write(ctx, catalogsync.NewAuditLogEntry(connID, uuid.New(), "SKU", catalogsync.AuditLevelInfo, "gone")))
	require.NoError(t, repo.Write(ctx, catalogsync.NewAuditLogEntry(keep, uuid.New(), "SKU", catalogsync.AuditLevelInfo, "kept")))

	require.NoError(t, repo.DeleteByConnection(ctx, connID))

	found, err := repo.Query(ctx, catalogsync.AuditLogFilter{ConnectionID: &connID})
	require.NoError(t, err)
	assert.Empty(t, found)

	found, err = repo.Query(ctx, catalogsync.AuditLogFilter{ConnectionID: &keep})
	require.NoError(t, err)
	assert.Len(t, found, 1)
}
