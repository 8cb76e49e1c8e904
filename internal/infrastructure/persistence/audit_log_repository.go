package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/infrastructure/persistence/models"
)

// defaultAuditQueryLimit bounds unpaged audit queries.
const defaultAuditQueryLimit = 100

// GormAuditLogRepository implements AuditLogRepository using GORM
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Write appends one entry
func (r *GormAuditLogRepository) Write(ctx context.Context, entry catalogsync.AuditLogEntry) error {
	var model models.AuditLogModel
	model.FromDomain(entry)
	return r.db.WithContext(ctx).Create(&model).Error
}

// Query returns entries matching the filter, newest first
func (r *GormAuditLogRepository) Query(ctx context.Context, filter catalogsync.AuditLogFilter) ([]catalogsync.AuditLogEntry, error) {
	query := r.db.WithContext(ctx).Model(&models.AuditLogModel{})

	if filter.ConnectionID != nil {
		query = query.Where("connection_id = ?", *filter.ConnectionID)
	}
	if filter.JobID != nil {
		query = query.Where("job_id = ?", *filter.JobID)
	}
	if filter.SKU != "" {
		query = query.Where("sku = ?", filter.SKU)
	}
	if filter.Level != nil {
		query = query.Where("level = ?", *filter.Level)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditQueryLimit
	}

	var entryModels []models.AuditLogModel
	if err := query.Order("created_at DESC").Limit(limit).Find(&entryModels).Error; err != nil {
		return nil, err
	}

	entries := make([]catalogsync.AuditLogEntry, len(entryModels))
	for i, model := range entryModels {
		entries[i] = model.ToDomain()
	}
	return entries, nil
}

// CountByLevel counts entries per level for a connection since a time
func (r *GormAuditLogRepository) CountByLevel(ctx context.Context, connectionID uuid.UUID, since time.Time) (map[catalogsync.AuditLevel]int64, error) {
	type row struct {
		Level catalogsync.AuditLevel
		Count int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.AuditLogModel{}).
		Select("level, count(*) as count").
		Where("connection_id = ? AND created_at >= ?", connectionID, since).
		Group("level").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[catalogsync.AuditLevel]int64, len(rows))
	for _, r := range rows {
		counts[r.Level] = r.Count
	}
	return counts, nil
}

// DeleteByConnection bulk-deletes a connection's audit trail
func (r *GormAuditLogRepository) DeleteByConnection(ctx context.Context, connectionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Delete(&models.AuditLogModel{}).Error
}

// Ensure GormAuditLogRepository implements the repository port
var _ catalogsync.AuditLogRepository = (*GormAuditLogRepository)(nil)
