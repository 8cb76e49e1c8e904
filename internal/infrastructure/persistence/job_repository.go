package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/channelsync/backend/internal/domain/catalogsync"
	"github.com/channelsync/backend/internal/infrastructure/persistence/models"
)

// GormJobRepository implements JobRepository using GORM. The job table is the
// single source of truth for claim ownership; Claim is a conditional UPDATE
// so two workers can never both win the same job.
type GormJobRepository struct {
	db *gorm.DB
}

// NewGormJobRepository creates a new GormJobRepository
func NewGormJobRepository(db *gorm.DB) *GormJobRepository {
	return &GormJobRepository{db: db}
}

// Enqueue persists a new queued job with optional delta SKUs
func (r *GormJobRepository) Enqueue(ctx context.Context, job *catalogsync.Job, skus []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.JobModel
		model.FromDomain(job)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}

		for _, sku := range skus {
			item, err := catalogsync.NewJobItem(job.ID, sku)
			if err != nil {
				return err
			}
			var itemModel models.JobItemModel
			itemModel.FromDomain(item)
			if err := tx.Create(&itemModel).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Claim atomically selects the oldest queued job and marks it running. The
// optimistic conditional UPDATE keyed on state makes the read-then-set safe
// even with multiple worker processes.
func (r *GormJobRepository) Claim(ctx context.Context) (*catalogsync.Job, error) {
	for {
		var model models.JobModel
		err := r.db.WithContext(ctx).
			Where("state = ?", catalogsync.JobStateQueued).
			Order("created_at ASC").
			First(&model).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, catalogsync.ErrNoQueuedJobs
			}
			return nil, err
		}

		job := model.ToDomain()
		if err := job.Start(); err != nil {
			return nil, err
		}

		result := r.db.WithContext(ctx).
			Model(&models.JobModel{}).
			Where("id = ? AND state = ?", job.ID, catalogsync.JobStateQueued).
			Updates(map[string]interface{}{
				"state":      job.State,
				"started_at": job.StartedAt,
				"updated_at": job.UpdatedAt,
			})
		if result.Error != nil {
			return nil, result.Error
		}
		if result.RowsAffected == 1 {
			return job, nil
		}
		// Another worker won this job; pick the next oldest.
	}
}

// Update persists a job state change
func (r *GormJobRepository) Update(ctx context.Context, job *catalogsync.Job) error {
	var model models.JobModel
	model.FromDomain(job)
	return r.db.WithContext(ctx).Save(&model).Error
}

// FindByID finds a job by its ID
func (r *GormJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalogsync.Job, error) {
	var model models.JobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalogsync.ErrJobNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// ListByConnection lists jobs for a connection, newest first
func (r *GormJobRepository) ListByConnection(ctx context.Context, connectionID uuid.UUID, limit int) ([]catalogsync.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobModels []models.JobModel
	if err := r.db.WithContext(ctx).
		Where("connection_id = ?", connectionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]catalogsync.Job, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = *model.ToDomain()
	}
	return jobs, nil
}

// CancelQueued dead-letters all queued jobs of a connection. Running jobs are
// untouched; they finish on their own.
func (r *GormJobRepository) CancelQueued(ctx context.Context, connectionID uuid.UUID) (int64, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Where("connection_id = ? AND state = ?", connectionID, catalogsync.JobStateQueued).
		Updates(map[string]interface{}{
			"state":       catalogsync.JobStateDead,
			"last_error":  catalogsync.CancelledError,
			"finished_at": now,
			"updated_at":  now,
		})
	return result.RowsAffected, result.Error
}

// ListItems returns the job items of a delta job
func (r *GormJobRepository) ListItems(ctx context.Context, jobID uuid.UUID) ([]catalogsync.JobItem, error) {
	var itemModels []models.JobItemModel
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Find(&itemModels).Error; err != nil {
		return nil, err
	}

	items := make([]catalogsync.JobItem, len(itemModels))
	for i, model := range itemModels {
		items[i] = *model.ToDomain()
	}
	return items, nil
}

// UpdateItem persists a job item state change
func (r *GormJobRepository) UpdateItem(ctx context.Context, item *catalogsync.JobItem) error {
	var model models.JobItemModel
	model.FromDomain(item)
	return r.db.WithContext(ctx).Save(&model).Error
}

// Progress derives completion counts from the job items
func (r *GormJobRepository) Progress(ctx context.Context, jobID uuid.UUID) (catalogsync.JobProgress, error) {
	var progress catalogsync.JobProgress

	type row struct {
		State catalogsync.JobItemState
		Count int
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.JobItemModel{}).
		Select("state, count(*) as count").
		Where("job_id = ?", jobID).
		Group("state").
		Scan(&rows).Error; err != nil {
		return progress, err
	}

	for _, r := range rows {
		progress.Total += r.Count
		switch r.State {
		case catalogsync.JobItemStateSucceeded:
			progress.Completed += r.Count
		case catalogsync.JobItemStateFailed:
			progress.Failed += r.Count
		}
	}
	return progress, nil
}

// ListDead lists dead-lettered jobs, newest first
func (r *GormJobRepository) ListDead(ctx context.Context, limit int) ([]catalogsync.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobModels []models.JobModel
	if err := r.db.WithContext(ctx).
		Where("state = ?", catalogsync.JobStateDead).
		Order("updated_at DESC").
		Limit(limit).
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]catalogsync.Job, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = *model.ToDomain()
	}
	return jobs, nil
}

// CountDead counts dead-lettered jobs
func (r *GormJobRepository) CountDead(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.JobModel{}).
		Where("state = ?", catalogsync.JobStateDead).
		Count(&count).Error
	return count, err
}

// RetryDead re-queues a dead-lettered job with a fresh attempt budget
func (r *GormJobRepository) RetryDead(ctx context.Context, id uuid.UUID) error {
	job, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := job.ResetForRetry(); err != nil {
		return err
	}
	return r.Update(ctx, job)
}

// DeleteDead removes a dead-lettered job and its items
func (r *GormJobRepository) DeleteDead(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model models.JobModel
		if err := tx.First(&model, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return catalogsync.ErrJobNotFound
			}
			return err
		}
		if model.State != catalogsync.JobStateDead {
			return catalogsync.ErrJobNotDead
		}

		if err := tx.Where("job_id = ?", id).Delete(&models.JobItemModel{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model).Error
	})
}

// Ensure GormJobRepository implements the repository port
var _ catalogsync.JobRepository = (*GormJobRepository)(nil)
