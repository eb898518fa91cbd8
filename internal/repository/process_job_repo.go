// Package repository provides GORM-backed persistence for process job
// history.
package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/splat-replay/splat-replay/internal/models"
)

// ProcessJobRepository records edit/upload runs.
type ProcessJobRepository interface {
	Create(ctx context.Context, job *models.ProcessJob) error
	Update(ctx context.Context, job *models.ProcessJob) error
	GetByID(ctx context.Context, id models.ULID) (*models.ProcessJob, error)
	GetRecent(ctx context.Context, limit int) ([]*models.ProcessJob, error)
	GetRunning(ctx context.Context) ([]*models.ProcessJob, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type processJobRepo struct {
	db *gorm.DB
}

// NewProcessJobRepository creates the repository.
func NewProcessJobRepository(db *gorm.DB) ProcessJobRepository {
	return &processJobRepo{db: db}
}

func (r *processJobRepo) Create(ctx context.Context, job *models.ProcessJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("creating process job: %w", err)
	}
	return nil
}

func (r *processJobRepo) Update(ctx context.Context, job *models.ProcessJob) error {
	if err := r.db.WithContext(ctx).Save(job).Error; err != nil {
		return fmt.Errorf("updating process job: %w", err)
	}
	return nil
}

func (r *processJobRepo) GetByID(ctx context.Context, id models.ULID) (*models.ProcessJob, error) {
	var job models.ProcessJob
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("getting process job: %w", err)
	}
	return &job, nil
}

func (r *processJobRepo) GetRecent(ctx context.Context, limit int) ([]*models.ProcessJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var jobs []*models.ProcessJob
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing process jobs: %w", err)
	}
	return jobs, nil
}

func (r *processJobRepo) GetRunning(ctx context.Context) ([]*models.ProcessJob, error) {
	var jobs []*models.ProcessJob
	if err := r.db.WithContext(ctx).
		Where("status = ?", models.ProcessJobRunning).
		Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("listing running process jobs: %w", err)
	}
	return jobs, nil
}

func (r *processJobRepo) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().
		Where("created_at < ? AND status <> ?", cutoff, models.ProcessJobRunning).
		Delete(&models.ProcessJob{})
	if res.Error != nil {
		return 0, fmt.Errorf("pruning process jobs: %w", res.Error)
	}
	return res.RowsAffected, nil
}
