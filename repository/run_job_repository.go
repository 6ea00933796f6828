// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RunJobRepositoryImpl implements RunJobRepository interface
type RunJobRepositoryImpl struct {
	*BaseRepository[models.RunJob, models.RunJobFilter]
}

// NewRunJobRepository creates a new run job repository
func NewRunJobRepository(db *gorm.DB) RunJobRepository {
	return &RunJobRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RunJob, models.RunJobFilter](db),
	}
}

// ByUUID retrieves a run job by its public id
func (r *RunJobRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.RunJob, error) {
	var job models.RunJob
	err := r.getDB(ctx).Where("uuid = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &job, nil
}

// UpdateProgress sets the progress percentage of a running job
func (r *RunJobRepositoryImpl) UpdateProgress(ctx context.Context, id uint, progress int) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	err = db.Model(&models.RunJob{}).
		Where("id = ? AND status = ?", id, models.RunJobStatusRunning).
		Updates(map[string]any{
			"progress":   progress,
			"updated_at": utils.UTCNow(),
		}).Error
	return err
}

// AppendError pushes a per-item error line onto the job's error list
func (r *RunJobRepositoryImpl) AppendError(ctx context.Context, id uint, message string) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	err = db.Model(&models.RunJob{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"errors":     gorm.Expr("array_append(COALESCE(errors, '{}'::text[]), ?)", message),
			"updated_at": utils.UTCNow(),
		}).Error
	return err
}

// Finish writes the terminal status, progress, summary and error message of a job
func (r *RunJobRepositoryImpl) Finish(ctx context.Context, job *models.RunJob) (err error) {
	if job == nil || job.ID == 0 {
		return errors.New("run job ID is required for finish")
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	result := db.Model(&models.RunJob{}).
		Where("id = ? AND status = ?", job.ID, models.RunJobStatusRunning).
		Updates(map[string]any{
			"status":        job.Status,
			"progress":      job.Progress,
			"summary":       job.Summary,
			"error_message": job.ErrorMessage,
			"finished_at":   job.FinishedAt,
			"updated_at":    utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return err
	}
	if result.RowsAffected == 0 {
		err = fmt.Errorf("running job not found with ID: %d", job.ID)
		return err
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *RunJobRepositoryImpl) applyFilter(query *gorm.DB, filter models.RunJobFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.RunType != nil {
		query = query.Where("run_type = ?", *filter.RunType)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves run jobs based on filter criteria
func (r *RunJobRepositoryImpl) ByFilter(ctx context.Context, filter models.RunJobFilter, orderBy string, limit, offset int) ([]*models.RunJob, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.RunJob{}), filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var jobs []*models.RunJob
	if err := query.Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

// Count returns the number of run jobs matching the filter
func (r *RunJobRepositoryImpl) Count(ctx context.Context, filter models.RunJobFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.RunJob{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any run job matching the filter exists
func (r *RunJobRepositoryImpl) Exists(ctx context.Context, filter models.RunJobFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
