// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/outreach-autopilot/models"
	"gorm.io/gorm"
)

// RunEventRepositoryImpl implements RunEventRepository interface.
// The event log is append-only: there is no update or delete path.
type RunEventRepositoryImpl struct {
	*BaseRepository[models.RunEvent, struct{}]
}

// NewRunEventRepository creates a new run event repository
func NewRunEventRepository(db *gorm.DB) RunEventRepository {
	return &RunEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RunEvent, struct{}](db),
	}
}

// ListByRunJob returns the events of a job in insertion order
func (r *RunEventRepositoryImpl) ListByRunJob(ctx context.Context, runJobID uint, limit, offset int) ([]*models.RunEvent, error) {
	query := r.getDB(ctx).
		Where("run_job_id = ?", runJobID).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var events []*models.RunEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
