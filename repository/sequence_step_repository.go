// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/outreach-autopilot/models"
	"gorm.io/gorm"
)

// SequenceStepRepositoryImpl implements SequenceStepRepository interface
type SequenceStepRepositoryImpl struct {
	*BaseRepository[models.SequenceStep, struct{}]
}

// NewSequenceStepRepository creates a new sequence step repository
func NewSequenceStepRepository(db *gorm.DB) SequenceStepRepository {
	return &SequenceStepRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SequenceStep, struct{}](db),
	}
}

// ListByCampaign returns all steps of the campaign ordered by step number
func (r *SequenceStepRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint) ([]*models.SequenceStep, error) {
	var steps []*models.SequenceStep
	err := r.getDB(ctx).
		Where("campaign_id = ?", campaignID).
		Order("step_number ASC").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}
