// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/utils"
	"gorm.io/gorm"
)

// ABTestRepositoryImpl implements ABTestRepository interface
type ABTestRepositoryImpl struct {
	*BaseRepository[models.ABTest, models.ABTestFilter]
}

// NewABTestRepository creates a new A/B test repository
func NewABTestRepository(db *gorm.DB) ABTestRepository {
	return &ABTestRepositoryImpl{
		BaseRepository: NewBaseRepository[models.ABTest, models.ABTestFilter](db),
	}
}

// ByCampaignAndStep returns the test attached to a sequence step, or nil
func (r *ABTestRepositoryImpl) ByCampaignAndStep(ctx context.Context, campaignID uint, stepNumber int) (*models.ABTest, error) {
	var test models.ABTest
	err := r.getDB(ctx).
		Where("campaign_id = ? AND step_number = ?", campaignID, stepNumber).
		First(&test).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &test, nil
}

// IncrementCounter bumps one per-variant counter in place
func (r *ABTestRepositoryImpl) IncrementCounter(ctx context.Context, id uint, counter models.ABTestCounter, variant models.Variant) (err error) {
	switch counter {
	case models.ABTestCounterSends, models.ABTestCounterOpens, models.ABTestCounterReplies:
	default:
		return fmt.Errorf("unknown A/B counter: %s", counter)
	}
	if !variant.Valid() {
		return fmt.Errorf("unknown variant: %s", variant)
	}

	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	column := counter.Column(variant)
	result := db.Model(&models.ABTest{}).
		Where("id = ?", id).
		Updates(map[string]any{
			column:       gorm.Expr(column + " + 1"),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return err
	}
	if result.RowsAffected == 0 {
		err = fmt.Errorf("ab test not found with ID: %d", id)
		return err
	}
	return nil
}

// LockWinner records the winner unless one was already locked
func (r *ABTestRepositoryImpl) LockWinner(ctx context.Context, id uint, winner models.Variant, at time.Time) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer finish(db, shouldCommit, &err)

	result := db.Model(&models.ABTest{}).
		Where("id = ? AND winner IS NULL", id).
		Updates(map[string]any{
			"winner":             winner,
			"winner_selected_at": at,
			"updated_at":         utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return false, err
	}
	return result.RowsAffected == 1, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *ABTestRepositoryImpl) applyFilter(query *gorm.DB, filter models.ABTestFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.StepNumber != nil {
		query = query.Where("step_number = ?", *filter.StepNumber)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.HasWinner != nil {
		if *filter.HasWinner {
			query = query.Where("winner IS NOT NULL")
		} else {
			query = query.Where("winner IS NULL")
		}
	}
	return query
}

// ByFilter retrieves A/B tests based on filter criteria
func (r *ABTestRepositoryImpl) ByFilter(ctx context.Context, filter models.ABTestFilter, orderBy string, limit, offset int) ([]*models.ABTest, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ABTest{}), filter)

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

	var tests []*models.ABTest
	if err := query.Find(&tests).Error; err != nil {
		return nil, err
	}
	return tests, nil
}

// Count returns the number of A/B tests matching the filter
func (r *ABTestRepositoryImpl) Count(ctx context.Context, filter models.ABTestFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ABTest{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any A/B test matching the filter exists
func (r *ABTestRepositoryImpl) Exists(ctx context.Context, filter models.ABTestFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
