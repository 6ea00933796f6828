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

// CampaignRepositoryImpl implements CampaignRepository interface
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

// NewCampaignRepository creates a new campaign repository
func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db),
	}
}

// ByUUID retrieves a campaign by UUID
func (r *CampaignRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	db := r.getDB(ctx)

	var campaign models.Campaign
	err := db.Where("uuid = ?", id).First(&campaign).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

// ListAutomated returns active campaigns with automation enabled, oldest first
func (r *CampaignRepositoryImpl) ListAutomated(ctx context.Context) ([]*models.Campaign, error) {
	enabled := true
	status := models.CampaignStatusActive
	return r.ByFilter(ctx, models.CampaignFilter{AutomationEnabled: &enabled, Status: &status}, "id ASC", 0, 0)
}

// ApplyRunStats accumulates run counters on the campaign row in a single statement
func (r *CampaignRepositoryImpl) ApplyRunStats(ctx context.Context, campaignID uint, stats RunStats) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	result := db.Model(&models.Campaign{}).
		Where("id = ?", campaignID).
		Updates(map[string]any{
			"total_generated": gorm.Expr("total_generated + ?", stats.Generated),
			"total_sent":      gorm.Expr("total_sent + ?", stats.Sent),
			"total_failed":    gorm.Expr("total_failed + ?", stats.Failed),
			"last_run_at":     stats.RunAt,
			"updated_at":      utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return err
	}
	if result.RowsAffected == 0 {
		err = fmt.Errorf("campaign not found with ID: %d", campaignID)
		return err
	}
	return nil
}

// applyFilter applies filter criteria to a GORM query
func (r *CampaignRepositoryImpl) applyFilter(query *gorm.DB, filter models.CampaignFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.AutomationEnabled != nil {
		query = query.Where("automation_enabled = ?", *filter.AutomationEnabled)
	}
	if filter.Tag != nil {
		query = query.Where("? = ANY(tags)", *filter.Tag)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves campaigns based on filter criteria
func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)

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

	var campaigns []*models.Campaign
	if err := query.Find(&campaigns).Error; err != nil {
		return nil, err
	}
	return campaigns, nil
}

// Count returns the number of campaigns matching the filter
func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any campaign matching the filter exists
func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
