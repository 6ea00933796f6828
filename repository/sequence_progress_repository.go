// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceProgressRepositoryImpl implements SequenceProgressRepository interface
type SequenceProgressRepositoryImpl struct {
	*BaseRepository[models.SequenceProgress, models.SequenceProgressFilter]
}

// NewSequenceProgressRepository creates a new sequence progress repository
func NewSequenceProgressRepository(db *gorm.DB) SequenceProgressRepository {
	return &SequenceProgressRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SequenceProgress, models.SequenceProgressFilter](db),
	}
}

// ByRecipientAndCampaign returns the single progress row for the pair, or nil
func (r *SequenceProgressRepositoryImpl) ByRecipientAndCampaign(ctx context.Context, recipientID, campaignID uint) (*models.SequenceProgress, error) {
	var progress models.SequenceProgress
	err := r.getDB(ctx).
		Where("recipient_id = ? AND campaign_id = ?", recipientID, campaignID).
		First(&progress).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &progress, nil
}

// ListDue returns active rows whose next send time has passed, earliest first
func (r *SequenceProgressRepositoryImpl) ListDue(ctx context.Context, campaignID uint, now time.Time, limit int) ([]*models.SequenceProgress, error) {
	paused := false
	completed := false
	filter := models.SequenceProgressFilter{
		CampaignID: &campaignID,
		IsPaused:   &paused,
		Completed:  &completed,
		DueBefore:  &now,
	}
	return r.ByFilter(ctx, filter, "next_send_at ASC, id ASC", limit, 0)
}

// SaveIfAbsent inserts the progress row, doing nothing when the pair is already enrolled
func (r *SequenceProgressRepositoryImpl) SaveIfAbsent(ctx context.Context, progress *models.SequenceProgress) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer finish(db, shouldCommit, &err)

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "recipient_id"}, {Name: "campaign_id"}},
		DoNothing: true,
	}).Create(progress)
	if result.Error != nil {
		err = result.Error
		return false, err
	}
	return result.RowsAffected == 1, nil
}

// UpdateVersioned persists step, schedule and completion if the row was not changed concurrently
func (r *SequenceProgressRepositoryImpl) UpdateVersioned(ctx context.Context, progress *models.SequenceProgress) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer finish(db, shouldCommit, &err)

	result := db.Model(&models.SequenceProgress{}).
		Where("id = ? AND version = ?", progress.ID, progress.Version).
		Updates(map[string]any{
			"current_step": progress.CurrentStep,
			"next_send_at": progress.NextSendAt,
			"completed_at": progress.CompletedAt,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return false, err
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	progress.Version++
	return true, nil
}

// PauseByRecipients pauses every unpaused row of the given recipients
func (r *SequenceProgressRepositoryImpl) PauseByRecipients(ctx context.Context, recipientIDs []uint, at time.Time) (n int64, err error) {
	if len(recipientIDs) == 0 {
		return 0, nil
	}
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return 0, err
	}
	defer finish(db, shouldCommit, &err)

	ids := make(pq.Int64Array, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		ids = append(ids, int64(id))
	}

	result := db.Model(&models.SequenceProgress{}).
		Where("recipient_id = ANY(?) AND is_paused = ?", ids, false).
		Updates(map[string]any{
			"is_paused":  true,
			"paused_at":  at,
			"version":    gorm.Expr("version + 1"),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return 0, err
	}
	return result.RowsAffected, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *SequenceProgressRepositoryImpl) applyFilter(query *gorm.DB, filter models.SequenceProgressFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.RecipientID != nil {
		query = query.Where("recipient_id = ?", *filter.RecipientID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.IsPaused != nil {
		query = query.Where("is_paused = ?", *filter.IsPaused)
	}
	if filter.Completed != nil {
		if *filter.Completed {
			query = query.Where("completed_at IS NOT NULL")
		} else {
			query = query.Where("completed_at IS NULL")
		}
	}
	if filter.DueBefore != nil {
		query = query.Where("next_send_at <= ?", *filter.DueBefore)
	}
	return query
}

// ByFilter retrieves progress rows based on filter criteria
func (r *SequenceProgressRepositoryImpl) ByFilter(ctx context.Context, filter models.SequenceProgressFilter, orderBy string, limit, offset int) ([]*models.SequenceProgress, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SequenceProgress{}), filter)

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

	var rows []*models.SequenceProgress
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of progress rows matching the filter
func (r *SequenceProgressRepositoryImpl) Count(ctx context.Context, filter models.SequenceProgressFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SequenceProgress{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any progress row matching the filter exists
func (r *SequenceProgressRepositoryImpl) Exists(ctx context.Context, filter models.SequenceProgressFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
