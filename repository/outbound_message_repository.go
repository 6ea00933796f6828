// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboundMessageRepositoryImpl implements OutboundMessageRepository interface
type OutboundMessageRepositoryImpl struct {
	*BaseRepository[models.OutboundMessage, models.OutboundMessageFilter]
}

// NewOutboundMessageRepository creates a new outbound message repository
func NewOutboundMessageRepository(db *gorm.DB) OutboundMessageRepository {
	return &OutboundMessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OutboundMessage, models.OutboundMessageFilter](db),
	}
}

// ByTrackingID retrieves a message by its public tracking id
func (r *OutboundMessageRepositoryImpl) ByTrackingID(ctx context.Context, trackingID uuid.UUID) (*models.OutboundMessage, error) {
	var msg models.OutboundMessage
	err := r.getDB(ctx).Where("tracking_id = ?", trackingID).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &msg, nil
}

// ListQueued returns queued messages of a campaign, oldest first
func (r *OutboundMessageRepositoryImpl) ListQueued(ctx context.Context, campaignID uint, limit int) ([]*models.OutboundMessage, error) {
	status := models.OutboundMessageStatusQueued
	filter := models.OutboundMessageFilter{CampaignID: &campaignID, Status: &status}
	return r.ByFilter(ctx, filter, "created_at ASC, id ASC", limit, 0)
}

// CountInitialSince counts first-touch messages (no sequence step) of a campaign created at or after since
func (r *OutboundMessageRepositoryImpl) CountInitialSince(ctx context.Context, campaignID uint, since time.Time) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.OutboundMessage{}).
		Where("campaign_id = ? AND step_number IS NULL AND created_at >= ?", campaignID, since).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkSent moves a queued message to sent
func (r *OutboundMessageRepositoryImpl) MarkSent(ctx context.Context, id, identityID uint, providerMessageID string, at time.Time) (bool, error) {
	return r.transition(ctx, id, map[string]any{
		"status":              models.OutboundMessageStatusSent,
		"sending_identity_id": identityID,
		"provider_message_id": providerMessageID,
		"sent_at":             at,
	})
}

// MarkFailed moves a queued message to failed with the error detail
func (r *OutboundMessageRepositoryImpl) MarkFailed(ctx context.Context, id uint, detail string) (bool, error) {
	return r.transition(ctx, id, map[string]any{
		"status":       models.OutboundMessageStatusFailed,
		"error_detail": detail,
	})
}

// MarkSkipped moves a queued message to skipped
func (r *OutboundMessageRepositoryImpl) MarkSkipped(ctx context.Context, id uint, detail string) (bool, error) {
	return r.transition(ctx, id, map[string]any{
		"status":       models.OutboundMessageStatusSkipped,
		"error_detail": detail,
	})
}

// transition applies a terminal status change; false means the message already left queued
func (r *OutboundMessageRepositoryImpl) transition(ctx context.Context, id uint, updates map[string]any) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer finish(db, shouldCommit, &err)

	updates["updated_at"] = utils.UTCNow()
	result := db.Model(&models.OutboundMessage{}).
		Where("id = ? AND status = ?", id, models.OutboundMessageStatusQueued).
		Updates(updates)
	if result.Error != nil {
		err = result.Error
		return false, err
	}
	return result.RowsAffected == 1, nil
}

// MarkOpened stamps the first open of a sent message
func (r *OutboundMessageRepositoryImpl) MarkOpened(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.stampOnce(ctx, id, "opened_at", at)
}

// MarkReplied stamps the first reply to a sent message
func (r *OutboundMessageRepositoryImpl) MarkReplied(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.stampOnce(ctx, id, "replied_at", at)
}

func (r *OutboundMessageRepositoryImpl) stampOnce(ctx context.Context, id uint, column string, at time.Time) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer finish(db, shouldCommit, &err)

	result := db.Model(&models.OutboundMessage{}).
		Where("id = ? AND status = ? AND "+column+" IS NULL", id, models.OutboundMessageStatusSent).
		Updates(map[string]any{
			column:       at,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return false, err
	}
	return result.RowsAffected == 1, nil
}

// applyFilter applies filter criteria to a GORM query
func (r *OutboundMessageRepositoryImpl) applyFilter(query *gorm.DB, filter models.OutboundMessageFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.TrackingID != nil {
		query = query.Where("tracking_id = ?", *filter.TrackingID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.RecipientID != nil {
		query = query.Where("recipient_id = ?", *filter.RecipientID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StepNumber != nil {
		query = query.Where("step_number = ?", *filter.StepNumber)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves outbound messages based on filter criteria
func (r *OutboundMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.OutboundMessageFilter, orderBy string, limit, offset int) ([]*models.OutboundMessage, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OutboundMessage{}), filter)

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

	var rows []*models.OutboundMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of outbound messages matching the filter
func (r *OutboundMessageRepositoryImpl) Count(ctx context.Context, filter models.OutboundMessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.OutboundMessage{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any outbound message matching the filter exists
func (r *OutboundMessageRepositoryImpl) Exists(ctx context.Context, filter models.OutboundMessageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
