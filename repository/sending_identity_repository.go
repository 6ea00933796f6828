// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/utils"
	"gorm.io/gorm"
)

// SendingIdentityRepositoryImpl implements SendingIdentityRepository interface
type SendingIdentityRepositoryImpl struct {
	*BaseRepository[models.SendingIdentity, models.SendingIdentityFilter]
}

// NewSendingIdentityRepository creates a new sending identity repository
func NewSendingIdentityRepository(db *gorm.DB) SendingIdentityRepository {
	return &SendingIdentityRepositoryImpl{
		BaseRepository: NewBaseRepository[models.SendingIdentity, models.SendingIdentityFilter](db),
	}
}

// ListActiveByOwner returns the owner's active identities in a stable order
func (r *SendingIdentityRepositoryImpl) ListActiveByOwner(ctx context.Context, ownerID uint) ([]*models.SendingIdentity, error) {
	active := true
	return r.ByFilter(ctx, models.SendingIdentityFilter{OwnerID: &ownerID, IsActive: &active}, "id ASC", 0, 0)
}

// ResetDailyCount zeroes the counter if nobody else reset it since expectedLastReset was read
func (r *SendingIdentityRepositoryImpl) ResetDailyCount(ctx context.Context, id uint, expectedLastReset, now time.Time) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer finish(db, shouldCommit, &err)

	result := db.Model(&models.SendingIdentity{}).
		Where("id = ? AND last_reset_at = ?", id, expectedLastReset).
		Updates(map[string]any{
			"sent_today":    0,
			"last_reset_at": now,
			"updated_at":    utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return false, err
	}
	return result.RowsAffected == 1, nil
}

// IncrementSentToday atomically consumes one unit of quota; false means the quota is spent
func (r *SendingIdentityRepositoryImpl) IncrementSentToday(ctx context.Context, id uint) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer finish(db, shouldCommit, &err)

	result := db.Model(&models.SendingIdentity{}).
		Where("id = ? AND sent_today < daily_quota", id).
		Updates(map[string]any{
			"sent_today": gorm.Expr("sent_today + 1"),
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return false, err
	}
	return result.RowsAffected == 1, nil
}

// DecrementSentToday returns one unit of quota after a failed delivery.
// It only applies while the window that took the unit is still current.
func (r *SendingIdentityRepositoryImpl) DecrementSentToday(ctx context.Context, id uint, lastResetAt time.Time) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	err = db.Model(&models.SendingIdentity{}).
		Where("id = ? AND last_reset_at = ? AND sent_today > 0", id, lastResetAt).
		Updates(map[string]any{
			"sent_today": gorm.Expr("sent_today - 1"),
			"updated_at": utils.UTCNow(),
		}).Error
	return err
}

// applyFilter applies filter criteria to a GORM query
func (r *SendingIdentityRepositoryImpl) applyFilter(query *gorm.DB, filter models.SendingIdentityFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Address != nil {
		query = query.Where("address = ?", *filter.Address)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves sending identities based on filter criteria
func (r *SendingIdentityRepositoryImpl) ByFilter(ctx context.Context, filter models.SendingIdentityFilter, orderBy string, limit, offset int) ([]*models.SendingIdentity, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SendingIdentity{}), filter)

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

	var identities []*models.SendingIdentity
	if err := query.Find(&identities).Error; err != nil {
		return nil, err
	}
	return identities, nil
}

// Count returns the number of sending identities matching the filter
func (r *SendingIdentityRepositoryImpl) Count(ctx context.Context, filter models.SendingIdentityFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SendingIdentity{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any sending identity matching the filter exists
func (r *SendingIdentityRepositoryImpl) Exists(ctx context.Context, filter models.SendingIdentityFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
