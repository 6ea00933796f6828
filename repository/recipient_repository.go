// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RecipientRepositoryImpl implements RecipientRepository interface
type RecipientRepositoryImpl struct {
	*BaseRepository[models.Recipient, models.RecipientFilter]
}

// NewRecipientRepository creates a new recipient repository
func NewRecipientRepository(db *gorm.DB) RecipientRepository {
	return &RecipientRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Recipient, models.RecipientFilter](db),
	}
}

// ByIDs loads recipients keyed by ID; missing IDs are simply absent from the map
func (r *RecipientRepositoryImpl) ByIDs(ctx context.Context, ids []uint) (map[uint]*models.Recipient, error) {
	out := make(map[uint]*models.Recipient, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	asInt64 := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		asInt64 = append(asInt64, int64(id))
	}

	var rows []*models.Recipient
	if err := r.getDB(ctx).Where("id = ANY(?)", asInt64).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

// ListByAddress returns every recipient row carrying the address across campaigns
func (r *RecipientRepositoryImpl) ListByAddress(ctx context.Context, address string) ([]*models.Recipient, error) {
	return r.ByFilter(ctx, models.RecipientFilter{Address: &address}, "id ASC", 0, 0)
}

// UpdateStatus moves the recipient to `to` only when its current status is one of `from`
func (r *RecipientRepositoryImpl) UpdateStatus(ctx context.Context, id uint, from []models.RecipientStatus, to models.RecipientStatus) (ok bool, err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return false, err
	}
	defer finish(db, shouldCommit, &err)

	allowed := make(pq.StringArray, 0, len(from))
	for _, s := range from {
		allowed = append(allowed, s.String())
	}

	result := db.Model(&models.Recipient{}).
		Where("id = ? AND status::text = ANY(?)", id, allowed).
		Updates(map[string]any{
			"status":     to,
			"updated_at": utils.UTCNow(),
		})
	if result.Error != nil {
		err = result.Error
		return false, err
	}
	return result.RowsAffected == 1, nil
}

// MarkReplied flags the recipient as replied; the flag never clears
func (r *RecipientRepositoryImpl) MarkReplied(ctx context.Context, id uint, at time.Time) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	allowed := make(pq.StringArray, 0, 2)
	for _, s := range models.StatusesAllowedInto(models.RecipientStatusReplied) {
		allowed = append(allowed, s.String())
	}

	err = db.Model(&models.Recipient{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"has_replied": true,
			"replied_at":  gorm.Expr("COALESCE(replied_at, ?)", at),
			"status": gorm.Expr("CASE WHEN status::text = ANY(?) THEN ?::recipient_status ELSE status END",
				allowed, models.RecipientStatusReplied.String()),
			"updated_at": utils.UTCNow(),
		}).Error
	return err
}

// UpdatePriority stores the latest opaque ranking score
func (r *RecipientRepositoryImpl) UpdatePriority(ctx context.Context, id uint, score float64) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	err = db.Model(&models.Recipient{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"priority_score": score,
			"updated_at":     utils.UTCNow(),
		}).Error
	return err
}

// applyFilter applies filter criteria to a GORM query
func (r *RecipientRepositoryImpl) applyFilter(query *gorm.DB, filter models.RecipientFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.CampaignID != nil {
		query = query.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.Address != nil {
		query = query.Where("address = ?", *filter.Address)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.HasReplied != nil {
		query = query.Where("has_replied = ?", *filter.HasReplied)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves recipients based on filter criteria
func (r *RecipientRepositoryImpl) ByFilter(ctx context.Context, filter models.RecipientFilter, orderBy string, limit, offset int) ([]*models.Recipient, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Recipient{}), filter)

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

	var recipients []*models.Recipient
	if err := query.Find(&recipients).Error; err != nil {
		return nil, err
	}
	return recipients, nil
}

// Count returns the number of recipients matching the filter
func (r *RecipientRepositoryImpl) Count(ctx context.Context, filter models.RecipientFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Recipient{}), filter)

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any recipient matching the filter exists
func (r *RecipientRepositoryImpl) Exists(ctx context.Context, filter models.RecipientFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
