// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/amirphl/outreach-autopilot/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SuppressionRepositoryImpl implements SuppressionRepository interface
type SuppressionRepositoryImpl struct {
	*BaseRepository[models.Suppression, struct{}]
}

// NewSuppressionRepository creates a new suppression repository
func NewSuppressionRepository(db *gorm.DB) SuppressionRepository {
	return &SuppressionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Suppression, struct{}](db),
	}
}

// Upsert adds the address to the suppression list; repeated calls keep the first row
func (r *SuppressionRepositoryImpl) Upsert(ctx context.Context, address string, reason *string) (err error) {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	defer finish(db, shouldCommit, &err)

	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoNothing: true,
	}).Create(&models.Suppression{Address: address, Reason: reason}).Error
	return err
}

// ExistsByAddress reports whether the address is suppressed
func (r *SuppressionRepositoryImpl) ExistsByAddress(ctx context.Context, address string) (bool, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.Suppression{}).
		Where("address = ?", address).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
