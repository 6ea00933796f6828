package models

import "time"

// Suppression marks an address that must never be contacted again
type Suppression struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Address   string    `gorm:"size:320;not null;uniqueIndex:uk_suppressions_address" json:"address"`
	Reason    *string   `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (Suppression) TableName() string { return "suppressions" }
