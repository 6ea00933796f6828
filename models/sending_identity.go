package models

import (
	"time"

	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuotaWindow is the rolling window after which an identity's daily counter resets
const QuotaWindow = 24 * time.Hour

// SendingIdentity represents a mailbox the autopilot may send from on behalf of an owner
// Table: sending_identities
// Unique by address
// sent_today never exceeds daily_quota (enforced by a CHECK constraint as well)
type SendingIdentity struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_sending_identities_uuid" json:"uuid"`

	OwnerID     uint      `gorm:"not null;index:idx_sending_identities_owner_id" json:"owner_id"`
	Name        *string   `gorm:"size:255" json:"name,omitempty"`
	Address     string    `gorm:"size:320;not null;uniqueIndex:uk_sending_identities_address" json:"address"`
	DailyQuota  int       `gorm:"not null" json:"daily_quota"`
	SentToday   int       `gorm:"not null;default:0" json:"sent_today"`
	LastResetAt time.Time `gorm:"not null" json:"last_reset_at"`

	IsActive  *bool     `gorm:"default:true;index:idx_sending_identities_is_active" json:"is_active"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SendingIdentity) TableName() string {
	return "sending_identities"
}

// BeforeCreate is called before creating a new record
func (s *SendingIdentity) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	if s.LastResetAt.IsZero() {
		s.LastResetAt = utils.UTCNow()
	}
	return nil
}

// ResetDue reports whether the daily counter is due for a reset at now
func (s *SendingIdentity) ResetDue(now time.Time) bool {
	return now.Sub(s.LastResetAt) >= QuotaWindow
}

// HasCapacity reports whether one more send fits in today's quota
func (s *SendingIdentity) HasCapacity() bool {
	return s.SentToday < s.DailyQuota
}

// SendingIdentityFilter represents filter criteria for sending identity queries
type SendingIdentityFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	OwnerID       *uint
	Address       *string
	IsActive      *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
