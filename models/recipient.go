package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecipientStatus represents where a lead is in its outreach lifecycle
type RecipientStatus string

const (
	RecipientStatusNew       RecipientStatus = "new"
	RecipientStatusContacted RecipientStatus = "contacted"
	RecipientStatusReplied   RecipientStatus = "replied"
	RecipientStatusConverted RecipientStatus = "converted"
	RecipientStatusBounced   RecipientStatus = "bounced"
)

// String returns the string representation of the status
func (s RecipientStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RecipientStatus) Valid() bool {
	switch s {
	case RecipientStatusNew, RecipientStatusContacted, RecipientStatusReplied,
		RecipientStatusConverted, RecipientStatusBounced:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RecipientStatus
func (s *RecipientStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RecipientStatus(v)
	case []byte:
		*s = RecipientStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RecipientStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RecipientStatus
func (s RecipientStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RecipientStatus: %s", s)
	}
	return string(s), nil
}

// Recipient is a lead targeted by a campaign
type Recipient struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_recipients_uuid" json:"uuid"`
	CampaignID    uint            `gorm:"not null;uniqueIndex:uk_recipients_campaign_address,priority:1;index:idx_recipients_campaign_id" json:"campaign_id"`
	Address       string          `gorm:"size:320;not null;uniqueIndex:uk_recipients_campaign_address,priority:2;index:idx_recipients_address" json:"address"`
	FirstName     *string         `gorm:"size:128" json:"first_name,omitempty"`
	LastName      *string         `gorm:"size:128" json:"last_name,omitempty"`
	Company       *string         `gorm:"size:255" json:"company,omitempty"`
	Title         *string         `gorm:"size:255" json:"title,omitempty"`
	Status        RecipientStatus `gorm:"type:recipient_status;not null;default:'new';index:idx_recipients_status" json:"status"`
	HasReplied    bool            `gorm:"not null;default:false" json:"has_replied"`
	PriorityScore *float64        `gorm:"type:numeric(10,4)" json:"priority_score,omitempty"`
	RepliedAt     *time.Time      `json:"replied_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_recipients_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Recipient) TableName() string { return "recipients" }

// BeforeCreate is called before creating a new record
func (r *Recipient) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RecipientStatusNew
	}
	return nil
}

// CanTransitionTo checks if the recipient can move to the given status.
// Transitions only move forward; once replied, a recipient never goes back to contacted.
func (r *Recipient) CanTransitionTo(next RecipientStatus) bool {
	if r.HasReplied && (next == RecipientStatusNew || next == RecipientStatusContacted) {
		return false
	}
	switch r.Status {
	case RecipientStatusNew:
		return next == RecipientStatusContacted || next == RecipientStatusReplied ||
			next == RecipientStatusBounced
	case RecipientStatusContacted:
		return next == RecipientStatusReplied || next == RecipientStatusBounced ||
			next == RecipientStatusConverted
	case RecipientStatusReplied:
		return next == RecipientStatusConverted
	default:
		return false
	}
}

// recipientStatuses lists every status in lifecycle order
var recipientStatuses = []RecipientStatus{
	RecipientStatusNew,
	RecipientStatusContacted,
	RecipientStatusReplied,
	RecipientStatusConverted,
	RecipientStatusBounced,
}

// StatusesAllowedInto returns the statuses a recipient may hold and still move to next.
// Conditional status updates use it as their guard so storage follows CanTransitionTo.
func StatusesAllowedInto(next RecipientStatus) []RecipientStatus {
	var from []RecipientStatus
	for _, status := range recipientStatuses {
		r := Recipient{Status: status}
		if r.CanTransitionTo(next) {
			from = append(from, status)
		}
	}
	return from
}

// IsReachable reports whether outreach to this recipient may continue
func (r *Recipient) IsReachable() bool {
	if r.HasReplied {
		return false
	}
	return r.Status == RecipientStatusNew || r.Status == RecipientStatusContacted
}

// RecipientFilter represents filter criteria for recipient queries
type RecipientFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	CampaignID    *uint
	Address       *string
	Status        *RecipientStatus
	HasReplied    *bool
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
