package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OutboundMessageStatus enumerates the lifecycle of an outbound message.
// queued is the only non-terminal status.
type OutboundMessageStatus string

const (
	OutboundMessageStatusQueued  OutboundMessageStatus = "queued"
	OutboundMessageStatusSent    OutboundMessageStatus = "sent"
	OutboundMessageStatusFailed  OutboundMessageStatus = "failed"
	OutboundMessageStatusSkipped OutboundMessageStatus = "skipped"
)

// String returns the string representation of the status
func (s OutboundMessageStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s OutboundMessageStatus) Valid() bool {
	switch s {
	case OutboundMessageStatusQueued, OutboundMessageStatusSent,
		OutboundMessageStatusFailed, OutboundMessageStatusSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are allowed
func (s OutboundMessageStatus) IsTerminal() bool {
	return s == OutboundMessageStatusSent || s == OutboundMessageStatusFailed || s == OutboundMessageStatusSkipped
}

// Scan implements the sql.Scanner interface for OutboundMessageStatus
func (s *OutboundMessageStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = OutboundMessageStatus(v)
	case []byte:
		*s = OutboundMessageStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into OutboundMessageStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for OutboundMessageStatus
func (s OutboundMessageStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid OutboundMessageStatus: %s", s)
	}
	return string(s), nil
}

// OutboundMessage records a single rendered email for one recipient.
// StepNumber is nil for the initial generated outreach and set for sequence follow-ups.
type OutboundMessage struct {
	ID                uint                  `gorm:"primaryKey" json:"id"`
	TrackingID        uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:uk_outbound_messages_tracking_id" json:"tracking_id"`
	CampaignID        uint                  `gorm:"not null;index:idx_outbound_messages_campaign_status,priority:1" json:"campaign_id"`
	RecipientID       uint                  `gorm:"not null;index:idx_outbound_messages_recipient_id" json:"recipient_id"`
	StepNumber        *int                  `json:"step_number,omitempty"`
	Subject           string                `gorm:"type:text;not null" json:"subject"`
	Body              string                `gorm:"type:text;not null" json:"body"`
	Status            OutboundMessageStatus `gorm:"type:outbound_message_status;not null;default:'queued';index:idx_outbound_messages_campaign_status,priority:2" json:"status"`
	ABTestID          *uint                 `gorm:"column:ab_test_id" json:"ab_test_id,omitempty"`
	Variant           *Variant              `gorm:"size:1" json:"variant,omitempty"`
	SendingIdentityID *uint                 `json:"sending_identity_id,omitempty"`
	ProviderMessageID *string               `gorm:"size:255" json:"provider_message_id,omitempty"`
	ErrorDetail       *string               `gorm:"type:text" json:"error_detail,omitempty"`
	SentAt            *time.Time            `json:"sent_at,omitempty"`
	OpenedAt          *time.Time            `json:"opened_at,omitempty"`
	RepliedAt         *time.Time            `json:"replied_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_outbound_messages_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (OutboundMessage) TableName() string { return "outbound_messages" }

// BeforeCreate is called before creating a new record
func (m *OutboundMessage) BeforeCreate(tx *gorm.DB) error {
	if m.TrackingID == uuid.Nil {
		m.TrackingID = uuid.New()
	}
	if m.Status == "" {
		m.Status = OutboundMessageStatusQueued
	}
	return nil
}

// OutboundMessageFilter provides filter fields for repository queries
type OutboundMessageFilter struct {
	ID            *uint
	TrackingID    *uuid.UUID
	CampaignID    *uint
	RecipientID   *uint
	Status        *OutboundMessageStatus
	StepNumber    *int
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
