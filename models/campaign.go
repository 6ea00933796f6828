// Package models contains domain entities persisted by the autopilot
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle status of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft    CampaignStatus = "draft"
	CampaignStatusActive   CampaignStatus = "active"
	CampaignStatusPaused   CampaignStatus = "paused"
	CampaignStatusArchived CampaignStatus = "archived"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive,
		CampaignStatusPaused, CampaignStatusArchived:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// AutomationConfig holds the per-campaign autopilot settings.
// WindowStart and WindowEnd are local HH:MM in Timezone.
type AutomationConfig struct {
	AutomationEnabled     bool   `gorm:"not null;default:false;index:idx_campaigns_automation_enabled" json:"automation_enabled"`
	DailyCap              int    `gorm:"not null;default:50" json:"daily_cap" validate:"gte=0"`
	WindowStart           string `gorm:"size:5;not null;default:'09:00'" json:"window_start" validate:"required,len=5"`
	WindowEnd             string `gorm:"size:5;not null;default:'17:00'" json:"window_end" validate:"required,len=5"`
	Timezone              string `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	BusinessDaysOnly      bool   `gorm:"not null;default:true" json:"business_days_only"`
	MinRecipientThreshold int    `gorm:"not null;default:10" json:"min_recipient_threshold" validate:"gte=0"`
	ABTestingEnabled      bool   `gorm:"column:ab_testing_enabled;not null;default:false" json:"ab_testing_enabled"`
}

// CampaignContext is the free-form context handed to the content generator
type CampaignContext struct {
	Product        *string  `json:"product,omitempty"`
	ValueProp      *string  `json:"value_prop,omitempty"`
	CallToAction   *string  `json:"call_to_action,omitempty"`
	Tone           *string  `json:"tone,omitempty"`
	SenderName     *string  `json:"sender_name,omitempty"`
	TargetIndustry []string `json:"target_industry,omitempty"`
}

// Value implements the driver.Valuer interface for CampaignContext
func (c CampaignContext) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for CampaignContext
func (c *CampaignContext) Scan(value any) error {
	if value == nil {
		*c = CampaignContext{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CampaignContext", value)
	}

	return json.Unmarshal(bytes, c)
}

// Campaign is an outbound campaign owned by a single account.
// Campaigns are never deleted by the autopilot; run statistics are accumulated in place.
type Campaign struct {
	ID      uint            `gorm:"primaryKey" json:"id"`
	UUID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	OwnerID uint            `gorm:"not null;index:idx_campaigns_owner_id" json:"owner_id"`
	Name    string          `gorm:"size:255;not null" json:"name"`
	Status  CampaignStatus  `gorm:"type:campaign_status;not null;default:'draft';index:idx_campaigns_status" json:"status"`
	Tags    pq.StringArray  `gorm:"type:text[]" json:"tags"`
	Context CampaignContext `gorm:"type:jsonb;not null" json:"context"`

	AutomationConfig `gorm:"embedded"`

	TotalGenerated int        `gorm:"not null;default:0" json:"total_generated"`
	TotalSent      int        `gorm:"not null;default:0" json:"total_sent"`
	TotalFailed    int        `gorm:"not null;default:0" json:"total_failed"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = utils.UTCNow()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return nil
}

// IsAutomated reports whether the autopilot should pick this campaign up on a sweep
func (c *Campaign) IsAutomated() bool {
	return c.AutomationEnabled && c.Status == CampaignStatusActive
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID                *uint
	UUID              *uuid.UUID
	OwnerID           *uint
	Status            *CampaignStatus
	AutomationEnabled *bool
	Tag               *string
	CreatedAfter      *time.Time
	CreatedBefore     *time.Time
}
