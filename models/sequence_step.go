package models

import "time"

// SequenceStep is one ordered follow-up in a campaign's drip sequence.
// StepNumber is 1..N and unique per campaign; DelayDays counts from the previous step.
type SequenceStep struct {
	ID              uint    `gorm:"primaryKey" json:"id"`
	CampaignID      uint    `gorm:"not null;uniqueIndex:uk_sequence_steps_campaign_step,priority:1" json:"campaign_id"`
	StepNumber      int     `gorm:"not null;uniqueIndex:uk_sequence_steps_campaign_step,priority:2" json:"step_number"`
	DelayDays       int     `gorm:"not null;default:0" json:"delay_days"`
	TemplateRef     *string `gorm:"size:128" json:"template_ref,omitempty"`
	SubjectTemplate string  `gorm:"type:text;not null" json:"subject_template"`
	BodyTemplate    string  `gorm:"type:text;not null" json:"body_template"`
	IsActive        *bool   `gorm:"default:true" json:"is_active"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SequenceStep) TableName() string { return "sequence_steps" }

// Active treats a missing flag as active, matching the column default
func (s *SequenceStep) Active() bool {
	return s.IsActive == nil || *s.IsActive
}

// Delay returns the step delay as a duration
func (s *SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayDays) * 24 * time.Hour
}
