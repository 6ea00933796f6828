package models

import "time"

// SequenceProgress tracks one recipient's position in a campaign sequence.
// CompletedAt is set iff no step exists beyond CurrentStep.
// IsPaused is set when the recipient replies or unsubscribes and never clears on its own.
// Version guards concurrent writers (compare-and-swap on update).
type SequenceProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	RecipientID uint       `gorm:"not null;uniqueIndex:uk_sequence_progress_recipient_campaign,priority:1" json:"recipient_id"`
	CampaignID  uint       `gorm:"not null;uniqueIndex:uk_sequence_progress_recipient_campaign,priority:2;index:idx_sequence_progress_campaign_id" json:"campaign_id"`
	CurrentStep int        `gorm:"not null;default:1" json:"current_step"`
	NextSendAt  time.Time  `gorm:"not null;index:idx_sequence_progress_next_send_at" json:"next_send_at"`
	IsPaused    bool       `gorm:"not null;default:false" json:"is_paused"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Version     int        `gorm:"not null;default:0" json:"version"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (SequenceProgress) TableName() string { return "sequence_progress" }

// IsDue reports whether the row should be processed at now
func (p *SequenceProgress) IsDue(now time.Time) bool {
	return !p.IsPaused && p.CompletedAt == nil && !p.NextSendAt.After(now)
}

// SequenceProgressFilter represents filter criteria for progress queries
type SequenceProgressFilter struct {
	ID          *uint
	RecipientID *uint
	CampaignID  *uint
	IsPaused    *bool
	Completed   *bool
	DueBefore   *time.Time
}
