package models

import (
	"encoding/json"
	"time"
)

// RunEventLevel is the severity of a progress event
type RunEventLevel string

const (
	RunEventLevelInfo  RunEventLevel = "info"
	RunEventLevelWarn  RunEventLevel = "warn"
	RunEventLevelError RunEventLevel = "error"
)

// RunEvent is an append-only progress line attached to a RunJob.
// Rows are only ever inserted.
type RunEvent struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	RunJobID uint            `gorm:"not null;index:idx_run_events_run_job_id" json:"run_job_id"`
	Level    RunEventLevel   `gorm:"size:8;not null" json:"level"`
	Kind     string          `gorm:"size:64;not null" json:"kind"`
	Message  string          `gorm:"type:text;not null" json:"message"`
	Metadata json.RawMessage `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_run_events_created_at" json:"created_at"`
}

func (RunEvent) TableName() string { return "run_events" }

// Event kinds surfaced to dashboards
const (
	RunEventKindStarted          = "run_started"
	RunEventKindWindowClosed     = "window_closed"
	RunEventKindSequenceAdvanced = "sequence_advanced"
	RunEventKindGenerated        = "generated"
	RunEventKindGenerationFailed = "generation_failed"
	RunEventKindDelivered        = "delivered"
	RunEventKindDeliveryFailed   = "delivery_failed"
	RunEventKindUnsubscribed     = "unsubscribed"
	RunEventKindNoIdentity       = "no_identity_available"
	RunEventKindCompleted        = "run_completed"
	RunEventKindFailed           = "run_failed"
)
