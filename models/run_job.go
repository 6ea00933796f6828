package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// RunJobStatus represents the status of one orchestration invocation
type RunJobStatus string

const (
	RunJobStatusRunning   RunJobStatus = "running"
	RunJobStatusCompleted RunJobStatus = "completed"
	RunJobStatusFailed    RunJobStatus = "failed"
)

// String returns the string representation of the status
func (s RunJobStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s RunJobStatus) Valid() bool {
	switch s {
	case RunJobStatusRunning, RunJobStatusCompleted, RunJobStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for RunJobStatus
func (s *RunJobStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = RunJobStatus(v)
	case []byte:
		*s = RunJobStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into RunJobStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for RunJobStatus
func (s RunJobStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid RunJobStatus: %s", s)
	}
	return string(s), nil
}

// RunType tells a periodic sweep apart from an operator-forced run
type RunType string

const (
	RunTypeScheduled RunType = "scheduled"
	RunTypeForced    RunType = "forced"
)

// RunSummary is the structured result stored on a finished job
type RunSummary struct {
	Skipped      bool   `json:"skipped"`
	SkipReason   string `json:"skip_reason,omitempty"`
	Sequenced    int    `json:"sequenced"`
	Completed    int    `json:"completed"`
	Requested    int    `json:"requested"`
	Generated    int    `json:"generated"`
	Sent         int    `json:"sent"`
	Failed       int    `json:"failed"`
	Unsubscribed int    `json:"unsubscribed"`
	SkippedItems int    `json:"skipped_items"`
	LeftQueued   int    `json:"left_queued"`
	Exhausted    bool   `json:"exhausted"`
	ErrorItems   int    `json:"error_items"`
}

// Value implements the driver.Valuer interface for RunSummary
func (s RunSummary) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for RunSummary
func (s *RunSummary) Scan(value any) error {
	if value == nil {
		*s = RunSummary{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into RunSummary", value)
	}

	return json.Unmarshal(bytes, s)
}

// RunJob is the status record of one orchestration invocation for one campaign
type RunJob struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UUID         uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_run_jobs_uuid" json:"uuid"`
	CampaignID   *uint          `gorm:"index:idx_run_jobs_campaign_id" json:"campaign_id,omitempty"`
	RunType      RunType        `gorm:"size:16;not null" json:"run_type"`
	Status       RunJobStatus   `gorm:"type:run_job_status;not null;default:'running';index:idx_run_jobs_status" json:"status"`
	Progress     int            `gorm:"not null;default:0" json:"progress"`
	Summary      RunSummary     `gorm:"type:jsonb;not null" json:"summary"`
	Errors       pq.StringArray `gorm:"type:text[]" json:"errors"`
	ErrorMessage *string        `gorm:"type:text" json:"error_message,omitempty"`
	StartedAt    time.Time      `gorm:"not null" json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_run_jobs_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (RunJob) TableName() string { return "run_jobs" }

// BeforeCreate is called before creating a new record
func (j *RunJob) BeforeCreate(tx *gorm.DB) error {
	if j.UUID == uuid.Nil {
		j.UUID = uuid.New()
	}
	if j.Status == "" {
		j.Status = RunJobStatusRunning
	}
	return nil
}

// RunJobFilter provides filter fields for repository queries
type RunJobFilter struct {
	ID            *uint
	UUID          *uuid.UUID
	CampaignID    *uint
	Status        *RunJobStatus
	RunType       *RunType
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
