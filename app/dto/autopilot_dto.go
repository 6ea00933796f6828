package dto

import "github.com/amirphl/outreach-autopilot/models"

// EngagementRequest identifies a message by the tracking id embedded in it
type EngagementRequest struct {
	TrackingID string `json:"tracking_id" validate:"required,uuid"`
}

// EngagementResponse echoes the message an engagement was recorded on
type EngagementResponse struct {
	MessageID   uint   `json:"message_id"`
	CampaignID  uint   `json:"campaign_id"`
	RecipientID uint   `json:"recipient_id"`
	OpenedAt    string `json:"opened_at,omitempty"`
	RepliedAt   string `json:"replied_at,omitempty"`
}

// UnsubscribeRequest adds an address to the suppression list
type UnsubscribeRequest struct {
	Address string  `json:"address" validate:"required,email,max=320"`
	Reason  *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

// UnsubscribeResponse reports how many sequences were paused
type UnsubscribeResponse struct {
	Address         string `json:"address"`
	PausedSequences int64  `json:"paused_sequences"`
}

// RunJobResponse is the dashboard view of a run job
type RunJobResponse struct {
	UUID         string            `json:"uuid"`
	CampaignID   *uint             `json:"campaign_id,omitempty"`
	RunType      string            `json:"run_type"`
	Status       string            `json:"status"`
	Progress     int               `json:"progress"`
	Summary      models.RunSummary `json:"summary"`
	Errors       []string          `json:"errors"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	StartedAt    string            `json:"started_at"`
	FinishedAt   *string           `json:"finished_at,omitempty"`
}

// RunEventItem is one line of a run's event log
type RunEventItem struct {
	ID        uint   `json:"id"`
	Level     string `json:"level"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Metadata  any    `json:"metadata,omitempty"`
	CreatedAt string `json:"created_at"`
}

// ListRunEventsResponse is a page of run events
type ListRunEventsResponse struct {
	Items  []RunEventItem `json:"items"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}
