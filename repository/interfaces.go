// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// RunStats is the delta applied to a campaign after a run
type RunStats struct {
	Generated int
	Sent      int
	Failed    int
	RunAt     time.Time
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	ListAutomated(ctx context.Context) ([]*models.Campaign, error)
	ApplyRunStats(ctx context.Context, campaignID uint, stats RunStats) error
}

// SendingIdentityRepository defines operations for sending identities.
// Counter updates are single conditional statements so concurrent runs cannot overspend a quota.
type SendingIdentityRepository interface {
	Repository[models.SendingIdentity, models.SendingIdentityFilter]
	ListActiveByOwner(ctx context.Context, ownerID uint) ([]*models.SendingIdentity, error)
	// ResetDailyCount zeroes sent_today only if last_reset_at still equals expectedLastReset.
	ResetDailyCount(ctx context.Context, id uint, expectedLastReset, now time.Time) (bool, error)
	// IncrementSentToday adds one only while sent_today < daily_quota.
	IncrementSentToday(ctx context.Context, id uint) (bool, error)
	DecrementSentToday(ctx context.Context, id uint, lastResetAt time.Time) error
}

// RecipientRepository defines operations for recipients
type RecipientRepository interface {
	Repository[models.Recipient, models.RecipientFilter]
	ByIDs(ctx context.Context, ids []uint) (map[uint]*models.Recipient, error)
	ListByAddress(ctx context.Context, address string) ([]*models.Recipient, error)
	UpdateStatus(ctx context.Context, id uint, from []models.RecipientStatus, to models.RecipientStatus) (bool, error)
	MarkReplied(ctx context.Context, id uint, at time.Time) error
	UpdatePriority(ctx context.Context, id uint, score float64) error
}

// SequenceStepRepository defines operations for sequence steps
type SequenceStepRepository interface {
	Save(ctx context.Context, step *models.SequenceStep) error
	ListByCampaign(ctx context.Context, campaignID uint) ([]*models.SequenceStep, error)
}

// SequenceProgressRepository defines operations for sequence progress rows
type SequenceProgressRepository interface {
	Repository[models.SequenceProgress, models.SequenceProgressFilter]
	ByRecipientAndCampaign(ctx context.Context, recipientID, campaignID uint) (*models.SequenceProgress, error)
	ListDue(ctx context.Context, campaignID uint, now time.Time, limit int) ([]*models.SequenceProgress, error)
	// SaveIfAbsent inserts the row unless one already exists for (recipient, campaign).
	SaveIfAbsent(ctx context.Context, progress *models.SequenceProgress) (bool, error)
	// UpdateVersioned writes step, next send, and completion when version still matches, bumping it.
	UpdateVersioned(ctx context.Context, progress *models.SequenceProgress) (bool, error)
	PauseByRecipients(ctx context.Context, recipientIDs []uint, at time.Time) (int64, error)
}

// OutboundMessageRepository defines operations for outbound messages.
// Status writes are guarded by status = 'queued' so only terminal transitions happen.
type OutboundMessageRepository interface {
	Repository[models.OutboundMessage, models.OutboundMessageFilter]
	ByTrackingID(ctx context.Context, trackingID uuid.UUID) (*models.OutboundMessage, error)
	ListQueued(ctx context.Context, campaignID uint, limit int) ([]*models.OutboundMessage, error)
	CountInitialSince(ctx context.Context, campaignID uint, since time.Time) (int64, error)
	MarkSent(ctx context.Context, id, identityID uint, providerMessageID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uint, detail string) (bool, error)
	MarkSkipped(ctx context.Context, id uint, detail string) (bool, error)
	MarkOpened(ctx context.Context, id uint, at time.Time) (bool, error)
	MarkReplied(ctx context.Context, id uint, at time.Time) (bool, error)
}

// ABTestRepository defines operations for A/B tests
type ABTestRepository interface {
	Repository[models.ABTest, models.ABTestFilter]
	ByCampaignAndStep(ctx context.Context, campaignID uint, stepNumber int) (*models.ABTest, error)
	IncrementCounter(ctx context.Context, id uint, counter models.ABTestCounter, variant models.Variant) error
	// LockWinner sets the winner only while none is set.
	LockWinner(ctx context.Context, id uint, winner models.Variant, at time.Time) (bool, error)
}

// RunJobRepository defines operations for run jobs
type RunJobRepository interface {
	Repository[models.RunJob, models.RunJobFilter]
	ByUUID(ctx context.Context, id uuid.UUID) (*models.RunJob, error)
	UpdateProgress(ctx context.Context, id uint, progress int) error
	AppendError(ctx context.Context, id uint, message string) error
	Finish(ctx context.Context, job *models.RunJob) error
}

// RunEventRepository defines operations for the append-only run event log
type RunEventRepository interface {
	Save(ctx context.Context, event *models.RunEvent) error
	ListByRunJob(ctx context.Context, runJobID uint, limit, offset int) ([]*models.RunEvent, error)
}

// SuppressionRepository defines operations for the unsubscribe list
type SuppressionRepository interface {
	Upsert(ctx context.Context, address string, reason *string) error
	ExistsByAddress(ctx context.Context, address string) (bool, error)
}
