package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/google/uuid"
)

// SuppressionCache drops cached unsubscribe answers for an address
type SuppressionCache interface {
	Invalidate(ctx context.Context, address string) error
}

// EngagementFlow ingests opens, replies and unsubscribes reported by the delivery side.
// Replies and unsubscribes pause every sequence of the affected recipients.
type EngagementFlow interface {
	RecordOpen(ctx context.Context, trackingID uuid.UUID) (*models.OutboundMessage, error)
	RecordReply(ctx context.Context, trackingID uuid.UUID) (*models.OutboundMessage, error)
	RecordUnsubscribe(ctx context.Context, address string, reason *string) (int64, error)
}

type EngagementFlowImpl struct {
	messageRepo     repository.OutboundMessageRepository
	recipientRepo   repository.RecipientRepository
	progressRepo    repository.SequenceProgressRepository
	suppressionRepo repository.SuppressionRepository
	abTests         ABTestFlow
	cache           SuppressionCache
	tx              repository.TxManager
	now             func() time.Time
}

func NewEngagementFlow(
	messageRepo repository.OutboundMessageRepository,
	recipientRepo repository.RecipientRepository,
	progressRepo repository.SequenceProgressRepository,
	suppressionRepo repository.SuppressionRepository,
	abTests ABTestFlow,
	cache SuppressionCache,
	tx repository.TxManager,
) EngagementFlow {
	return &EngagementFlowImpl{
		messageRepo:     messageRepo,
		recipientRepo:   recipientRepo,
		progressRepo:    progressRepo,
		suppressionRepo: suppressionRepo,
		abTests:         abTests,
		cache:           cache,
		tx:              tx,
		now:             utils.UTCNow,
	}
}

func (f *EngagementFlowImpl) loadMessage(ctx context.Context, trackingID uuid.UUID) (*models.OutboundMessage, error) {
	msg, err := f.messageRepo.ByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, NewBusinessError("GET_MESSAGE_FAILED", "Failed to load outbound message", err)
	}
	if msg == nil {
		return nil, ErrMessageNotFound
	}
	return msg, nil
}

// RecordOpen stamps the first open of a sent message; repeated opens are ignored
func (f *EngagementFlowImpl) RecordOpen(ctx context.Context, trackingID uuid.UUID) (*models.OutboundMessage, error) {
	msg, err := f.loadMessage(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	now := f.now()
	first, err := f.messageRepo.MarkOpened(ctx, msg.ID, now)
	if err != nil {
		return nil, NewBusinessError("RECORD_OPEN_FAILED", "Failed to record open", err)
	}
	if !first {
		return msg, nil
	}
	msg.OpenedAt = &now

	if msg.ABTestID != nil && msg.Variant != nil {
		if _, err := f.abTests.RecordOpen(ctx, *msg.ABTestID, *msg.Variant); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// RecordReply marks the message and recipient as replied and pauses the recipient's sequences
// in one transaction, then feeds the reply into the A/B test.
func (f *EngagementFlowImpl) RecordReply(ctx context.Context, trackingID uuid.UUID) (*models.OutboundMessage, error) {
	msg, err := f.loadMessage(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	now := f.now()
	var first bool
	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		first, err = f.messageRepo.MarkReplied(txCtx, msg.ID, now)
		if err != nil {
			return err
		}
		if err := f.recipientRepo.MarkReplied(txCtx, msg.RecipientID, now); err != nil {
			return err
		}
		_, err = f.progressRepo.PauseByRecipients(txCtx, []uint{msg.RecipientID}, now)
		return err
	})
	if err != nil {
		return nil, NewBusinessError("RECORD_REPLY_FAILED", "Failed to record reply", err)
	}
	if !first {
		return msg, nil
	}
	msg.RepliedAt = &now

	if msg.ABTestID != nil && msg.Variant != nil {
		if _, err := f.abTests.RecordReply(ctx, *msg.ABTestID, *msg.Variant); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// RecordUnsubscribe suppresses the address and pauses every sequence of recipients using it.
// It returns the number of progress rows paused.
func (f *EngagementFlowImpl) RecordUnsubscribe(ctx context.Context, address string, reason *string) (int64, error) {
	address = utils.NormalizeAddress(address)
	if address == "" {
		return 0, ErrInvalidAddress
	}

	var paused int64
	err := f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := f.suppressionRepo.Upsert(txCtx, address, reason); err != nil {
			return err
		}
		recipients, err := f.recipientRepo.ListByAddress(txCtx, address)
		if err != nil {
			return err
		}
		ids := make([]uint, 0, len(recipients))
		for _, r := range recipients {
			ids = append(ids, r.ID)
		}
		paused, err = f.progressRepo.PauseByRecipients(txCtx, ids, f.now())
		return err
	})
	if err != nil {
		return 0, NewBusinessError("RECORD_UNSUBSCRIBE_FAILED", "Failed to record unsubscribe", err)
	}

	if f.cache != nil {
		if err := f.cache.Invalidate(ctx, address); err != nil {
			// Cached entries expire on their own
			log.Printf("engagement: suppression cache invalidate failed request_id=%v address=%s err=%v", ctx.Value(utils.RequestIDKey), address, err)
		}
	}
	return paused, nil
}
