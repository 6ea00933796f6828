package businessflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/amirphl/outreach-autopilot/utils"
)

// SequenceResult summarises one pass of the sequence tracker
type SequenceResult struct {
	Due       int
	Enqueued  int
	Completed int
	Skipped   int
	Conflicts int
	Failures  []ItemFailure
}

// ItemFailure is a recoverable error tied to one recipient
type ItemFailure struct {
	RecipientID uint
	MessageID   uint
	Err         error
}

// UnsubscribeChecker reports whether an address is on the suppression list
type UnsubscribeChecker interface {
	IsUnsubscribed(ctx context.Context, address string) (bool, error)
}

// SequenceFlow advances recipients through a campaign's ordered follow-up steps
type SequenceFlow interface {
	AdvanceDue(ctx context.Context, campaign *models.Campaign, now time.Time) (*SequenceResult, error)
	Enroll(ctx context.Context, campaign *models.Campaign, recipientID uint, now time.Time) (bool, error)
}

type SequenceFlowImpl struct {
	stepRepo      repository.SequenceStepRepository
	progressRepo  repository.SequenceProgressRepository
	recipientRepo repository.RecipientRepository
	messageRepo   repository.OutboundMessageRepository
	abTests       ABTestFlow
	unsubscribes  UnsubscribeChecker
	tx            repository.TxManager
	batchSize     int
}

func NewSequenceFlow(
	stepRepo repository.SequenceStepRepository,
	progressRepo repository.SequenceProgressRepository,
	recipientRepo repository.RecipientRepository,
	messageRepo repository.OutboundMessageRepository,
	abTests ABTestFlow,
	unsubscribes UnsubscribeChecker,
	tx repository.TxManager,
) SequenceFlow {
	return &SequenceFlowImpl{
		stepRepo:      stepRepo,
		progressRepo:  progressRepo,
		recipientRepo: recipientRepo,
		messageRepo:   messageRepo,
		abTests:       abTests,
		unsubscribes:  unsubscribes,
		tx:            tx,
		batchSize:     utils.DefaultSequenceBatch,
	}
}

// stepIndex answers step lookups for one campaign
type stepIndex struct {
	byNumber map[int]*models.SequenceStep
	ordered  []*models.SequenceStep
}

func newStepIndex(steps []*models.SequenceStep) stepIndex {
	idx := stepIndex{byNumber: make(map[int]*models.SequenceStep, len(steps)), ordered: steps}
	for _, s := range steps {
		idx.byNumber[s.StepNumber] = s
	}
	return idx
}

// after returns the first step numbered above n; with contiguous numbering this is n+1
func (i stepIndex) after(n int) *models.SequenceStep {
	for _, s := range i.ordered {
		if s.StepNumber > n {
			return s
		}
	}
	return nil
}

// AdvanceDue processes every due, unpaused, uncompleted progress row of the campaign.
// Recipients who replied or reached a terminal status are skipped without writing anything.
func (f *SequenceFlowImpl) AdvanceDue(ctx context.Context, campaign *models.Campaign, now time.Time) (result *SequenceResult, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("ADVANCE_SEQUENCE_FAILED", "Failed to advance campaign sequence", err)
		}
	}()

	steps, err := f.stepRepo.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return nil, err
	}
	index := newStepIndex(steps)

	due, err := f.progressRepo.ListDue(ctx, campaign.ID, now, f.batchSize)
	if err != nil {
		return nil, err
	}

	result = &SequenceResult{Due: len(due)}
	if len(due) == 0 {
		return result, nil
	}

	ids := make([]uint, 0, len(due))
	for _, p := range due {
		ids = append(ids, p.RecipientID)
	}
	recipients, err := f.recipientRepo.ByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, progress := range due {
		if ctx.Err() != nil {
			return result, nil
		}
		// Re-check in memory; the row may have been loaded before a pause landed
		if !progress.IsDue(now) {
			result.Skipped++
			continue
		}
		recipient, ok := recipients[progress.RecipientID]
		if !ok || !recipient.IsReachable() {
			result.Skipped++
			continue
		}
		if f.unsubscribes != nil {
			unsubscribed, err := f.unsubscribes.IsUnsubscribed(ctx, recipient.Address)
			if err != nil {
				result.Failures = append(result.Failures, ItemFailure{RecipientID: recipient.ID, Err: err})
				continue
			}
			if unsubscribed {
				result.Skipped++
				continue
			}
		}

		enqueued, completed, stepErr := f.advanceOne(ctx, campaign, recipient, progress, index, now)
		switch {
		case errors.Is(stepErr, ErrConcurrentUpdate):
			result.Conflicts++
		case stepErr != nil:
			result.Failures = append(result.Failures, ItemFailure{RecipientID: recipient.ID, Err: stepErr})
		default:
			if enqueued {
				result.Enqueued++
			}
			if completed {
				result.Completed++
			}
		}
	}

	return result, nil
}

// advanceOne enqueues the current step (when it exists and is active) and moves the pointer,
// all in one transaction guarded by the row version.
func (f *SequenceFlowImpl) advanceOne(
	ctx context.Context,
	campaign *models.Campaign,
	recipient *models.Recipient,
	progress *models.SequenceProgress,
	index stepIndex,
	now time.Time,
) (enqueued, completed bool, err error) {
	next := *progress
	if following := index.after(progress.CurrentStep); following != nil {
		next.CurrentStep = following.StepNumber
		next.NextSendAt = now.Add(following.Delay())
	} else {
		at := now
		next.CompletedAt = &at
	}

	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		step := index.byNumber[progress.CurrentStep]
		if step != nil && step.Active() {
			msg, err := f.buildStepMessage(txCtx, campaign, recipient, step)
			if err != nil {
				return err
			}
			if err := f.messageRepo.Save(txCtx, msg); err != nil {
				return fmt.Errorf("enqueue step %d: %w", step.StepNumber, err)
			}
			enqueued = true
		}

		ok, err := f.progressRepo.UpdateVersioned(txCtx, &next)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConcurrentUpdate
		}
		return nil
	})
	if err != nil {
		return false, false, err
	}

	*progress = next
	return enqueued, next.CompletedAt != nil, nil
}

// buildStepMessage renders the step, swapping in the A/B variant when a test is running on it
func (f *SequenceFlowImpl) buildStepMessage(ctx context.Context, campaign *models.Campaign, recipient *models.Recipient, step *models.SequenceStep) (*models.OutboundMessage, error) {
	subject, body := step.SubjectTemplate, step.BodyTemplate
	stepNumber := step.StepNumber
	msg := &models.OutboundMessage{
		CampaignID:  campaign.ID,
		RecipientID: recipient.ID,
		StepNumber:  &stepNumber,
		Status:      models.OutboundMessageStatusQueued,
	}

	if campaign.ABTestingEnabled && f.abTests != nil {
		test, err := f.abTests.ActiveTest(ctx, campaign.ID, step.StepNumber)
		if err != nil {
			return nil, err
		}
		if test != nil {
			variant := AssignVariant(test)
			subject, body = test.Content(variant)
			if err := f.abTests.RecordSend(ctx, test.ID, variant); err != nil {
				return nil, err
			}
			testID := test.ID
			msg.ABTestID = &testID
			msg.Variant = &variant
		}
	}

	msg.Subject = RenderTemplate(subject, recipient, campaign)
	msg.Body = RenderTemplate(body, recipient, campaign)
	return msg, nil
}

// Enroll starts the recipient at the first step; it is a no-op when the campaign has no steps
// or the recipient is already enrolled.
func (f *SequenceFlowImpl) Enroll(ctx context.Context, campaign *models.Campaign, recipientID uint, now time.Time) (bool, error) {
	steps, err := f.stepRepo.ListByCampaign(ctx, campaign.ID)
	if err != nil {
		return false, NewBusinessError("ENROLL_SEQUENCE_FAILED", "Failed to load sequence steps", err)
	}
	if len(steps) == 0 {
		return false, nil
	}

	first := steps[0]
	progress := &models.SequenceProgress{
		RecipientID: recipientID,
		CampaignID:  campaign.ID,
		CurrentStep: first.StepNumber,
		NextSendAt:  now.Add(first.Delay()),
	}
	created, err := f.progressRepo.SaveIfAbsent(ctx, progress)
	if err != nil {
		return false, NewBusinessError("ENROLL_SEQUENCE_FAILED", "Failed to enroll recipient in sequence", err)
	}
	return created, nil
}
