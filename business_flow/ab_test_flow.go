package businessflow

import (
	"context"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/amirphl/outreach-autopilot/utils"
)

// ABTestFlow persists variant exposure and engagement, locking a winner once it is significant
type ABTestFlow interface {
	// ActiveTest returns the active test for a sequence step, or nil when there is none.
	ActiveTest(ctx context.Context, campaignID uint, stepNumber int) (*models.ABTest, error)
	RecordSend(ctx context.Context, testID uint, variant models.Variant) error
	RecordOpen(ctx context.Context, testID uint, variant models.Variant) (*models.ABTest, error)
	RecordReply(ctx context.Context, testID uint, variant models.Variant) (*models.ABTest, error)
	EvaluateWinner(ctx context.Context, testID uint) (*models.ABTest, error)
}

type ABTestFlowImpl struct {
	abTestRepo repository.ABTestRepository
	now        func() time.Time
}

func NewABTestFlow(abTestRepo repository.ABTestRepository) ABTestFlow {
	return &ABTestFlowImpl{
		abTestRepo: abTestRepo,
		now:        utils.UTCNow,
	}
}

func (f *ABTestFlowImpl) ActiveTest(ctx context.Context, campaignID uint, stepNumber int) (*models.ABTest, error) {
	test, err := f.abTestRepo.ByCampaignAndStep(ctx, campaignID, stepNumber)
	if err != nil {
		return nil, NewBusinessError("GET_AB_TEST_FAILED", "Failed to load A/B test", err)
	}
	if test == nil || !test.Active() {
		return nil, nil
	}
	return test, nil
}

func (f *ABTestFlowImpl) RecordSend(ctx context.Context, testID uint, variant models.Variant) error {
	if !variant.Valid() {
		return ErrInvalidVariant
	}
	if err := f.abTestRepo.IncrementCounter(ctx, testID, models.ABTestCounterSends, variant); err != nil {
		return NewBusinessError("RECORD_AB_SEND_FAILED", "Failed to record A/B send", err)
	}
	return nil
}

func (f *ABTestFlowImpl) RecordOpen(ctx context.Context, testID uint, variant models.Variant) (*models.ABTest, error) {
	return f.recordEngagement(ctx, testID, variant, models.ABTestCounterOpens)
}

func (f *ABTestFlowImpl) RecordReply(ctx context.Context, testID uint, variant models.Variant) (*models.ABTest, error) {
	return f.recordEngagement(ctx, testID, variant, models.ABTestCounterReplies)
}

func (f *ABTestFlowImpl) recordEngagement(ctx context.Context, testID uint, variant models.Variant, counter models.ABTestCounter) (*models.ABTest, error) {
	if !variant.Valid() {
		return nil, ErrInvalidVariant
	}
	if err := f.abTestRepo.IncrementCounter(ctx, testID, counter, variant); err != nil {
		return nil, NewBusinessErrorf("RECORD_AB_ENGAGEMENT_FAILED", "Failed to record A/B %s", err, counter)
	}
	return f.EvaluateWinner(ctx, testID)
}

// EvaluateWinner reloads the test and locks a winner when the reply-rate difference is significant
func (f *ABTestFlowImpl) EvaluateWinner(ctx context.Context, testID uint) (*models.ABTest, error) {
	test, err := f.abTestRepo.ByID(ctx, testID)
	if err != nil {
		return nil, NewBusinessError("GET_AB_TEST_FAILED", "Failed to load A/B test", err)
	}
	if test == nil {
		return nil, ErrABTestNotFound
	}

	if !EvaluateWinner(test, f.now()) {
		return test, nil
	}

	locked, err := f.abTestRepo.LockWinner(ctx, test.ID, *test.Winner, *test.WinnerSelectedAt)
	if err != nil {
		return nil, NewBusinessError("LOCK_AB_WINNER_FAILED", "Failed to lock A/B winner", err)
	}
	if !locked {
		// Someone else locked first; theirs stands
		test, err = f.abTestRepo.ByID(ctx, testID)
		if err != nil {
			return nil, NewBusinessError("GET_AB_TEST_FAILED", "Failed to load A/B test", err)
		}
	}
	return test, nil
}
