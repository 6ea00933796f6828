package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/outreach-autopilot/app/services"
	businessflow "github.com/amirphl/outreach-autopilot/business_flow"
	"github.com/amirphl/outreach-autopilot/config"
	"github.com/amirphl/outreach-autopilot/models"
	testingutil "github.com/amirphl/outreach-autopilot/testing"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ownerID uint = 7

type harness struct {
	now         time.Time
	campaigns   *testingutil.MemCampaignRepo
	identities  *testingutil.MemIdentityRepo
	recipients  *testingutil.MemRecipientRepo
	progress    *testingutil.MemProgressRepo
	messages    *testingutil.MemMessageRepo
	jobs        *testingutil.MemRunJobRepo
	events      *testingutil.MemRunEventRepo
	suppression *testingutil.MemSuppressionRepo
	ranker      *services.MockRecipientRanker
	generator   *services.MockContentGenerator
	transport   *services.MockDeliveryTransport
	sched       *AutopilotScheduler
}

func testCampaign() *models.Campaign {
	return &models.Campaign{
		ID:      1,
		OwnerID: ownerID,
		Name:    "Widgets Q4",
		Status:  models.CampaignStatusActive,
		AutomationConfig: models.AutomationConfig{
			AutomationEnabled:     true,
			DailyCap:              10,
			WindowStart:           "00:00",
			WindowEnd:             "23:59",
			Timezone:              "UTC",
			MinRecipientThreshold: 5,
		},
	}
}

func testIdentity(id uint, quota int) *models.SendingIdentity {
	return &models.SendingIdentity{
		ID:          id,
		OwnerID:     ownerID,
		Address:     fmt.Sprintf("sender%d@example.com", id),
		DailyQuota:  quota,
		LastResetAt: utils.UTCNow(),
		IsActive:    utils.ToPtr(true),
	}
}

func newRecipients(n int) []*models.Recipient {
	out := make([]*models.Recipient, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, &models.Recipient{
			ID:         uint(i),
			CampaignID: 1,
			Address:    fmt.Sprintf("r%d@example.com", i),
			FirstName:  utils.ToPtr(fmt.Sprintf("R%d", i)),
			Status:     models.RecipientStatusNew,
		})
	}
	return out
}

func newHarness(campaign *models.Campaign, steps []*models.SequenceStep, identities []*models.SendingIdentity, recipients []*models.Recipient) *harness {
	h := &harness{
		now:         time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		identities:  testingutil.NewMemIdentityRepo(identities...),
		recipients:  testingutil.NewMemRecipientRepo(recipients...),
		progress:    testingutil.NewMemProgressRepo(),
		messages:    testingutil.NewMemMessageRepo(),
		jobs:        testingutil.NewMemRunJobRepo(),
		events:      testingutil.NewMemRunEventRepo(),
		suppression: testingutil.NewMemSuppressionRepo(),
		ranker:      services.NewMockRecipientRanker(),
		generator:   services.NewMockContentGenerator(),
		transport:   services.NewMockDeliveryTransport(),
	}
	if campaign != nil {
		h.campaigns = testingutil.NewMemCampaignRepo(campaign)
	} else {
		h.campaigns = testingutil.NewMemCampaignRepo()
	}
	h.messages.Clock = func() time.Time { return h.now }

	ranked := make([]services.RankedRecipient, 0, len(recipients))
	for i, r := range recipients {
		ranked = append(ranked, services.RankedRecipient{RecipientID: r.ID, PriorityScore: float64(100 - i)})
	}
	h.ranker.SetRanking(1, ranked)

	tx := testingutil.PassthroughTx{}
	unsubscribes := services.NewUnsubscribeChecker(h.suppression, nil, "", 0)
	abTests := businessflow.NewABTestFlow(testingutil.NewMemABTestRepo())
	sequences := businessflow.NewSequenceFlow(testingutil.NewMemStepRepo(steps...), h.progress, h.recipients, h.messages, abTests, unsubscribes, tx)
	logger := log.New(io.Discard, "", 0)

	h.sched = NewAutopilotScheduler(
		h.campaigns,
		h.recipients,
		h.messages,
		tx,
		sequences,
		businessflow.NewIdentityAllocator(h.identities),
		businessflow.NewRunReporter(h.jobs, h.events, logger),
		h.ranker,
		h.generator,
		h.transport,
		unsubscribes,
		NewLocalRunLocker(),
		config.AutopilotConfig{CampaignConcurrency: 2, InterSendInterval: time.Second},
		logger,
	)
	h.sched.now = func() time.Time { return h.now }
	h.sched.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return h
}

func (h *harness) statuses() map[uint]models.OutboundMessageStatus {
	out := make(map[uint]models.OutboundMessageStatus)
	for _, m := range h.messages.All() {
		out[m.RecipientID] = m.Status
	}
	return out
}

func TestRunCampaign(t *testing.T) {
	ctx := context.Background()

	t.Run("GeneratesAndDelivers", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(3))

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, outcome.Err)

		assert.Equal(t, 3, outcome.Summary.Requested)
		assert.Equal(t, 3, outcome.Summary.Generated)
		assert.Equal(t, 3, outcome.Summary.Sent)
		assert.False(t, outcome.Summary.Exhausted)
		assert.Len(t, h.transport.GetSentMessages(), 3)
		assert.Equal(t, 3, h.identities.Get(1).SentToday)

		for id, status := range h.statuses() {
			assert.Equal(t, models.OutboundMessageStatusSent, status, "recipient %d", id)
			assert.Equal(t, models.RecipientStatusContacted, h.recipients.Get(id).Status)
		}

		job := h.jobs.All()[0]
		assert.Equal(t, models.RunJobStatusCompleted, job.Status)
		assert.Equal(t, models.RunTypeForced, job.RunType)
		assert.Equal(t, 100, job.Progress)

		stats := h.campaigns.Stats[1]
		assert.Equal(t, 3, stats.Generated)
		assert.Equal(t, 3, stats.Sent)
	})

	t.Run("ExhaustionLeavesRestQueued", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 2)}, newRecipients(3))

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, outcome.Err)

		assert.Equal(t, 2, outcome.Summary.Sent)
		assert.True(t, outcome.Summary.Exhausted)
		assert.Equal(t, 1, outcome.Summary.LeftQueued)
		assert.Equal(t, 2, h.identities.Get(1).SentToday)
		assert.Equal(t, models.OutboundMessageStatusQueued, h.statuses()[3])

		job := h.jobs.All()[0]
		assert.Equal(t, models.RunJobStatusCompleted, job.Status)
		assert.Contains(t, h.events.Kinds(job.ID), models.RunEventKindNoIdentity)
	})

	t.Run("UnsubscribedMessageSkipped", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(3))
		require.NoError(t, h.suppression.Upsert(ctx, "r2@example.com", nil))

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)

		assert.Equal(t, 2, outcome.Summary.Sent)
		assert.Equal(t, 1, outcome.Summary.Unsubscribed)
		assert.Equal(t, models.OutboundMessageStatusSkipped, h.statuses()[2])
		for _, sent := range h.transport.GetSentMessages() {
			assert.NotEqual(t, "r2@example.com", sent.To)
		}
		assert.Equal(t, 2, h.identities.Get(1).SentToday)
	})

	t.Run("GenerationFailureContinues", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(3))
		h.generator.FailFor[2] = errors.New("model overloaded")

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, outcome.Err)

		assert.Equal(t, 2, outcome.Summary.Generated)
		assert.Equal(t, 2, outcome.Summary.Sent)
		assert.Equal(t, 1, outcome.Summary.ErrorItems)

		job := h.jobs.All()[0]
		require.Len(t, job.Errors, 1)
		assert.True(t, strings.HasPrefix(job.Errors[0], "generate recipient=2"))
		assert.Contains(t, h.events.Kinds(job.ID), models.RunEventKindGenerationFailed)
	})

	t.Run("BounceReleasesQuotaAndMarksRecipient", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(3))
		h.transport.FailFor["r2@example.com"] = fmt.Errorf("%w: mailbox does not exist", services.ErrRecipientBounced)

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)

		assert.Equal(t, 2, outcome.Summary.Sent)
		assert.Equal(t, 1, outcome.Summary.Failed)
		assert.Equal(t, 2, h.identities.Get(1).SentToday)
		assert.Equal(t, models.OutboundMessageStatusFailed, h.statuses()[2])
		assert.Equal(t, models.RecipientStatusBounced, h.recipients.Get(2).Status)
	})

	t.Run("DailyCapLimitsGeneration", func(t *testing.T) {
		campaign := testCampaign()
		campaign.DailyCap = 2
		h := newHarness(campaign, nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(3))

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, outcome.Summary.Generated)
		require.Len(t, h.ranker.Calls, 1)
		assert.Equal(t, 2, h.ranker.Calls[0].Limit)

		// Same local day: the cap is spent
		outcome, err = h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		assert.Zero(t, outcome.Summary.Generated)
		assert.Len(t, h.ranker.Calls, 1)
	})

	t.Run("BacklogAboveThresholdSkipsGeneration", func(t *testing.T) {
		campaign := testCampaign()
		campaign.MinRecipientThreshold = 2
		h := newHarness(campaign, nil, nil, newRecipients(3))
		for _, id := range []uint{1, 2} {
			require.NoError(t, h.messages.Save(ctx, &models.OutboundMessage{CampaignID: 1, RecipientID: id, Subject: "s", Body: "b"}))
		}

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, h.ranker.Calls)
		assert.Zero(t, outcome.Summary.Generated)
		assert.True(t, outcome.Summary.Exhausted)
		assert.Equal(t, 2, outcome.Summary.LeftQueued)
	})

	t.Run("RankerFailureStillDrains", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(1))
		require.NoError(t, h.messages.Save(ctx, &models.OutboundMessage{CampaignID: 1, RecipientID: 1, Subject: "s", Body: "b"}))
		h.ranker.Err = errors.New("ranking service unavailable")

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, outcome.Err)
		assert.Equal(t, 1, outcome.Summary.Sent)
		assert.Equal(t, 1, outcome.Summary.ErrorItems)
	})

	t.Run("FollowUpsRunOnLaterPass", func(t *testing.T) {
		steps := []*models.SequenceStep{
			{CampaignID: 1, StepNumber: 1, DelayDays: 2, SubjectTemplate: "Following up, {{first_name}}", BodyTemplate: "Any thoughts?"},
		}
		h := newHarness(testCampaign(), steps, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(2))

		_, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		enrolled, ok := h.progress.ByRecipient(1)
		require.True(t, ok)
		assert.True(t, enrolled.NextSendAt.Equal(h.now.Add(48*time.Hour)))

		// Recipient 2 replies before the follow-up is due
		h.recipients.Mutate(2, func(r *models.Recipient) {
			r.HasReplied = true
			r.Status = models.RecipientStatusReplied
		})
		h.now = h.now.Add(49 * time.Hour)

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.Summary.Sequenced)
		assert.Equal(t, 1, outcome.Summary.Completed)

		followUps := 0
		for _, sent := range h.transport.GetSentMessages() {
			if strings.HasPrefix(sent.Subject, "Following up") {
				followUps++
				assert.Equal(t, "r1@example.com", sent.To)
				assert.Equal(t, "Following up, R1", sent.Subject)
			}
		}
		assert.Equal(t, 1, followUps)
	})

	t.Run("ForcedRunIgnoresWindow", func(t *testing.T) {
		campaign := testCampaign()
		campaign.WindowStart, campaign.WindowEnd = "06:00", "07:00"
		h := newHarness(campaign, nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(1))

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		assert.False(t, outcome.Summary.Skipped)
		assert.Equal(t, 1, outcome.Summary.Sent)
	})

	t.Run("MissingCampaignFailsJob", func(t *testing.T) {
		h := newHarness(nil, nil, nil, nil)

		outcome, err := h.sched.RunCampaign(ctx, 99)
		require.NoError(t, err)
		assert.ErrorIs(t, outcome.Err, businessflow.ErrCampaignNotFound)

		job := h.jobs.All()[0]
		assert.Equal(t, models.RunJobStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
	})

	t.Run("RunInProgress", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, nil, nil)
		release, acquired, err := h.sched.locker.Acquire(ctx, 1)
		require.NoError(t, err)
		require.True(t, acquired)
		defer release()

		outcome, err := h.sched.RunCampaign(ctx, 1)
		assert.Nil(t, outcome)
		assert.True(t, businessflow.IsRunInProgress(err))
		assert.Empty(t, h.jobs.All())
	})
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("ClosedWindowSkips", func(t *testing.T) {
		campaign := testCampaign()
		campaign.WindowStart, campaign.WindowEnd = "06:00", "07:00"
		h := newHarness(campaign, nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(2))

		outcomes, err := h.sched.RunOnce(ctx)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.True(t, outcomes[0].Summary.Skipped)
		assert.Equal(t, "outside send window", outcomes[0].Summary.SkipReason)
		assert.Empty(t, h.ranker.Calls)
		assert.Empty(t, h.messages.All())

		job := h.jobs.All()[0]
		assert.Equal(t, models.RunJobStatusCompleted, job.Status)
		assert.Equal(t, models.RunTypeScheduled, job.RunType)
		assert.Contains(t, h.events.Kinds(job.ID), models.RunEventKindWindowClosed)
	})

	t.Run("ReversedWindowFailsRun", func(t *testing.T) {
		campaign := testCampaign()
		campaign.WindowStart, campaign.WindowEnd = "17:00", "09:00"
		h := newHarness(campaign, nil, nil, nil)

		outcomes, err := h.sched.RunOnce(ctx)
		require.NoError(t, err)
		require.Len(t, outcomes, 1)
		assert.ErrorIs(t, outcomes[0].Err, businessflow.ErrReversedSendWindow)
		assert.Equal(t, models.RunJobStatusFailed, h.jobs.All()[0].Status)
	})

	t.Run("SkipsInactiveCampaigns", func(t *testing.T) {
		campaign := testCampaign()
		campaign.Status = models.CampaignStatusPaused
		h := newHarness(campaign, nil, nil, nil)

		outcomes, err := h.sched.RunOnce(ctx)
		require.NoError(t, err)
		assert.Empty(t, outcomes)
		assert.Empty(t, h.jobs.All())
	})

	t.Run("LockedCampaignIsSkippedSilently", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, nil, nil)
		release, _, err := h.sched.locker.Acquire(ctx, 1)
		require.NoError(t, err)
		defer release()

		outcomes, err := h.sched.RunOnce(ctx)
		require.NoError(t, err)
		assert.Empty(t, outcomes)
	})

	t.Run("ListFailure", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, nil, nil)
		h.campaigns.ListFn = func() ([]*models.Campaign, error) { return nil, testingutil.ErrInjected }

		_, err := h.sched.RunOnce(ctx)
		assert.ErrorIs(t, err, testingutil.ErrInjected)
	})
}

// brokenCounterRepo fails every quota write
type brokenCounterRepo struct {
	*testingutil.MemIdentityRepo
}

func (brokenCounterRepo) IncrementSentToday(context.Context, uint) (bool, error) {
	return false, testingutil.ErrInjected
}

func TestDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("ReserveErrorFailsOnlyThatMessage", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(3))
		h.sched.identities = businessflow.NewIdentityAllocator(brokenCounterRepo{h.identities})
		var sleeps int
		h.sched.sleep = func(ctx context.Context, _ time.Duration) error {
			sleeps++
			return ctx.Err()
		}

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		require.NoError(t, outcome.Err)

		assert.Equal(t, 3, outcome.Summary.Generated)
		assert.Zero(t, outcome.Summary.Sent)
		assert.Equal(t, 3, outcome.Summary.Failed)
		assert.Zero(t, outcome.Summary.LeftQueued)
		assert.False(t, outcome.Summary.Exhausted)
		assert.Equal(t, 2, sleeps)
		assert.Empty(t, h.transport.GetSentMessages())
		assert.Zero(t, h.identities.Get(1).SentToday)

		for id, status := range h.statuses() {
			assert.Equal(t, models.OutboundMessageStatusFailed, status, "recipient %d", id)
		}
		for _, m := range h.messages.All() {
			require.NotNil(t, m.ErrorDetail)
			assert.Contains(t, *m.ErrorDetail, testingutil.ErrInjected.Error())
		}

		job := h.jobs.All()[0]
		require.Len(t, job.Errors, 3)
		assert.True(t, strings.HasPrefix(job.Errors[0], "reserve identity message="))
	})

	t.Run("PausesBetweenSends", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(4))
		var pauses []time.Duration
		h.sched.sleep = func(ctx context.Context, d time.Duration) error {
			pauses = append(pauses, d)
			return ctx.Err()
		}

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 4, outcome.Summary.Sent)
		assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, pauses)
	})

	t.Run("InterruptedPauseLeavesRestQueued", func(t *testing.T) {
		h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(3))
		h.sched.sleep = func(context.Context, time.Duration) error { return context.Canceled }

		outcome, err := h.sched.RunCampaign(ctx, 1)
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.Summary.Sent)
		assert.Equal(t, 2, outcome.Summary.LeftQueued)
		assert.Len(t, h.transport.GetSentMessages(), 1)
		assert.Equal(t, 1, h.identities.Get(1).SentToday)

		counts := map[models.OutboundMessageStatus]int{}
		for _, status := range h.statuses() {
			counts[status]++
		}
		assert.Equal(t, 1, counts[models.OutboundMessageStatusSent])
		assert.Equal(t, 2, counts[models.OutboundMessageStatusQueued])
	})
}

func TestStartStops(t *testing.T) {
	h := newHarness(testCampaign(), nil, []*models.SendingIdentity{testIdentity(1, 10)}, newRecipients(1))
	h.sched.cfg.Interval = time.Hour

	stop := h.sched.Start(context.Background())
	assert.Eventually(t, func() bool {
		jobs := h.jobs.All()
		return len(jobs) == 1 && jobs[0].Status == models.RunJobStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	stop()
}
