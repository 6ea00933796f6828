package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/repository"
	testingutil "github.com/amirphl/outreach-autopilot/testing"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDB(t *testing.T, fn func(t *testing.T, db *testingutil.TestDB, fx *testingutil.TestFixtures)) {
	t.Helper()
	if !testingutil.Available() {
		t.Skip("TEST_DB_HOST not set")
	}
	err := testingutil.TestWithDB(func(db *testingutil.TestDB) error {
		fn(t, db, testingutil.NewTestFixtures(db))
		return nil
	})
	require.NoError(t, err)
}

func TestSendingIdentityCounters(t *testing.T) {
	withDB(t, func(t *testing.T, db *testingutil.TestDB, fx *testingutil.TestFixtures) {
		ctx := context.Background()
		repo := repository.NewSendingIdentityRepository(db.DB)

		t.Run("IncrementStopsAtQuota", func(t *testing.T) {
			identity, err := fx.CreateTestIdentity(1, 2, 0, utils.UTCNow())
			require.NoError(t, err)

			for i := 0; i < 2; i++ {
				ok, err := repo.IncrementSentToday(ctx, identity.ID)
				require.NoError(t, err)
				assert.True(t, ok)
			}
			ok, err := repo.IncrementSentToday(ctx, identity.ID)
			require.NoError(t, err)
			assert.False(t, ok)

			stored, err := repo.ByID(ctx, identity.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, stored.SentToday)
		})

		t.Run("ConcurrentIncrementsNeverOverspend", func(t *testing.T) {
			identity, err := fx.CreateTestIdentity(1, 5, 0, utils.UTCNow())
			require.NoError(t, err)

			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
			)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := repo.IncrementSentToday(ctx, identity.ID)
					if err == nil && ok {
						mu.Lock()
						successes++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			stored, err := repo.ByID(ctx, identity.ID)
			require.NoError(t, err)
			assert.Equal(t, 5, successes)
			assert.Equal(t, 5, stored.SentToday)
		})

		t.Run("ResetIsCompareAndSwap", func(t *testing.T) {
			identity, err := fx.CreateTestIdentity(1, 5, 5, utils.UTCNow().Add(-25*time.Hour))
			require.NoError(t, err)
			stored, err := repo.ByID(ctx, identity.ID)
			require.NoError(t, err)

			now := utils.UTCNow()
			ok, err := repo.ResetDailyCount(ctx, identity.ID, stored.LastResetAt, now)
			require.NoError(t, err)
			assert.True(t, ok)

			// A second reset with the stale timestamp loses
			ok, err = repo.ResetDailyCount(ctx, identity.ID, stored.LastResetAt, now)
			require.NoError(t, err)
			assert.False(t, ok)

			reset, err := repo.ByID(ctx, identity.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, reset.SentToday)
		})

		t.Run("DecrementFloorsAtZero", func(t *testing.T) {
			identity, err := fx.CreateTestIdentity(1, 5, 0, utils.UTCNow())
			require.NoError(t, err)
			stored, err := repo.ByID(ctx, identity.ID)
			require.NoError(t, err)
			require.NoError(t, repo.DecrementSentToday(ctx, identity.ID, stored.LastResetAt))

			stored, err = repo.ByID(ctx, identity.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, stored.SentToday)
		})

		t.Run("DecrementSkipsNewerWindow", func(t *testing.T) {
			identity, err := fx.CreateTestIdentity(1, 5, 3, utils.UTCNow().Add(-25*time.Hour))
			require.NoError(t, err)
			reserved, err := repo.ByID(ctx, identity.ID)
			require.NoError(t, err)

			ok, err := repo.ResetDailyCount(ctx, identity.ID, reserved.LastResetAt, utils.UTCNow())
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = repo.IncrementSentToday(ctx, identity.ID)
			require.NoError(t, err)
			require.True(t, ok)

			require.NoError(t, repo.DecrementSentToday(ctx, identity.ID, reserved.LastResetAt))

			stored, err := repo.ByID(ctx, identity.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, stored.SentToday)
		})
	})
}

func TestSequenceProgressRepository(t *testing.T) {
	withDB(t, func(t *testing.T, db *testingutil.TestDB, fx *testingutil.TestFixtures) {
		ctx := context.Background()
		repo := repository.NewSequenceProgressRepository(db.DB)

		campaign, err := fx.CreateTestCampaign(1)
		require.NoError(t, err)
		recipient, err := fx.CreateTestRecipient(campaign.ID, "ada@example.com")
		require.NoError(t, err)

		now := utils.UTCNow()
		progress := &models.SequenceProgress{
			RecipientID: recipient.ID,
			CampaignID:  campaign.ID,
			CurrentStep: 1,
			NextSendAt:  now.Add(-time.Minute),
		}

		inserted, err := repo.SaveIfAbsent(ctx, progress)
		require.NoError(t, err)
		require.True(t, inserted)

		again, err := repo.SaveIfAbsent(ctx, &models.SequenceProgress{RecipientID: recipient.ID, CampaignID: campaign.ID, CurrentStep: 1, NextSendAt: now})
		require.NoError(t, err)
		assert.False(t, again)

		due, err := repo.ListDue(ctx, campaign.ID, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)

		row := due[0]
		stale := *row
		row.CurrentStep = 2
		row.NextSendAt = now.Add(48 * time.Hour)
		ok, err := repo.UpdateVersioned(ctx, row)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, stale.Version+1, row.Version)

		// A writer holding the old version loses
		stale.CurrentStep = 3
		ok, err = repo.UpdateVersioned(ctx, &stale)
		require.NoError(t, err)
		assert.False(t, ok)

		due, err = repo.ListDue(ctx, campaign.ID, now, 10)
		require.NoError(t, err)
		assert.Empty(t, due)

		paused, err := repo.PauseByRecipients(ctx, []uint{recipient.ID}, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), paused)

		stored, err := repo.ByRecipientAndCampaign(ctx, recipient.ID, campaign.ID)
		require.NoError(t, err)
		assert.True(t, stored.IsPaused)
		assert.Equal(t, 2, stored.CurrentStep)
	})
}

func TestOutboundMessageRepository(t *testing.T) {
	withDB(t, func(t *testing.T, db *testingutil.TestDB, fx *testingutil.TestFixtures) {
		ctx := context.Background()
		repo := repository.NewOutboundMessageRepository(db.DB)

		campaign, err := fx.CreateTestCampaign(1)
		require.NoError(t, err)
		recipient, err := fx.CreateTestRecipient(campaign.ID, "bob@example.com")
		require.NoError(t, err)
		identity, err := fx.CreateTestIdentity(1, 10, 0, utils.UTCNow())
		require.NoError(t, err)

		first, err := fx.CreateQueuedMessage(campaign.ID, recipient.ID)
		require.NoError(t, err)
		second, err := fx.CreateQueuedMessage(campaign.ID, recipient.ID)
		require.NoError(t, err)

		queued, err := repo.ListQueued(ctx, campaign.ID, 10)
		require.NoError(t, err)
		require.Len(t, queued, 2)
		assert.Equal(t, first.ID, queued[0].ID)

		count, err := repo.CountInitialSince(ctx, campaign.ID, utils.UTCNow().Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)

		now := utils.UTCNow()
		ok, err := repo.MarkSent(ctx, first.ID, identity.ID, "pm-1", now)
		require.NoError(t, err)
		require.True(t, ok)

		// Terminal states do not move
		ok, err = repo.MarkFailed(ctx, first.ID, "late failure")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = repo.MarkSkipped(ctx, second.ID, "unsubscribed")
		require.NoError(t, err)
		assert.True(t, ok)

		opened, err := repo.MarkOpened(ctx, first.ID, now)
		require.NoError(t, err)
		assert.True(t, opened)
		opened, err = repo.MarkOpened(ctx, first.ID, now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, opened)

		stored, err := repo.ByTrackingID(ctx, first.TrackingID)
		require.NoError(t, err)
		assert.Equal(t, models.OutboundMessageStatusSent, stored.Status)
		require.NotNil(t, stored.SendingIdentityID)
		assert.Equal(t, identity.ID, *stored.SendingIdentityID)
		require.NotNil(t, stored.OpenedAt)
	})
}

func TestABTestRepository(t *testing.T) {
	withDB(t, func(t *testing.T, db *testingutil.TestDB, fx *testingutil.TestFixtures) {
		ctx := context.Background()
		repo := repository.NewABTestRepository(db.DB)

		campaign, err := fx.CreateTestCampaign(1)
		require.NoError(t, err)

		test := &models.ABTest{
			CampaignID:          campaign.ID,
			StepNumber:          1,
			VariantASubject:     "A",
			VariantABody:        "A",
			VariantBSubject:     "B",
			VariantBBody:        "B",
			ConfidenceThreshold: 0.95,
			MinSampleSize:       50,
			IsActive:            utils.ToPtr(true),
		}
		require.NoError(t, repo.Save(ctx, test))

		require.NoError(t, repo.IncrementCounter(ctx, test.ID, models.ABTestCounterSends, models.VariantA))
		require.NoError(t, repo.IncrementCounter(ctx, test.ID, models.ABTestCounterReplies, models.VariantB))

		ok, err := repo.LockWinner(ctx, test.ID, models.VariantB, utils.UTCNow())
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = repo.LockWinner(ctx, test.ID, models.VariantA, utils.UTCNow())
		require.NoError(t, err)
		assert.False(t, ok)

		stored, err := repo.ByCampaignAndStep(ctx, campaign.ID, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.SendsA)
		assert.Equal(t, 1, stored.RepliesB)
		require.NotNil(t, stored.Winner)
		assert.Equal(t, models.VariantB, *stored.Winner)
	})
}

func TestSuppressionAndTransactions(t *testing.T) {
	withDB(t, func(t *testing.T, db *testingutil.TestDB, fx *testingutil.TestFixtures) {
		ctx := context.Background()
		suppression := repository.NewSuppressionRepository(db.DB)
		tx := repository.NewTxManager(db.DB)

		require.NoError(t, suppression.Upsert(ctx, "gone@example.com", utils.ToPtr("asked")))
		require.NoError(t, suppression.Upsert(ctx, "gone@example.com", nil))

		exists, err := suppression.ExistsByAddress(ctx, "gone@example.com")
		require.NoError(t, err)
		assert.True(t, exists)

		// Rolled back writes are not visible
		boom := errors.New("boom")
		err = tx.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := suppression.Upsert(txCtx, "rollback@example.com", nil); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		exists, err = suppression.ExistsByAddress(ctx, "rollback@example.com")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}
