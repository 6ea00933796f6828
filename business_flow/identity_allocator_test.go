package businessflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	testingutil "github.com/amirphl/outreach-autopilot/testing"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testOwnerID uint = 7

func newIdentity(id uint, quota, sent int, lastReset time.Time) *models.SendingIdentity {
	return &models.SendingIdentity{
		ID:          id,
		OwnerID:     testOwnerID,
		Address:     "sender@example.com",
		DailyQuota:  quota,
		SentToday:   sent,
		LastResetAt: lastReset,
		IsActive:    utils.ToPtr(true),
	}
}

func newTestAllocator(repo *testingutil.MemIdentityRepo, now time.Time) *IdentityAllocatorImpl {
	alloc := NewIdentityAllocator(repo).(*IdentityAllocatorImpl)
	alloc.now = func() time.Time { return now }
	return alloc
}

// staleListRepo serves a snapshot taken before another writer reset the counters
type staleListRepo struct {
	*testingutil.MemIdentityRepo
	stale []*models.SendingIdentity
}

func (r *staleListRepo) ListActiveByOwner(context.Context, uint) ([]*models.SendingIdentity, error) {
	return r.stale, nil
}

func TestAcquireIdentity(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	t.Run("ExhaustedBeforeWindowElapses", func(t *testing.T) {
		repo := testingutil.NewMemIdentityRepo(newIdentity(1, 10, 10, now.Add(-2*time.Hour)))
		alloc := newTestAllocator(repo, now)

		identity, err := alloc.AcquireIdentity(ctx, testOwnerID)
		assert.ErrorIs(t, err, ErrNoIdentityAvailable)
		assert.Nil(t, identity)

		stored := repo.Get(1)
		assert.Equal(t, 10, stored.SentToday)
		assert.True(t, stored.LastResetAt.Equal(now.Add(-2*time.Hour)))
	})

	t.Run("ResetAfterWindowElapses", func(t *testing.T) {
		repo := testingutil.NewMemIdentityRepo(newIdentity(1, 10, 10, now.Add(-25*time.Hour)))
		alloc := newTestAllocator(repo, now)

		identity, err := alloc.AcquireIdentity(ctx, testOwnerID)
		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, uint(1), identity.ID)
		assert.Equal(t, 0, identity.SentToday)

		stored := repo.Get(1)
		assert.Equal(t, 0, stored.SentToday)
		assert.True(t, stored.LastResetAt.Equal(now))
	})

	t.Run("SkipsExhaustedAndInactive", func(t *testing.T) {
		inactive := newIdentity(2, 10, 0, now)
		inactive.IsActive = utils.ToPtr(false)
		repo := testingutil.NewMemIdentityRepo(
			newIdentity(1, 5, 5, now.Add(-time.Hour)),
			inactive,
			newIdentity(3, 5, 1, now.Add(-time.Hour)),
		)
		alloc := newTestAllocator(repo, now)

		identity, err := alloc.AcquireIdentity(ctx, testOwnerID)
		require.NoError(t, err)
		assert.Equal(t, uint(3), identity.ID)
	})

	t.Run("NoIdentities", func(t *testing.T) {
		alloc := newTestAllocator(testingutil.NewMemIdentityRepo(), now)
		_, err := alloc.AcquireIdentity(ctx, testOwnerID)
		assert.True(t, IsNoIdentityAvailable(err))
	})

	t.Run("LostResetRaceUsesFreshRow", func(t *testing.T) {
		// Another run already reset the counter and sent four messages
		mem := testingutil.NewMemIdentityRepo(newIdentity(1, 10, 4, now.Add(-time.Minute)))
		repo := &staleListRepo{
			MemIdentityRepo: mem,
			stale:           []*models.SendingIdentity{newIdentity(1, 10, 10, now.Add(-25*time.Hour))},
		}
		alloc := NewIdentityAllocator(repo).(*IdentityAllocatorImpl)
		alloc.now = func() time.Time { return now }

		identity, err := alloc.AcquireIdentity(ctx, testOwnerID)
		require.NoError(t, err)
		assert.Equal(t, 4, identity.SentToday)
		assert.Equal(t, 4, mem.Get(1).SentToday)
	})
}

func TestReserveAndReleaseQuota(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	t.Run("StopsAtQuota", func(t *testing.T) {
		repo := testingutil.NewMemIdentityRepo(newIdentity(1, 3, 0, now))
		alloc := newTestAllocator(repo, now)

		for i := 1; i <= 3; i++ {
			identity, err := alloc.Reserve(ctx, testOwnerID)
			require.NoError(t, err)
			assert.Equal(t, i, identity.SentToday)
		}

		_, err := alloc.Reserve(ctx, testOwnerID)
		assert.ErrorIs(t, err, ErrNoIdentityAvailable)
		assert.Equal(t, 3, repo.Get(1).SentToday)
	})

	t.Run("SpillsOverToNextIdentity", func(t *testing.T) {
		repo := testingutil.NewMemIdentityRepo(newIdentity(1, 1, 0, now), newIdentity(2, 1, 0, now))
		alloc := newTestAllocator(repo, now)

		first, err := alloc.Reserve(ctx, testOwnerID)
		require.NoError(t, err)
		second, err := alloc.Reserve(ctx, testOwnerID)
		require.NoError(t, err)
		assert.Equal(t, uint(1), first.ID)
		assert.Equal(t, uint(2), second.ID)
	})

	t.Run("ConsumeQuotaRefusesOverspend", func(t *testing.T) {
		repo := testingutil.NewMemIdentityRepo(newIdentity(1, 2, 2, now))
		alloc := newTestAllocator(repo, now)

		err := alloc.ConsumeQuota(ctx, 1)
		assert.ErrorIs(t, err, ErrIdentityQuotaExhausted)
		assert.Equal(t, 2, repo.Get(1).SentToday)
	})

	t.Run("ReleaseGivesUnitBack", func(t *testing.T) {
		repo := testingutil.NewMemIdentityRepo(newIdentity(1, 2, 0, now))
		alloc := newTestAllocator(repo, now)

		identity, err := alloc.Reserve(ctx, testOwnerID)
		require.NoError(t, err)
		require.NoError(t, alloc.ReleaseQuota(ctx, identity))
		assert.Equal(t, 0, repo.Get(1).SentToday)

		// Never below zero
		require.NoError(t, alloc.ReleaseQuota(ctx, identity))
		assert.Equal(t, 0, repo.Get(1).SentToday)
	})

	t.Run("ReleaseAfterConcurrentResetIsNoOp", func(t *testing.T) {
		windowStart := now.Add(-23 * time.Hour)
		repo := testingutil.NewMemIdentityRepo(newIdentity(1, 5, 4, windowStart))
		alloc := newTestAllocator(repo, now)

		identity, err := alloc.Reserve(ctx, testOwnerID)
		require.NoError(t, err)
		require.Equal(t, 5, repo.Get(1).SentToday)

		// Another worker opens the next window and spends one unit of it
		later := now.Add(2 * time.Hour)
		ok, err := repo.ResetDailyCount(ctx, 1, windowStart, later)
		require.NoError(t, err)
		require.True(t, ok)
		ok, err = repo.IncrementSentToday(ctx, 1)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, alloc.ReleaseQuota(ctx, identity))
		assert.Equal(t, 1, repo.Get(1).SentToday)
		assert.True(t, repo.Get(1).LastResetAt.Equal(later))
	})

	t.Run("ConcurrentReservesNeverOverspend", func(t *testing.T) {
		repo := testingutil.NewMemIdentityRepo(newIdentity(1, 5, 0, now), newIdentity(2, 5, 0, now))
		alloc := newTestAllocator(repo, now)

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := alloc.Reserve(ctx, testOwnerID); err == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		first, second := repo.Get(1), repo.Get(2)
		assert.LessOrEqual(t, first.SentToday, first.DailyQuota)
		assert.LessOrEqual(t, second.SentToday, second.DailyQuota)
		assert.Equal(t, successes, first.SentToday+second.SentToday)
		assert.LessOrEqual(t, successes, 10)
	})
}
