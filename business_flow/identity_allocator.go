package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/outreach-autopilot/models"
	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/amirphl/outreach-autopilot/utils"
)

// IdentityAllocator picks sending identities with remaining daily quota and accounts for every send
type IdentityAllocator interface {
	// AcquireIdentity resets stale counters of every active identity of the owner and returns the
	// first one with capacity, or ErrNoIdentityAvailable.
	AcquireIdentity(ctx context.Context, ownerID uint) (*models.SendingIdentity, error)
	// ConsumeQuota durably takes one unit of quota, or fails with ErrIdentityQuotaExhausted.
	ConsumeQuota(ctx context.Context, identityID uint) error
	// ReleaseQuota gives back a unit taken for a delivery that did not happen.
	ReleaseQuota(ctx context.Context, identity *models.SendingIdentity) error
	// Reserve acquires an identity and consumes one unit from it, retrying when another
	// writer drained the chosen identity in between.
	Reserve(ctx context.Context, ownerID uint) (*models.SendingIdentity, error)
}

type IdentityAllocatorImpl struct {
	identityRepo repository.SendingIdentityRepository
	now          func() time.Time
}

func NewIdentityAllocator(identityRepo repository.SendingIdentityRepository) IdentityAllocator {
	return &IdentityAllocatorImpl{
		identityRepo: identityRepo,
		now:          utils.UTCNow,
	}
}

const maxReserveAttempts = 5

func (a *IdentityAllocatorImpl) AcquireIdentity(ctx context.Context, ownerID uint) (*models.SendingIdentity, error) {
	identities, err := a.identityRepo.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, NewBusinessError("LIST_IDENTITIES_FAILED", "Failed to list sending identities", err)
	}

	now := a.now()
	var chosen *models.SendingIdentity
	for _, identity := range identities {
		if identity.ResetDue(now) {
			identity, err = a.reset(ctx, identity, now)
			if err != nil {
				return nil, err
			}
			if identity == nil {
				continue
			}
		}
		if chosen == nil && identity.HasCapacity() {
			chosen = identity
		}
	}

	if chosen == nil {
		return nil, ErrNoIdentityAvailable
	}
	return chosen, nil
}

// reset zeroes the counter once per window; when another writer got there first the fresh row is returned
func (a *IdentityAllocatorImpl) reset(ctx context.Context, identity *models.SendingIdentity, now time.Time) (*models.SendingIdentity, error) {
	ok, err := a.identityRepo.ResetDailyCount(ctx, identity.ID, identity.LastResetAt, now)
	if err != nil {
		return nil, NewBusinessError("RESET_IDENTITY_FAILED", "Failed to reset sending identity quota", err)
	}
	if ok {
		identity.SentToday = 0
		identity.LastResetAt = now
		return identity, nil
	}

	fresh, err := a.identityRepo.ByID(ctx, identity.ID)
	if err != nil {
		return nil, NewBusinessError("RELOAD_IDENTITY_FAILED", "Failed to reload sending identity", err)
	}
	return fresh, nil
}

func (a *IdentityAllocatorImpl) ConsumeQuota(ctx context.Context, identityID uint) error {
	ok, err := a.identityRepo.IncrementSentToday(ctx, identityID)
	if err != nil {
		return NewBusinessError("CONSUME_QUOTA_FAILED", "Failed to persist sending identity counter", err)
	}
	if !ok {
		return fmt.Errorf("identity %d: %w", identityID, ErrIdentityQuotaExhausted)
	}
	return nil
}

func (a *IdentityAllocatorImpl) ReleaseQuota(ctx context.Context, identity *models.SendingIdentity) error {
	if err := a.identityRepo.DecrementSentToday(ctx, identity.ID, identity.LastResetAt); err != nil {
		return NewBusinessError("RELEASE_QUOTA_FAILED", "Failed to release sending identity counter", err)
	}
	return nil
}

func (a *IdentityAllocatorImpl) Reserve(ctx context.Context, ownerID uint) (*models.SendingIdentity, error) {
	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		identity, err := a.AcquireIdentity(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		err = a.ConsumeQuota(ctx, identity.ID)
		if err == nil {
			identity.SentToday++
			return identity, nil
		}
		if !IsIdentityQuotaExhausted(err) {
			return nil, err
		}
	}
	return nil, ErrNoIdentityAvailable
}
