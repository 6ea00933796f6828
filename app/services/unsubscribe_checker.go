package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/outreach-autopilot/repository"
	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/redis/go-redis/v9"
)

// UnsubscribeChecker answers whether an address opted out. The suppression table is the
// source of truth; redis only caches answers.
type UnsubscribeChecker interface {
	IsUnsubscribed(ctx context.Context, address string) (bool, error)
	Invalidate(ctx context.Context, address string) error
}

type UnsubscribeCheckerImpl struct {
	repo   repository.SuppressionRepository
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

// NewUnsubscribeChecker creates a checker; rc may be nil to disable caching
func NewUnsubscribeChecker(repo repository.SuppressionRepository, rc *redis.Client, prefix string, ttl time.Duration) UnsubscribeChecker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &UnsubscribeCheckerImpl{repo: repo, rc: rc, prefix: prefix, ttl: ttl}
}

func (c *UnsubscribeCheckerImpl) key(address string) string {
	return c.prefix + fmt.Sprintf(utils.SuppressionCacheKeyFmt, address)
}

func (c *UnsubscribeCheckerImpl) IsUnsubscribed(ctx context.Context, address string) (bool, error) {
	address = utils.NormalizeAddress(address)
	if address == "" {
		return false, nil
	}

	if c.rc != nil {
		val, err := c.rc.Get(ctx, c.key(address)).Result()
		switch {
		case err == nil:
			return val == "1", nil
		case !errors.Is(err, redis.Nil):
			log.Printf("unsubscribe: cache read failed address=%s err=%v", address, err)
		}
	}

	suppressed, err := c.repo.ExistsByAddress(ctx, address)
	if err != nil {
		return false, fmt.Errorf("check suppression for %s: %w", address, err)
	}

	if c.rc != nil {
		val := "0"
		if suppressed {
			val = "1"
		}
		if err := c.rc.Set(ctx, c.key(address), val, c.ttl).Err(); err != nil {
			log.Printf("unsubscribe: cache write failed address=%s err=%v", address, err)
		}
	}
	return suppressed, nil
}

func (c *UnsubscribeCheckerImpl) Invalidate(ctx context.Context, address string) error {
	if c.rc == nil {
		return nil
	}
	return c.rc.Del(ctx, c.key(utils.NormalizeAddress(address))).Err()
}
