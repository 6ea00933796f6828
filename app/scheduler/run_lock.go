package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amirphl/outreach-autopilot/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLocker keeps two runs of the same campaign from overlapping
type RunLocker interface {
	// Acquire returns acquired=false without error when another run holds the lock.
	Acquire(ctx context.Context, campaignID uint) (release func(), acquired bool, err error)
}

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLocker holds the lock as a redis key with a TTL so a crashed run frees it eventually
type RedisRunLocker struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisRunLocker(rc *redis.Client, prefix string, ttl time.Duration) *RedisRunLocker {
	return &RedisRunLocker{rc: rc, prefix: prefix, ttl: ttl}
}

func (l *RedisRunLocker) Acquire(ctx context.Context, campaignID uint) (func(), bool, error) {
	key := l.prefix + fmt.Sprintf(utils.CampaignRunLockKeyFmt, campaignID)
	token := uuid.NewString()

	ok, err := l.rc.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire run lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.rc, []string{key}, token).Err()
	}
	return release, true, nil
}

// LocalRunLocker guards runs within one process; used when redis is disabled
type LocalRunLocker struct {
	mu      sync.Mutex
	running map[uint]struct{}
}

func NewLocalRunLocker() *LocalRunLocker {
	return &LocalRunLocker{running: make(map[uint]struct{})}
}

func (l *LocalRunLocker) Acquire(ctx context.Context, campaignID uint) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.running[campaignID]; busy {
		return nil, false, nil
	}
	l.running[campaignID] = struct{}{}
	return func() {
		l.mu.Lock()
		delete(l.running, campaignID)
		l.mu.Unlock()
	}, true, nil
}
