package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/outreach-autopilot/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalRunLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalRunLocker()

	release, acquired, err := locker.Acquire(ctx, 1)
	require.NoError(t, err)
	require.True(t, acquired)

	_, again, err := locker.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.False(t, again)

	// Other campaigns are independent
	releaseOther, other, err := locker.Acquire(ctx, 2)
	require.NoError(t, err)
	assert.True(t, other)
	releaseOther()

	release()
	release2, reacquired, err := locker.Acquire(ctx, 1)
	require.NoError(t, err)
	assert.True(t, reacquired)
	release2()
}

func TestLocalRunLockerConcurrent(t *testing.T) {
	locker := NewLocalRunLocker()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, _ := locker.Acquire(context.Background(), 42)
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestRedisRunLocker(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	rc := redis.NewClient(opt)
	defer func() { _ = rc.Close() }()

	ctx := context.Background()
	prefix := "test:" + time.Now().Format("150405.000000") + ":"
	locker := NewRedisRunLocker(rc, prefix, time.Minute)

	release, acquired, err := locker.Acquire(ctx, 9)
	require.NoError(t, err)
	require.True(t, acquired)

	_, again, err := locker.Acquire(ctx, 9)
	require.NoError(t, err)
	assert.False(t, again)

	release()
	release2, reacquired, err := locker.Acquire(ctx, 9)
	require.NoError(t, err)
	assert.True(t, reacquired)
	release2()
}

func TestNewLogger(t *testing.T) {
	t.Run("StdoutOnly", func(t *testing.T) {
		l := NewLogger("[test] ", "", config.LoggingConfig{Output: "file"})
		assert.Equal(t, "[test] ", l.Prefix())
	})

	t.Run("RotatingFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "autopilot.log")
		l := NewLogger("[autopilot] ", path, config.LoggingConfig{Output: "file", MaxSize: 1, MaxBackups: 1, MaxAge: 1})
		l.Printf("campaign processed id=%d", 3)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(data), "[autopilot] "))
		assert.Contains(t, string(data), "campaign processed id=3")
	})
}
