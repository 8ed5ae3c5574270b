package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newTestClient 需要设置 GHOSTINBOX_TEST_REDIS_ADDR，否则跳过
func newTestClient(t *testing.T) *Client {
	t.Helper()

	addr := os.Getenv("GHOSTINBOX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("GHOSTINBOX_TEST_REDIS_ADDR not set")
	}

	client, err := New(context.Background(), Config{Address: addr}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	prefix := "test:" + uuid.NewString() + ":"

	limiter := NewRateLimiter(client, prefix, 2, time.Minute)

	for i := 0; i < 2; i++ {
		allowed, _, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	allowed, _, err = limiter.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestLocker_Exclusive(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	locker := NewLocker(client, "test:"+uuid.NewString()+":")

	unlock, ok, err := locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	unlock()

	again, ok, err := locker.TryLock(ctx, "sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	again()
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := New(ctx, Config{Address: "127.0.0.1:1"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}
