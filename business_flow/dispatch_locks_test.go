package businessflow

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedLocker_InProcess(t *testing.T) {
	l := NewKeyedLocker(nil, "t:", 0)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	other, ok, err := l.TryLock(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
	other()

	release()
	release2, ok, err := l.TryLock(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	release2()
}

// Runs against a real redis only when TEST_REDIS_ADDR is set
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping redis lock test")
	}
	rc := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rc.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func TestKeyedLocker_Redis(t *testing.T) {
	rc := newTestRedis(t)
	ctx := context.Background()
	prefix := "smsflow_test:" + uuid.NewString() + ":"

	a := NewKeyedLocker(rc, prefix, 300*time.Millisecond)
	b := NewKeyedLocker(rc, prefix, 300*time.Millisecond)

	t.Run("held lock outlives its ttl", func(t *testing.T) {
		release, ok, err := a.TryLock(ctx, "long")
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(time.Second)
		_, ok, err = b.TryLock(ctx, "long")
		require.NoError(t, err)
		assert.False(t, ok)

		release()
		release2, ok, err := b.TryLock(ctx, "long")
		require.NoError(t, err)
		assert.True(t, ok)
		release2()
	})

	t.Run("release leaves a newer holder alone", func(t *testing.T) {
		release, ok, err := a.TryLock(ctx, "stolen")
		require.NoError(t, err)
		require.True(t, ok)

		// Another holder took the key after ours was lost.
		require.NoError(t, rc.Set(ctx, prefix+"stolen", "someone-else", time.Minute).Err())
		release()

		owner, err := rc.Get(ctx, prefix+"stolen").Result()
		require.NoError(t, err)
		assert.Equal(t, "someone-else", owner)
		require.NoError(t, rc.Del(ctx, prefix+"stolen").Err())
	})
}

func TestCampaignLockKey(t *testing.T) {
	assert.Equal(t, "campaign:42:dispatch", campaignLockKey(42))
}
