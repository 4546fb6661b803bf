package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_Exclusive(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	lease, ok, err := l.TryLock(ctx, "conv-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "conv-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be rejected")

	_, ok, _ = l.TryLock(ctx, "conv-2", time.Minute)
	assert.True(t, ok, "different keys do not contend")

	lease.Release()
	lease.Release()

	_, ok, _ = l.TryLock(ctx, "conv-1", time.Minute)
	assert.True(t, ok)
}

func TestMemoryLocker_Expiry(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	stale, ok, _ := l.TryLock(context.Background(), "k", time.Second)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok, _ = l.TryLock(context.Background(), "k", time.Second)
	require.True(t, ok, "expired lock can be taken over")

	// 过期持有者的 release 不能删掉新持有者的锁
	stale.Release()
	assert.ErrorIs(t, stale.Refresh(context.Background(), time.Second), ErrLockLost)
	_, ok, _ = l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
}

func TestMemoryLocker_RefreshExtendsExpiry(t *testing.T) {
	l := NewMemoryLocker()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	lease, ok, _ := l.TryLock(ctx, "k", 10*time.Second)
	require.True(t, ok)

	now = now.Add(8 * time.Second)
	require.NoError(t, lease.Refresh(ctx, 10*time.Second))

	// 原始 TTL 已过，但续期后仍然持有
	now = now.Add(8 * time.Second)
	_, ok, _ = l.TryLock(ctx, "k", 10*time.Second)
	assert.False(t, ok)

	// 续期间隔超过 TTL 后锁丢失
	now = now.Add(11 * time.Second)
	assert.ErrorIs(t, lease.Refresh(ctx, 10*time.Second), ErrLockLost)
	_, ok, _ = l.TryLock(ctx, "k", 10*time.Second)
	assert.True(t, ok)
}

func TestMemoryLocker_Concurrent(t *testing.T) {
	l := NewMemoryLocker()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.TryLock(context.Background(), "same", time.Minute); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}
