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

func TestMemoryLockerExclusive(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	key := SlotKey("d1", "2025-01-01", "10:00")

	ok, token, err := l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, l.Unlock(ctx, key, "someone-else"), ErrNotOwner)
	require.NoError(t, l.Unlock(ctx, key, token))

	ok, _, err = l.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerExpires(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _, err := l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	ok, _, err = l.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLockerPurgesAbandonedLocks(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		ok, _, err := l.TryLock(ctx, key, time.Second)
		require.NoError(t, err)
		require.True(t, ok)
	}
	require.Len(t, l.locks, 3)

	now = now.Add(2 * time.Second)
	ok, token, err := l.TryLock(ctx, "d", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, l.locks, 1)
	assert.Equal(t, token, l.locks["d"].token)

	// A late unlock from a holder whose lock was purged is harmless.
	assert.NoError(t, l.Unlock(ctx, "a", "stale-token"))
}

func TestMemoryLockerSingleWinner(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	var winners int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := l.TryLock(ctx, "slot", time.Minute); ok {
				atomic.AddInt32(&winners, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners)
}

func TestSlotKey(t *testing.T) {
	assert.Equal(t, "appointment:lock:slot:d1:2025-01-01:10:00", SlotKey("d1", "2025-01-01", "10:00"))
}
