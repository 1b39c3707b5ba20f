package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"telemed-server/internal/lock"
)

type countingExpirer struct {
	calls  atomic.Int32
	maxAge time.Duration
	result int
	err    error
}

func (e *countingExpirer) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	e.calls.Add(1)
	e.maxAge = olderThan
	return e.result, e.err
}

func TestRunOnceExpires(t *testing.T) {
	expirer := &countingExpirer{result: 3}
	w := NewPaymentSweeper(zap.NewNop(), expirer, lock.NewMemoryLocker(), "@every 1h", 30*time.Minute)

	assert.Equal(t, 3, w.RunOnce(context.Background()))
	assert.Equal(t, int32(1), expirer.calls.Load())
	assert.Equal(t, 30*time.Minute, expirer.maxAge)

	// The leader lock is released after each sweep.
	assert.Equal(t, 3, w.RunOnce(context.Background()))
	assert.Equal(t, int32(2), expirer.calls.Load())
}

func TestRunOnceSkipsWithoutLeadership(t *testing.T) {
	locker := lock.NewMemoryLocker()
	ok, _, err := locker.TryLock(context.Background(), sweeperLockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	expirer := &countingExpirer{result: 1}
	w := NewPaymentSweeper(zap.NewNop(), expirer, locker, "@every 1h", time.Minute)

	assert.Zero(t, w.RunOnce(context.Background()))
	assert.Zero(t, expirer.calls.Load())
}

func TestRunOnceSurvivesFailure(t *testing.T) {
	expirer := &countingExpirer{err: errors.New("db down")}
	w := NewPaymentSweeper(zap.NewNop(), expirer, lock.NewMemoryLocker(), "@every 1h", time.Minute)
	assert.Zero(t, w.RunOnce(context.Background()))
}

func TestStartFallsBackOnBadSpec(t *testing.T) {
	w := NewPaymentSweeper(zap.NewNop(), &countingExpirer{}, lock.NewMemoryLocker(), "not a spec", time.Minute)
	w.Start(context.Background())
	require.NotNil(t, w.cron)
	assert.Len(t, w.cron.Entries(), 1)
	w.Stop()
}
