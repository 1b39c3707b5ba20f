// Package jobs runs background maintenance on a cron schedule.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"telemed-server/internal/lock"
)

// sweeperLockKey keeps the sweep to one instance at a time.
const sweeperLockKey = "payments:sweeper:leader"

// Expirer fails PENDING payments older than the given age.
type Expirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// PaymentSweeper periodically expires abandoned checkouts so they do not stay PENDING forever.
type PaymentSweeper struct {
	log     *zap.Logger
	expirer Expirer
	locker  lock.Locker
	spec    string
	maxAge  time.Duration
	cron    *cron.Cron
	runCtx  context.Context
	cancel  context.CancelFunc
}

func NewPaymentSweeper(log *zap.Logger, expirer Expirer, locker lock.Locker, spec string, maxAge time.Duration) *PaymentSweeper {
	return &PaymentSweeper{log: log, expirer: expirer, locker: locker, spec: spec, maxAge: maxAge}
}

// Start schedules the sweep. An invalid spec falls back to every five minutes.
func (w *PaymentSweeper) Start(ctx context.Context) {
	w.runCtx, w.cancel = context.WithCancel(ctx)
	c := cron.New()
	if _, err := c.AddFunc(w.spec, func() { w.RunOnce(w.runCtx) }); err != nil {
		w.log.Warn("payments.sweeper: invalid cron spec; falling back to @every 5m",
			zap.String("spec", w.spec),
			zap.Error(err),
		)
		c = cron.New()
		_, _ = c.AddFunc("@every 5m", func() { w.RunOnce(w.runCtx) })
	}
	c.Start()
	w.cron = c
}

// Stop cancels in-flight work and waits for a running sweep to return.
func (w *PaymentSweeper) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
}

// RunOnce performs a single sweep if this instance wins the leader lock.
func (w *PaymentSweeper) RunOnce(ctx context.Context) int {
	acquired, token, err := w.locker.TryLock(ctx, sweeperLockKey, 2*time.Minute)
	if err != nil {
		w.log.Warn("payments.sweeper: leader lock attempt failed", zap.Error(err))
		return 0
	}
	if !acquired {
		w.log.Debug("payments.sweeper: another instance is sweeping")
		return 0
	}
	defer func() {
		if err := w.locker.Unlock(context.WithoutCancel(ctx), sweeperLockKey, token); err != nil {
			w.log.Warn("payments.sweeper: unlock failed", zap.Error(err))
		}
	}()

	expired, err := w.expirer.ExpireStale(ctx, w.maxAge)
	if err != nil {
		w.log.Error("payments.sweeper: sweep failed", zap.Error(err))
		return expired
	}
	if expired > 0 {
		w.log.Info("payments.sweeper: expired stale payments", zap.Int("count", expired))
	}
	return expired
}
