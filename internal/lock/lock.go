// Package lock provides short-lived exclusive locks keyed by string.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotOwner is returned when unlocking with a token that does not hold the lock.
var ErrNotOwner = errors.New("lock not owned by this client")

// Locker grants a lock to one holder at a time. TryLock never waits: a held key reports false.
// The returned token must be passed back to Unlock.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error)
	Unlock(ctx context.Context, key, token string) error
}

// SlotKey names the lock guarding one doctor's slot.
func SlotKey(doctorID, date, clock string) string {
	return fmt.Sprintf("appointment:lock:slot:%s:%s:%s", doctorID, date, clock)
}

type heldLock struct {
	token   string
	expires time.Time
}

// MemoryLocker keeps locks in process. It is enough for a single instance.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]heldLock), now: time.Now}
}

// TryLock also drops every expired lock, so keys whose holder never unlocked do not accumulate.
func (l *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for k, held := range l.locks {
		if !now.Before(held.expires) {
			delete(l.locks, k)
		}
	}
	if _, ok := l.locks[key]; ok {
		return false, "", nil
	}
	token := uuid.NewString()
	l.locks[key] = heldLock{token: token, expires: now.Add(ttl)}
	return true, token, nil
}

// Unlock releases key. An expired or already released lock is not an error.
func (l *MemoryLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.locks[key]
	if !ok {
		return nil
	}
	if held.token != token {
		if l.now().Before(held.expires) {
			return ErrNotOwner
		}
		return nil
	}
	delete(l.locks, key)
	return nil
}
