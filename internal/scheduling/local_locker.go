package scheduling

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// LocalSlotLocker is the single-process SlotLocker, used when Redis is
// disabled. Each key gets a one-permit semaphore that lives while someone
// holds or waits for it.
type LocalSlotLocker struct {
	wait time.Duration

	mu    sync.Mutex
	slots map[string]*localSlot
}

type localSlot struct {
	sem  *semaphore.Weighted
	refs int
}

func NewLocalSlotLocker(wait time.Duration) *LocalSlotLocker {
	return &LocalSlotLocker{
		wait:  wait,
		slots: make(map[string]*localSlot),
	}
}

func (l *LocalSlotLocker) WithSlotLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	slot := l.ref(key)
	defer l.unref(key)

	if err := l.acquire(ctx, slot.sem); err != nil {
		return err
	}
	defer slot.sem.Release(1)

	return fn(ctx)
}

// acquire always makes one attempt, then waits up to l.wait for the permit.
func (l *LocalSlotLocker) acquire(ctx context.Context, sem *semaphore.Weighted) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sem.TryAcquire(1) {
		return nil
	}
	if l.wait <= 0 {
		return ErrLockNotAcquired
	}

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	if err := sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrLockNotAcquired
		}
		return err
	}
	return nil
}

func (l *LocalSlotLocker) ref(key string) *localSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[key]
	if !ok {
		slot = &localSlot{sem: semaphore.NewWeighted(1)}
		l.slots[key] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalSlotLocker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot := l.slots[key]
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}
