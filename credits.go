package numpipe

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// credits is a counting semaphore with an initial value below its size.
// down blocks while the value is zero; up never blocks. Waiters are served
// in arrival order.
type credits struct {
	sem   *semaphore.Weighted
	value atomic.Int64 // observable value, for diagnostics only
}

// newCredits creates a semaphore that can hold size credits, initially
// holding initial of them.
func newCredits(size, initial int64) *credits {
	c := &credits{
		sem: semaphore.NewWeighted(size),
	}
	// Weighted starts with every unit available; park the missing ones.
	if held := size - initial; held > 0 {
		if !c.sem.TryAcquire(held) {
			panic("unreached")
		}
	}
	c.value.Store(initial)
	return c
}

// tryDown takes one credit if one is available without waiting.
func (c *credits) tryDown() bool {
	if !c.sem.TryAcquire(1) {
		return false
	}
	c.value.Add(-1)
	return true
}

// down takes one credit, waiting until one is available or ctx is done.
// On failure the semaphore is left unchanged and ctx.Err() is returned.
func (c *credits) down(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	c.value.Add(-1)
	return nil
}

// up returns one credit and wakes the oldest waiter, if any.
func (c *credits) up() {
	c.value.Add(1)
	c.sem.Release(1)
}

func (c *credits) load() int64 {
	return c.value.Load()
}
