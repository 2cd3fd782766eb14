// Package numpipe implements a bounded, blocking integer channel shared by
// many readers and writers.
//
// Writers block while every slot is filled, readers block while none is.
// Elements are delivered in FIFO order. Suspended calls are interrupted by
// cancelling their context; an interrupted call consumes no slot and moves
// no element.
package numpipe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

type operation int

const (
	opRead operation = iota
	opWrite
)

func (op operation) String() string {
	if op == opWrite {
		return "write"
	}
	return "read"
}

type counters struct {
	attempts    [2]uint64
	done        [2]uint64
	blocked     [2]uint64
	interrupted [2]uint64
	opens       uint64
	closes      uint64
}

// Channel is a fixed-capacity FIFO of int32 values.
//
// A write takes an empty-slot credit, then the exclusion lock, appends,
// releases the lock and grants a filled-slot credit. A read mirrors it.
// Only the credit waits suspend for an unbounded time; the lock guards
// short critical sections.
type Channel struct {
	capacity uint64

	mu      *semaphore.Weighted // exclusion lock over storage
	storage *ring
	empty   *credits
	filled  *credits
	depth   atomic.Int64 // storage.len(), published under mu

	refMu   sync.Mutex // orders Open/Close against Destroy
	openers atomic.Int64

	destroyed atomic.Bool
	life      context.Context
	kill      context.CancelCauseFunc

	stats   counters
	metrics *instruments
	log     *zap.Logger
}

// New creates a channel holding up to capacity integers.
// Capacity must be > 0 and not above the configured maximum.
func New(capacity uint64, opts ...Option) (*Channel, error) {
	o := newOptions(opts)

	if capacity == 0 {
		return nil, fmt.Errorf("%w: capacity must be > 0", ErrInvalidArgument)
	}
	if capacity > o.maxCapacity {
		return nil, fmt.Errorf("%w: capacity %d exceeds limit %d", ErrAllocation, capacity, o.maxCapacity)
	}

	life, kill := context.WithCancelCause(context.Background())
	c := &Channel{
		capacity: capacity,
		mu:       semaphore.NewWeighted(1),
		storage:  newRing(capacity),
		empty:    newCredits(int64(capacity), int64(capacity)),
		filled:   newCredits(int64(capacity), 0),
		life:     life,
		kill:     kill,
		log:      o.log.Named("numpipe"),
	}

	var err error
	c.metrics, err = newInstruments(o.meterProvider.Meter(instrumentationName), c)
	if err != nil {
		kill(nil)
		return nil, err
	}

	c.log.Info("numpipe init", zap.Uint64("capacity", capacity))
	return c, nil
}

// Write appends v, waiting while the channel is full.
// If ctx ends first, Write returns an error wrapping ErrInterrupted.
// Safe to call concurrently from many goroutines.
func (c *Channel) Write(ctx context.Context, v int32) error {
	if c.destroyed.Load() {
		return ErrDestroyed
	}
	atomic.AddUint64(&c.stats.attempts[opWrite], 1)

	if err := c.wait(ctx, c.empty, opWrite); err != nil {
		return err
	}
	return c.commitWrite(ctx, v)
}

// TryWrite appends v if a slot is free right now.
// Returns false if the channel is full or destroyed.
func (c *Channel) TryWrite(v int32) bool {
	if c.destroyed.Load() {
		return false
	}
	atomic.AddUint64(&c.stats.attempts[opWrite], 1)

	if !c.empty.tryDown() {
		return false
	}
	return c.commitWrite(context.Background(), v) == nil
}

// commitWrite runs the critical section of a write.
// The caller holds an empty-slot credit.
func (c *Channel) commitWrite(ctx context.Context, v int32) error {
	if err := c.mu.Acquire(ctx, 1); err != nil {
		// hand the reserved slot back, otherwise capacity shrinks by one
		c.empty.up()
		c.interrupt(opWrite)
		return interrupted(ctx)
	}
	if c.storage == nil {
		c.mu.Release(1)
		c.empty.up()
		return ErrDestroyed
	}

	c.trace(opWrite, zap.Int32("value", v))
	c.storage.push(v)
	c.depth.Store(int64(c.storage.len()))

	c.mu.Release(1)
	c.filled.up()

	c.complete(opWrite)
	return nil
}

// Read removes and returns the oldest element, waiting while the channel
// is empty. If ctx ends first, Read returns an error wrapping ErrInterrupted.
// Safe to call concurrently from many goroutines.
func (c *Channel) Read(ctx context.Context) (int32, error) {
	if c.destroyed.Load() {
		return 0, ErrDestroyed
	}
	atomic.AddUint64(&c.stats.attempts[opRead], 1)

	if err := c.wait(ctx, c.filled, opRead); err != nil {
		return 0, err
	}
	return c.commitRead(ctx)
}

// TryRead removes and returns the oldest element if there is one.
// Returns (0, false) if the channel is empty or destroyed.
func (c *Channel) TryRead() (int32, bool) {
	if c.destroyed.Load() {
		return 0, false
	}
	atomic.AddUint64(&c.stats.attempts[opRead], 1)

	if !c.filled.tryDown() {
		return 0, false
	}
	v, err := c.commitRead(context.Background())
	return v, err == nil
}

// commitRead runs the critical section of a read.
// The caller holds a filled-slot credit.
func (c *Channel) commitRead(ctx context.Context) (int32, error) {
	if err := c.mu.Acquire(ctx, 1); err != nil {
		c.filled.up()
		c.interrupt(opRead)
		return 0, interrupted(ctx)
	}
	if c.storage == nil {
		c.mu.Release(1)
		c.filled.up()
		return 0, ErrDestroyed
	}

	c.trace(opRead)
	v := c.storage.pop()
	c.depth.Store(int64(c.storage.len()))

	c.mu.Release(1)
	c.empty.up()

	c.complete(opRead)
	return v, nil
}

// wait takes one credit from cr, suspending until one is granted, ctx ends
// or the channel is destroyed.
func (c *Channel) wait(ctx context.Context, cr *credits, op operation) error {
	if cr.tryDown() {
		return nil
	}

	atomic.AddUint64(&c.stats.blocked[op], 1)
	c.metrics.blocked.Add(context.Background(), 1, c.metrics.attrs[op])

	ctx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(c.life, func() { cancel(ErrDestroyed) })
	defer func() {
		stop()
		cancel(nil)
	}()

	if err := cr.down(ctx); err != nil {
		err = interrupted(ctx)
		if !errors.Is(err, ErrDestroyed) {
			c.interrupt(op)
		}
		return err
	}
	return nil
}

func (c *Channel) interrupt(op operation) {
	atomic.AddUint64(&c.stats.interrupted[op], 1)
	c.metrics.interrupted.Add(context.Background(), 1, c.metrics.attrs[op])
}

func (c *Channel) complete(op operation) {
	atomic.AddUint64(&c.stats.done[op], 1)
	if op == opWrite {
		c.metrics.writes.Add(context.Background(), 1)
	} else {
		c.metrics.reads.Add(context.Background(), 1)
	}
}

// trace logs the buffer as seen right before a mutation. Must hold mu.
func (c *Channel) trace(op operation, fields ...zap.Field) {
	if ce := c.log.Check(zap.DebugLevel, op.String()); ce != nil {
		fields = append(fields,
			zap.Int32s("buffer", c.storage.snapshot()),
			zap.Uint64("count", c.storage.len()),
		)
		ce.Write(fields...)
	}
}

// Destroy releases the channel storage. It fails with ErrResourceBusy
// while handles are open; the channel stays fully usable in that case.
// Calls still waiting for a slot return ErrDestroyed.
func (c *Channel) Destroy() error {
	c.refMu.Lock()
	defer c.refMu.Unlock()

	if n := c.openers.Load(); n != 0 {
		c.log.Warn("teardown refused", zap.Int64("open", n))
		return fmt.Errorf("%w: %d handles open", ErrResourceBusy, n)
	}
	if !c.destroyed.CompareAndSwap(false, true) {
		return ErrDestroyed
	}

	c.kill(ErrDestroyed)

	// Acquire cannot fail with a background context.
	_ = c.mu.Acquire(context.Background(), 1)
	c.storage = nil
	c.depth.Store(0)
	c.mu.Release(1)

	if err := c.metrics.unregister(); err != nil {
		c.log.Warn("unregister metrics", zap.Error(err))
	}
	c.log.Info("numpipe exit")
	return nil
}

// Capacity returns the fixed channel capacity.
func (c *Channel) Capacity() uint64 {
	return c.capacity
}

// Len returns the number of integers currently stored.
func (c *Channel) Len() int {
	return int(c.depth.Load())
}

// Openers returns the number of open handles.
func (c *Channel) Openers() int {
	return int(c.openers.Load())
}
