package numpipe

import (
	"context"
	"slices"
	"testing"
	"time"
)

func TestRingWrap(t *testing.T) {
	r := newRing(3)

	r.push(1)
	r.push(2)
	r.push(3)
	if got := r.snapshot(); !slices.Equal(got, []int32{1, 2, 3}) {
		t.Fatalf("unexpected snapshot %v", got)
	}

	if v := r.pop(); v != 1 {
		t.Fatalf("expected 1, got %d (FIFO violated)", v)
	}
	r.push(4)
	if got := r.snapshot(); !slices.Equal(got, []int32{2, 3, 4}) {
		t.Fatalf("unexpected snapshot after wrap %v", got)
	}

	for _, want := range []int32{2, 3, 4} {
		if v := r.pop(); v != want {
			t.Fatalf("expected %d, got %d (FIFO violated)", want, v)
		}
	}
	if r.len() != 0 || r.capacity() != 3 {
		t.Fatalf("unexpected len=%d cap=%d", r.len(), r.capacity())
	}
	// vacated slots are cleared
	for i, v := range r.slots {
		if v != 0 {
			t.Fatalf("slot %d not cleared: %d", i, v)
		}
	}
}

func TestRingMisusePanics(t *testing.T) {
	expectPanic := func(name string, f func()) {
		t.Helper()
		defer func() {
			if recover() == nil {
				t.Fatalf("%s: expected panic", name)
			}
		}()
		f()
	}

	r := newRing(1)
	expectPanic("pop on empty", func() { r.pop() })
	r.push(1)
	expectPanic("push on full", func() { r.push(2) })
}

func TestCredits(t *testing.T) {
	c := newCredits(2, 0)
	if c.tryDown() {
		t.Fatalf("took a credit from an empty semaphore")
	}

	c.up()
	c.up()
	if c.load() != 2 {
		t.Fatalf("expected 2 credits, got %d", c.load())
	}
	if !c.tryDown() || !c.tryDown() {
		t.Fatalf("expected two credits to be available")
	}
	if c.load() != 0 {
		t.Fatalf("expected 0 credits, got %d", c.load())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := c.down(ctx); err == nil {
		t.Fatalf("down on empty semaphore returned without a credit")
	}
	if c.load() != 0 {
		t.Fatalf("failed down changed the value: %d", c.load())
	}

	done := make(chan error, 1)
	go func() { done <- c.down(context.Background()) }()
	time.Sleep(5 * time.Millisecond)
	c.up()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(time.Second):
		t.Fatalf("up did not wake the waiter")
	}
	if c.load() != 0 {
		t.Fatalf("expected 0 credits, got %d", c.load())
	}
}
