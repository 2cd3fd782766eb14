package numpipe

// ring is the channel storage: a fixed-capacity FIFO of int32.
// It is not safe for concurrent use; every access happens under the
// channel's exclusion lock.
type ring struct {
	slots []int32
	head  uint64 // index of the oldest element
	count uint64 // number of valid elements starting at head
}

func newRing(capacity uint64) *ring {
	return &ring{slots: make([]int32, capacity)}
}

// push appends v as the newest element. The caller holds an empty-slot
// credit, so the ring is never full here.
func (r *ring) push(v int32) {
	if r.count == uint64(len(r.slots)) {
		panic("numpipe: push on full ring")
	}
	r.slots[(r.head+r.count)%uint64(len(r.slots))] = v
	r.count++
}

// pop removes and returns the oldest element, zeroing the vacated slot.
// The caller holds a filled-slot credit, so the ring is never empty here.
func (r *ring) pop() int32 {
	if r.count == 0 {
		panic("numpipe: pop on empty ring")
	}
	v := r.slots[r.head]
	r.slots[r.head] = 0
	r.head = (r.head + 1) % uint64(len(r.slots))
	r.count--
	return v
}

func (r *ring) len() uint64 {
	return r.count
}

func (r *ring) capacity() uint64 {
	return uint64(len(r.slots))
}

// snapshot returns the valid elements oldest first.
func (r *ring) snapshot() []int32 {
	out := make([]int32, r.count)
	for i := uint64(0); i < r.count; i++ {
		out[i] = r.slots[(r.head+i)%uint64(len(r.slots))]
	}
	return out
}
