package numpipe

import "sync/atomic"

// Stats is a point-in-time view of a channel's counters.
type Stats struct {
	Capacity    uint64
	Len         int
	Openers     int
	EmptySlots  int64 // empty-slot credits available
	FilledSlots int64 // filled-slot credits available

	WriteAttempts     uint64
	Writes            uint64
	WritesBlocked     uint64
	WritesInterrupted uint64

	ReadAttempts     uint64
	Reads            uint64
	ReadsBlocked     uint64
	ReadsInterrupted uint64

	Opens  uint64
	Closes uint64
}

// Stats retrieves the current statistics of the channel.
// Fields are read independently and may be mutually inconsistent while
// operations are in flight.
func (c *Channel) Stats() Stats {
	return Stats{
		Capacity:    c.capacity,
		Len:         c.Len(),
		Openers:     c.Openers(),
		EmptySlots:  c.empty.load(),
		FilledSlots: c.filled.load(),

		WriteAttempts:     atomic.LoadUint64(&c.stats.attempts[opWrite]),
		Writes:            atomic.LoadUint64(&c.stats.done[opWrite]),
		WritesBlocked:     atomic.LoadUint64(&c.stats.blocked[opWrite]),
		WritesInterrupted: atomic.LoadUint64(&c.stats.interrupted[opWrite]),

		ReadAttempts:     atomic.LoadUint64(&c.stats.attempts[opRead]),
		Reads:            atomic.LoadUint64(&c.stats.done[opRead]),
		ReadsBlocked:     atomic.LoadUint64(&c.stats.blocked[opRead]),
		ReadsInterrupted: atomic.LoadUint64(&c.stats.interrupted[opRead]),

		Opens:  atomic.LoadUint64(&c.stats.opens),
		Closes: atomic.LoadUint64(&c.stats.closes),
	}
}
