package split

import "sync/atomic"

// Clock is the monotonic logical clock that stamps arrival order.
//
// Every fragment entering the router gets a strictly increasing seq from
// this clock. Per-key arrival order is therefore recoverable from the
// fragments alone, which is what downstream consumers that need to re-sort
// rely on.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, the router's single-goroutine design means only one goroutine
// typically calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to continue numbering after fragments already persisted.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
