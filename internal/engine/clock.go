package engine

import "sync/atomic"

// Clock is the logical clock that stamps every scheduling event.
//
// Event order is defined by seq alone, never by wall-clock time, so a replay
// of the same catalog produces the same seq values.
//
// Safe for concurrent use, although only the stepping goroutine calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number. The first call returns 1.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
