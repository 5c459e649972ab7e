// Package clock issues the (recorded_at, counter) ordering key every SCD-2
// write uses. A per-process counter orders stamps that share a host-clock
// reading; RecordedAt is the host clock as read and is not clamped, so a
// regressed reading is not corrected.
package clock

import (
	"sync/atomic"
	"time"
)

// Source issues monotonically-ordered timestamps for one process.
type Source struct {
	counter uint64
	now     func() time.Time
}

// New returns a Source using time.Now as its wall clock.
func New() *Source {
	return &Source{now: time.Now}
}

// NewWithFunc returns a Source using a caller-supplied wall clock, for tests.
func NewWithFunc(now func() time.Time) *Source {
	return &Source{now: now}
}

// Stamp is an ordering key: two Stamps compare by RecordedAt first, then by
// Counter, so equal host-clock readings still order by issue. A stamp taken
// after the host clock went backwards sorts before the earlier stamps with a
// later RecordedAt.
type Stamp struct {
	RecordedAt time.Time
	Counter    uint64
}

// Before reports whether s happened before other.
func (s Stamp) Before(other Stamp) bool {
	if !s.RecordedAt.Equal(other.RecordedAt) {
		return s.RecordedAt.Before(other.RecordedAt)
	}
	return s.Counter < other.Counter
}

// Now returns the next ordering key.
func (c *Source) Now() Stamp {
	n := atomic.AddUint64(&c.counter, 1)
	return Stamp{RecordedAt: c.now().UTC(), Counter: n}
}
