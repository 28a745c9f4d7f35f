package hlc

import (
	"sync"
	"time"

	"github.com/driftline/relay/errors"
)

// Clock mints monotonically increasing timestamps for a single device.
// Safe for concurrent use. The relay never mints; this exists for the
// device-side client and for tests.
type Clock struct {
	mu   sync.Mutex
	last Timestamp
	wall func() time.Time
}

// NewClock creates a clock reading the system wall clock.
func NewClock() *Clock {
	return NewClockAt(time.Now)
}

// NewClockAt creates a clock with an injectable wall-clock source.
func NewClockAt(wall func() time.Time) *Clock {
	return &Clock{wall: wall}
}

// Now returns the next timestamp. If the wall clock has not advanced past
// the last physical value (stalled or skewed backwards), the physical
// component stays pinned and the logical counter increments instead.
func (c *Clock) Now() (Timestamp, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt := c.wall().UnixMilli()
	if pt > c.last.Physical {
		c.last = Timestamp{Physical: pt}
		return c.last, nil
	}

	if c.last.Logical >= MaxLogical {
		return Timestamp{}, errors.Wrapf(errors.ErrMalformedClock,
			"logical counter exhausted at physical %d", c.last.Physical)
	}
	c.last.Logical++
	return c.last, nil
}

// Observe merges a remote timestamp so that subsequent Now() calls order
// after everything this device has seen. Standard HLC receive rule.
func (c *Clock) Observe(remote Timestamp) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pt := c.wall().UnixMilli()
	switch {
	case pt > c.last.Physical && pt > remote.Physical:
		c.last = Timestamp{Physical: pt}
	case c.last.Physical == remote.Physical:
		if remote.Logical > c.last.Logical {
			c.last.Logical = remote.Logical
		}
		c.last.Logical++
	case c.last.Physical > remote.Physical:
		c.last.Logical++
	default:
		c.last = Timestamp{Physical: remote.Physical, Logical: remote.Logical + 1}
	}
}

// Last returns the most recent timestamp without advancing the clock.
func (c *Clock) Last() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
