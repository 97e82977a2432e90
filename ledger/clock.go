package ledger

import (
	"sync"
	"time"
)

const (
	// DateLayout is the calendar-date format used in snapshots and reports.
	DateLayout = "2006-01-02"
	// TimeLayout is the time-of-day format recorded with each submission.
	TimeLayout = "15:04"
)

// Clock supplies "now" in the configured zone. All dates the ledger records
// come from here, never from callers.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location (UTC when unset).
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now().UTC()
	}
	return time.Now().In(c.Location)
}

// FixedClock is a settable clock for tests and offline tooling.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock returns a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// AddDays moves the clock forward by n calendar days.
func (c *FixedClock) AddDays(n int) {
	c.mu.Lock()
	c.now = c.now.AddDate(0, 0, n)
	c.mu.Unlock()
}

// Today returns the clock's current calendar date.
func Today(c Clock) string {
	return c.Now().Format(DateLayout)
}

// isNextDay reports whether date is exactly one calendar day after prev.
func isNextDay(prev, date string) bool {
	if prev == "" {
		return false
	}
	p, err := time.Parse(DateLayout, prev)
	if err != nil {
		return false
	}
	return p.AddDate(0, 0, 1).Format(DateLayout) == date
}
