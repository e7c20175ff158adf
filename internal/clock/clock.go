// Package clock abstracts "now" so the recurrence engine and calendar
// window math can be tested against fixed dates. All times are UTC;
// display-timezone conversion happens at normalization time only.
package clock

import "time"

// Clock supplies the current UTC instant and calendar date.
type Clock interface {
	NowUTC() time.Time
	TodayUTC() time.Time
}

// System is the real clock.
type System struct{}

func (System) NowUTC() time.Time { return time.Now().UTC() }

func (s System) TodayUTC() time.Time {
	return Midnight(s.NowUTC())
}

// Fixed is a clock pinned to a single instant, for tests.
type Fixed struct {
	Now time.Time
}

func (f Fixed) NowUTC() time.Time   { return f.Now.UTC() }
func (f Fixed) TodayUTC() time.Time { return Midnight(f.Now.UTC()) }

// Midnight truncates t to 00:00:00 UTC on the same calendar date.
func Midnight(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
