package syncer

import (
	"time"

	"github.com/lkschedule/schedule-sync/internal/reconcile"
)

// Week is one fetched window; To is the last day, inclusive.
type Week struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Midnight returns the start of t's calendar day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Weeks returns n consecutive seven-day windows starting on start's day. A negative n
// yields no weeks.
func Weeks(start time.Time, n int, loc *time.Location) []Week {
	n = max(n, 0)
	first := Midnight(start, loc)
	weeks := make([]Week, 0, n)
	for i := 0; i < n; i++ {
		from := first.AddDate(0, 0, 7*i)
		weeks = append(weeks, Week{From: from, To: from.AddDate(0, 0, 6)})
	}
	return weeks
}

// TimeWindow returns the reconciled interval for n weeks from start: midnight of the
// first day up to, but excluding, midnight after the last day.
func TimeWindow(start time.Time, n int, loc *time.Location) reconcile.Window {
	n = max(n, 0)
	first := Midnight(start, loc)
	return reconcile.Window{
		Min: first,
		Max: first.AddDate(0, 0, 7*n),
	}
}
