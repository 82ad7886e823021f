package discovery

import "time"

// TimeWindow is the recency window items must fall into. The cutoff is
// the calendar date DaysBack days before Now, so an item dated exactly on
// the cutoff day qualifies.
type TimeWindow struct {
	Now      time.Time
	DaysBack int
}

// NewTimeWindow creates a window ending at now.
func NewTimeWindow(now time.Time, daysBack int) TimeWindow {
	if daysBack < 0 {
		daysBack = 0
	}
	return TimeWindow{Now: now, DaysBack: daysBack}
}

// Cutoff returns midnight of the earliest qualifying day, in Now's location.
func (w TimeWindow) Cutoff() time.Time {
	y, m, d := w.Now.Date()
	return time.Date(y, m, d-w.DaysBack, 0, 0, 0, 0, w.Now.Location())
}

// Contains reports whether date is on or after the cutoff day. Only the
// calendar date of the argument is considered.
func (w TimeWindow) Contains(date time.Time) bool {
	if date.IsZero() {
		return false
	}
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, w.Now.Location())
	return !day.Before(w.Cutoff())
}
