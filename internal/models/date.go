package models

import "time"

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DateOf truncates t to its calendar date, keeping the wall-clock date of t's location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateRange is an inclusive span of calendar dates.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// NewDateRange normalises both ends to calendar dates.
func NewDateRange(from, to time.Time) DateRange {
	return DateRange{From: DateOf(from), To: DateOf(to)}
}

// Empty reports whether the range contains no dates.
func (r DateRange) Empty() bool {
	return r.From.IsZero() || r.To.IsZero() || r.To.Before(r.From)
}

// Contains reports whether date falls within the range.
func (r DateRange) Contains(date time.Time) bool {
	d := DateOf(date)
	return !d.Before(r.From) && !d.After(r.To)
}

// Days returns the number of dates in the range.
func (r DateRange) Days() int {
	if r.Empty() {
		return 0
	}
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// Dates lists every date in the range in order.
func (r DateRange) Dates() []time.Time {
	n := r.Days()
	out := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.From.AddDate(0, 0, i))
	}
	return out
}
