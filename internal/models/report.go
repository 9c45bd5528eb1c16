package models

import "time"

// ReportFilter narrows the students and sessions included in a report.
type ReportFilter struct {
	Batch     string
	Course    string
	Branch    string
	Year      *int
	Semester  *int
	SiteID    string
	StudentID string
}

// ReportSnapshot is the consistent read of every row an aggregation needs.
type ReportSnapshot struct {
	Students    []Student
	Assignments []Assignment
	Sites       []Site
	Sessions    []AttendanceSession
}

// Tally counts day outcomes.
type Tally struct {
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Unmarked   int `json:"unmarked"`
	Suspicious int `json:"suspicious"`
	Incomplete int `json:"incomplete"`
}

// Add accumulates other into t.
func (t *Tally) Add(other Tally) {
	t.Present += other.Present
	t.Absent += other.Absent
	t.Unmarked += other.Unmarked
	t.Suspicious += other.Suspicious
	t.Incomplete += other.Incomplete
}

// DayTally is a group's tally for one working date.
type DayTally struct {
	Date time.Time `json:"date"`
	Tally
}

// GroupReport aggregates a cohort across the working dates of a range.
type GroupReport struct {
	GroupKey
	Students int        `json:"students"`
	Totals   Tally      `json:"totals"`
	Days     []DayTally `json:"days"`
}

// HolidayView is a holiday surfaced in report responses.
type HolidayView struct {
	Date  time.Time `json:"date"`
	Name  string    `json:"name"`
	Scope string    `json:"scope"`
}

// ReportSummary is the grouped aggregation response.
type ReportSummary struct {
	From              time.Time     `json:"from"`
	To                time.Time     `json:"to"`
	TotalWorkingDays  int           `json:"totalWorkingDays"`
	Groups            []GroupReport `json:"groups"`
	PublicHolidays    []HolidayView `json:"publicHolidays"`
	InstituteHolidays []HolidayView `json:"instituteHolidays"`
	GeneratedAt       time.Time     `json:"generatedAt"`
	Cached            bool          `json:"-"`
}

// SessionEntry is one session inside a detail row.
type SessionEntry struct {
	SessionID        string        `json:"sessionId"`
	Date             time.Time     `json:"date"`
	SiteID           string        `json:"siteId"`
	SiteName         string        `json:"siteName"`
	Status           SessionStatus `json:"status"`
	CheckInAt        time.Time     `json:"checkInAt"`
	CheckOutAt       *time.Time    `json:"checkOutAt,omitempty"`
	CheckInDistance  float64       `json:"checkInDistanceMeters"`
	CheckOutDistance *float64      `json:"checkOutDistanceMeters,omitempty"`
	IsSuspicious     bool          `json:"isSuspicious"`
	SuspiciousReason *string       `json:"suspiciousReason,omitempty"`
	CheckInPhotoURL  string        `json:"checkInPhotoUrl,omitempty"`
	CheckOutPhotoURL string        `json:"checkOutPhotoUrl,omitempty"`
}

// StudentReport is a per-student detail row.
type StudentReport struct {
	Student
	Totals   Tally          `json:"totals"`
	Sessions []SessionEntry `json:"sessions"`
}

// ReportDetail is the per-student report response.
type ReportDetail struct {
	From              time.Time       `json:"from"`
	To                time.Time       `json:"to"`
	TotalWorkingDays  int             `json:"totalWorkingDays"`
	Students          []StudentReport `json:"students"`
	PublicHolidays    []HolidayView   `json:"publicHolidays"`
	InstituteHolidays []HolidayView   `json:"instituteHolidays"`
	GeneratedAt       time.Time       `json:"generatedAt"`
	Cached            bool            `json:"-"`
}
