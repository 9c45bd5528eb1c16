package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Weekday is a three-letter weekday code.
type Weekday string

const (
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
	Sunday    Weekday = "SUN"
)

var weekdayCodes = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// WeekdayOf returns the code for date's weekday.
func WeekdayOf(date time.Time) Weekday {
	return weekdayCodes[date.Weekday()]
}

// ParseWeekday accepts codes and full English names in any case.
func ParseWeekday(value string) (Weekday, error) {
	v := strings.ToUpper(strings.TrimSpace(value))
	for wd, code := range weekdayCodes {
		if v == string(code) || v == strings.ToUpper(wd.String()) {
			return code, nil
		}
	}
	return "", fmt.Errorf("unknown weekday %q", value)
}

// AssignmentAction labels a history entry.
type AssignmentAction string

const (
	AssignmentActionAssign    AssignmentAction = "ASSIGN"
	AssignmentActionUpdate    AssignmentAction = "UPDATE"
	AssignmentActionSupersede AssignmentAction = "SUPERSEDE"
	AssignmentActionTruncate  AssignmentAction = "TRUNCATE"
	AssignmentActionRemove    AssignmentAction = "REMOVE"
)

// Assignment binds a student to a site for an inclusive date range and weekday set.
type Assignment struct {
	ID           string         `db:"id" json:"id"`
	StudentID    string         `db:"student_id" json:"studentId"`
	SiteID       string         `db:"site_id" json:"siteId"`
	StartDate    time.Time      `db:"start_date" json:"startDate"`
	EndDate      time.Time      `db:"end_date" json:"endDate"`
	AllowedDays  pq.StringArray `db:"allowed_days" json:"allowedDays"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
	SupersededAt *time.Time     `db:"superseded_at" json:"supersededAt,omitempty"`
	RemovedAt    *time.Time     `db:"removed_at" json:"removedAt,omitempty"`
}

// Range returns the inclusive date range.
func (a Assignment) Range() DateRange {
	return NewDateRange(a.StartDate, a.EndDate)
}

// Covers reports whether date is inside the assignment range.
func (a Assignment) Covers(date time.Time) bool {
	return a.Range().Contains(date)
}

// AllowsDay reports whether date's weekday is permitted.
func (a Assignment) AllowsDay(date time.Time) bool {
	code := string(WeekdayOf(date))
	for _, d := range a.AllowedDays {
		if strings.EqualFold(d, code) {
			return true
		}
	}
	return false
}

// Live reports whether the assignment has neither been removed nor superseded.
func (a Assignment) Live() bool {
	return a.RemovedAt == nil && a.SupersededAt == nil
}

// ResolvableOn reports whether the assignment governed date, honouring later removal or supersession.
func (a Assignment) ResolvableOn(date time.Time) bool {
	if !a.Covers(date) {
		return false
	}
	d := DateOf(date)
	if a.RemovedAt != nil && !d.Before(DateOf(*a.RemovedAt)) {
		return false
	}
	if a.SupersededAt != nil && !d.Before(DateOf(*a.SupersededAt)) {
		return false
	}
	return true
}

// AssignmentHistory records a mutation of an assignment.
type AssignmentHistory struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignmentId"`
	StudentID    string           `db:"student_id" json:"studentId"`
	Action       AssignmentAction `db:"action" json:"action"`
	ActorID      *string          `db:"actor_id" json:"actorId,omitempty"`
	Payload      json.RawMessage  `db:"payload" json:"payload"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
}
