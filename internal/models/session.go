package models

import "time"

// SessionStatus is the persisted review status of a session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "PENDING"
	SessionStatusPresent  SessionStatus = "PRESENT"
	SessionStatusRejected SessionStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusPending, SessionStatusPresent, SessionStatusRejected:
		return true
	}
	return false
}

// SessionState is the per-day state machine position.
type SessionState string

const (
	StateNotStarted SessionState = "NotStarted"
	StateCheckedIn  SessionState = "CheckedIn"
	StateCompleted  SessionState = "Completed"
)

// AttendanceSession is the single attendance row of a student for one date.
type AttendanceSession struct {
	ID                string        `db:"id" json:"id"`
	StudentID         string        `db:"student_id" json:"studentId"`
	SiteID            string        `db:"site_id" json:"siteId"`
	Date              time.Time     `db:"date" json:"date"`
	CheckInAt         time.Time     `db:"check_in_at" json:"checkInAt"`
	CheckInLatitude   float64       `db:"check_in_latitude" json:"checkInLatitude"`
	CheckInLongitude  float64       `db:"check_in_longitude" json:"checkInLongitude"`
	CheckInAccuracy   float64       `db:"check_in_accuracy_meters" json:"checkInAccuracyMeters"`
	CheckInDistance   float64       `db:"check_in_distance_meters" json:"checkInDistanceMeters"`
	CheckInIP         string        `db:"check_in_ip" json:"checkInIp"`
	CheckInPhotoPath  *string       `db:"check_in_photo_path" json:"-"`
	CheckOutAt        *time.Time    `db:"check_out_at" json:"checkOutAt,omitempty"`
	CheckOutLatitude  *float64      `db:"check_out_latitude" json:"checkOutLatitude,omitempty"`
	CheckOutLongitude *float64      `db:"check_out_longitude" json:"checkOutLongitude,omitempty"`
	CheckOutAccuracy  *float64      `db:"check_out_accuracy_meters" json:"checkOutAccuracyMeters,omitempty"`
	CheckOutDistance  *float64      `db:"check_out_distance_meters" json:"checkOutDistanceMeters,omitempty"`
	CheckOutIP        *string       `db:"check_out_ip" json:"checkOutIp,omitempty"`
	CheckOutPhotoPath *string       `db:"check_out_photo_path" json:"-"`
	Status            SessionStatus `db:"status" json:"status"`
	IsSuspicious      bool          `db:"is_suspicious" json:"isSuspicious"`
	SuspiciousReason  *string       `db:"suspicious_reason" json:"suspiciousReason,omitempty"`
	ReviewedBy        *string       `db:"reviewed_by" json:"reviewedBy,omitempty"`
	ReviewedAt        *time.Time    `db:"reviewed_at" json:"reviewedAt,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updatedAt"`
}

// StateOf derives the state machine position from an optional row.
func StateOf(session *AttendanceSession) SessionState {
	switch {
	case session == nil:
		return StateNotStarted
	case session.CheckOutAt != nil:
		return StateCompleted
	default:
		return StateCheckedIn
	}
}

// CheckOutRecord carries the fields written when a session completes.
type CheckOutRecord struct {
	At               time.Time
	Latitude         float64
	Longitude        float64
	Accuracy         float64
	Distance         float64
	IP               string
	PhotoPath        *string
	IsSuspicious     bool
	SuspiciousReason *string
}
