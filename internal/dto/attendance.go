package dto

import (
	"time"

	"github.com/noah-isme/placement-attendance-api/internal/models"
)

// MarkAttendanceRequest is the device report for POST mark-attendance.
type MarkAttendanceRequest struct {
	SiteID    string   `json:"siteId"`
	Latitude  *float64 `json:"latitude" validate:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" validate:"required,gte=-180,lte=180"`
	Accuracy  *float64 `json:"accuracy" validate:"required,gte=0"`
	// Photo is a base64 payload or data URL captured after a precision escalation.
	Photo string `json:"photo,omitempty"`
}

// SessionView is the student facing projection of a session.
type SessionView struct {
	ID              string               `json:"id"`
	SiteID          string               `json:"siteId"`
	Date            string               `json:"date"`
	Status          models.SessionStatus `json:"status"`
	CheckInAt       string               `json:"checkInAt"`
	CheckInDistance float64              `json:"checkInDistanceMeters"`
	CheckOutAt      *string              `json:"checkOutAt,omitempty"`
}

// NewSessionView projects session for its student; nil stays nil.
func NewSessionView(session *models.AttendanceSession) *SessionView {
	if session == nil {
		return nil
	}
	view := &SessionView{
		ID:              session.ID,
		SiteID:          session.SiteID,
		Date:            session.Date.Format(models.DateLayout),
		Status:          session.Status,
		CheckInAt:       session.CheckInAt.Format(time.RFC3339),
		CheckInDistance: session.CheckInDistance,
	}
	if session.CheckOutAt != nil {
		out := session.CheckOutAt.Format(time.RFC3339)
		view.CheckOutAt = &out
	}
	return view
}

// MarkAttendanceResponse answers a mark-attendance submission.
type MarkAttendanceResponse struct {
	Status  string       `json:"status"`
	Action  string       `json:"action"`
	Message string       `json:"message"`
	Session *SessionView `json:"session,omitempty"`
}

// StatusResponse reports the day's state machine position.
type StatusResponse struct {
	Status models.SessionState `json:"status"`
	Data   interface{}         `json:"data,omitempty"`
}

// ReviewRequest overrides a session status after human review.
type ReviewRequest struct {
	Status models.SessionStatus `json:"status" validate:"required,oneof=PENDING PRESENT REJECTED"`
}
