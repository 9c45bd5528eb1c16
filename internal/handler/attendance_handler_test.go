package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/middleware"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	"github.com/noah-isme/placement-attendance-api/internal/service"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
)

type attendanceServiceMock struct {
	markResp     *service.MarkResult
	markErr      error
	statusResp   *service.StatusResult
	reviewResp   *models.AttendanceSession
	lastStudent  string
	lastReport   service.AttendanceReport
	lastReviewer string
	checkOutDate time.Time
}

func (m *attendanceServiceMock) ReportFromRequest(req dto.MarkAttendanceRequest, clientIP string) (service.AttendanceReport, error) {
	if req.Latitude == nil || req.Longitude == nil || req.Accuracy == nil {
		return service.AttendanceReport{}, appErrors.Clone(appErrors.ErrValidation, "invalid attendance report")
	}
	return service.AttendanceReport{
		SiteID:         req.SiteID,
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		AccuracyMeters: *req.Accuracy,
		ClientIP:       clientIP,
	}, nil
}

func (m *attendanceServiceMock) Today() time.Time {
	return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
}

func (m *attendanceServiceMock) Mark(ctx context.Context, studentID string, report service.AttendanceReport) (*service.MarkResult, error) {
	m.lastStudent = studentID
	m.lastReport = report
	return m.markResp, m.markErr
}

func (m *attendanceServiceMock) CheckIn(ctx context.Context, studentID string, date time.Time, report service.AttendanceReport) (*service.MarkResult, error) {
	return m.Mark(ctx, studentID, report)
}

func (m *attendanceServiceMock) CheckOut(ctx context.Context, studentID string, date time.Time, report service.AttendanceReport) (*service.MarkResult, error) {
	m.checkOutDate = date
	return m.Mark(ctx, studentID, report)
}

func (m *attendanceServiceMock) Status(ctx context.Context, studentID string, date time.Time) (*service.StatusResult, error) {
	m.lastStudent = studentID
	return m.statusResp, nil
}

func (m *attendanceServiceMock) Review(ctx context.Context, sessionID string, req dto.ReviewRequest, reviewerID string) (*models.AttendanceSession, error) {
	m.lastReviewer = reviewerID
	return m.reviewResp, nil
}

func studentContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	return c, w
}

func checkedInSession() *models.AttendanceSession {
	reason := "accuracy 300m exceeds 250m"
	return &models.AttendanceSession{
		ID:               "sess-1",
		StudentID:        "stu-1",
		SiteID:           "site-1",
		Date:             time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
		CheckInAt:        time.Date(2026, 10, 19, 9, 5, 0, 0, time.UTC),
		CheckInDistance:  42,
		Status:           models.SessionStatusPresent,
		IsSuspicious:     true,
		SuspiciousReason: &reason,
	}
}

const validMark = `{"siteId":"site-1","latitude":12.97,"longitude":77.59,"accuracy":20}`

func TestAttendanceHandlerMarkCheckIn(t *testing.T) {
	mock := &attendanceServiceMock{markResp: &service.MarkResult{
		Action:  service.ActionCheckIn,
		State:   models.StateCheckedIn,
		Session: checkedInSession(),
	}}
	c, w := studentContext(http.MethodPost, "/placement-attendance/mark-attendance", validMark)

	NewAttendanceHandler(mock).Mark(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "stu-1", mock.lastStudent)
	assert.Equal(t, "site-1", mock.lastReport.SiteID)
	assert.NotContains(t, w.Body.String(), "isSuspicious")
	assert.NotContains(t, w.Body.String(), "accuracy 300m")

	var body struct {
		Data dto.MarkAttendanceResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "success", body.Data.Status)
	assert.Equal(t, service.ActionCheckIn, body.Data.Action)
	require.NotNil(t, body.Data.Session)
	assert.Equal(t, "2026-10-19", body.Data.Session.Date)
}

func TestAttendanceHandlerMarkRequiresPhoto(t *testing.T) {
	mock := &attendanceServiceMock{markResp: &service.MarkResult{
		Action:        service.ActionCheckIn,
		RequiresPhoto: true,
		Decision:      service.Decision{Outcome: service.OutcomeRequireSecondaryVerification, Message: "location accuracy too low"},
	}}
	c, w := studentContext(http.MethodPost, "/placement-attendance/mark-attendance", validMark)

	NewAttendanceHandler(mock).Mark(c)

	require.Equal(t, http.StatusPreconditionRequired, w.Code)
	var body struct {
		RequiresPhoto bool             `json:"requiresPhoto"`
		Error         *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.RequiresPhoto)
	require.NotNil(t, body.Error)
	assert.Equal(t, "SECONDARY_VERIFICATION_REQUIRED", body.Error.Code)
}

func TestAttendanceHandlerMarkPolicyViolation(t *testing.T) {
	mock := &attendanceServiceMock{markErr: appErrors.Policy("OUTSIDE_GEOFENCE", "outside the site radius")}
	c, w := studentContext(http.MethodPost, "/placement-attendance/mark-attendance", validMark)

	NewAttendanceHandler(mock).Mark(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "OUTSIDE_GEOFENCE")
}

func TestAttendanceHandlerMarkInvalidBody(t *testing.T) {
	mock := &attendanceServiceMock{}
	c, w := studentContext(http.MethodPost, "/placement-attendance/mark-attendance", `{"latitude":`)

	NewAttendanceHandler(mock).Mark(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, mock.lastStudent)
}

func TestAttendanceHandlerMarkUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/placement-attendance/mark-attendance", bytes.NewBufferString(validMark))

	NewAttendanceHandler(&attendanceServiceMock{}).Mark(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAttendanceHandlerCheckOutUsesToday(t *testing.T) {
	session := checkedInSession()
	out := session.CheckInAt.Add(8 * time.Hour)
	session.CheckOutAt = &out
	mock := &attendanceServiceMock{markResp: &service.MarkResult{Action: service.ActionCheckOut, State: models.StateCompleted, Session: session}}
	c, w := studentContext(http.MethodPost, "/placement-attendance/check-out", validMark)

	NewAttendanceHandler(mock).CheckOut(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, mock.Today(), mock.checkOutDate)
	assert.Contains(t, w.Body.String(), "checkOutAt")
}

func TestAttendanceHandlerStatus(t *testing.T) {
	mock := &attendanceServiceMock{statusResp: &service.StatusResult{State: models.StateCheckedIn, Session: checkedInSession()}}
	c, w := studentContext(http.MethodGet, "/placement-attendance/status", "")

	NewAttendanceHandler(mock).Status(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", mock.lastStudent)
	assert.Contains(t, w.Body.String(), `"status":"CheckedIn"`)
	assert.NotContains(t, w.Body.String(), "isSuspicious")
}

func TestAttendanceHandlerStatusOtherStudent(t *testing.T) {
	t.Run("student is refused", func(t *testing.T) {
		mock := &attendanceServiceMock{statusResp: &service.StatusResult{State: models.StateNotStarted}}
		c, w := studentContext(http.MethodGet, "/placement-attendance/status?studentId=stu-2", "")

		NewAttendanceHandler(mock).Status(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("admin sees full row", func(t *testing.T) {
		mock := &attendanceServiceMock{statusResp: &service.StatusResult{State: models.StateCheckedIn, Session: checkedInSession()}}
		c, w := studentContext(http.MethodGet, "/placement-attendance/status?studentId=stu-1", "")
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

		NewAttendanceHandler(mock).Status(c)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "stu-1", mock.lastStudent)
		assert.Contains(t, w.Body.String(), `"isSuspicious":true`)
	})
}

func TestAttendanceHandlerReview(t *testing.T) {
	reviewed := checkedInSession()
	reviewed.Status = models.SessionStatusRejected
	mock := &attendanceServiceMock{reviewResp: reviewed}
	c, w := studentContext(http.MethodPatch, "/placement-attendance/sessions/sess-1/review", `{"status":"REJECTED"}`)
	c.Params = gin.Params{{Key: "id", Value: "sess-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	NewAttendanceHandler(mock).Review(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", mock.lastReviewer)
	assert.Contains(t, w.Body.String(), "REJECTED")
}

func TestAttendanceHandlerMarkUsesPeerAddressWithoutTrustedProxy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &attendanceServiceMock{markResp: &service.MarkResult{
		Action:  service.ActionCheckIn,
		State:   models.StateCheckedIn,
		Session: checkedInSession(),
	}}
	r := gin.New()
	require.NoError(t, r.SetTrustedProxies(nil))
	r.POST("/mark-attendance", func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	}, NewAttendanceHandler(mock).Mark)

	req := httptest.NewRequest(http.MethodPost, "/mark-attendance", bytes.NewBufferString(validMark))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "10.0.0.1")
	req.RemoteAddr = "203.0.113.9:41234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "203.0.113.9", mock.lastReport.ClientIP)
}
