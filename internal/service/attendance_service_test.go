package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/geo"
)

type sessionStoreStub struct {
	mu          sync.Mutex
	byKey       map[string]*models.AttendanceSession
	byID        map[string]*models.AttendanceSession
	forceLoss   bool
	inserts     int
	reviewed    []models.SessionStatus
	completions int
}

func newSessionStoreStub() *sessionStoreStub {
	return &sessionStoreStub{byKey: map[string]*models.AttendanceSession{}, byID: map[string]*models.AttendanceSession{}}
}

func sessionKey(studentID string, date time.Time) string {
	return studentID + "|" + models.DateOf(date).Format(models.DateLayout)
}

func (s *sessionStoreStub) FindByStudentDate(ctx context.Context, studentID string, date time.Time) (*models.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byKey[sessionKey(studentID, date)]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *sessionStoreStub) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *session
	return &copied, nil
}

func (s *sessionStoreStub) InsertCheckIn(ctx context.Context, session *models.AttendanceSession) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionKey(session.StudentID, session.Date)
	if _, exists := s.byKey[key]; exists || s.forceLoss {
		return false, nil
	}
	copied := *session
	s.byKey[key] = &copied
	s.byID[session.ID] = &copied
	s.inserts++
	return true, nil
}

func (s *sessionStoreStub) CompleteCheckOut(ctx context.Context, id string, record models.CheckOutRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok || session.CheckOutAt != nil {
		return false, nil
	}
	at := record.At
	session.CheckOutAt = &at
	session.CheckOutLatitude = &record.Latitude
	session.CheckOutLongitude = &record.Longitude
	session.CheckOutDistance = &record.Distance
	session.CheckOutIP = &record.IP
	session.CheckOutPhotoPath = record.PhotoPath
	session.IsSuspicious = record.IsSuspicious
	session.SuspiciousReason = record.SuspiciousReason
	s.completions++
	return true, nil
}

func (s *sessionStoreStub) UpdateStatus(ctx context.Context, id string, status models.SessionStatus, reviewerID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	session.Status = status
	session.ReviewedBy = &reviewerID
	session.ReviewedAt = &at
	s.reviewed = append(s.reviewed, status)
	return nil
}

type resolverStub struct {
	assignment *models.Assignment
	// governing is what an open session was checked in under; defaults to assignment.
	governing  *models.Assignment
}

func (r resolverStub) ResolveActiveAssignment(ctx context.Context, studentID string, date time.Time) (*models.Assignment, error) {
	return r.assignment, nil
}

func (r resolverStub) SessionAssignment(ctx context.Context, studentID, siteID string, date time.Time) (*models.Assignment, error) {
	if r.governing != nil {
		return r.governing, nil
	}
	if r.assignment != nil && r.assignment.SiteID == siteID {
		return r.assignment, nil
	}
	return nil, nil
}

type attendanceFixture struct {
	svc      *AttendanceService
	sessions *sessionStoreStub
	photoDir string
	metrics  *MetricsService
}

func newAttendanceFixture(t *testing.T) *attendanceFixture {
	t.Helper()
	assignment := testAssignment()
	photos, dir := newTestPhotoService(t)
	sessions := newSessionStoreStub()
	metrics := NewMetricsService()
	svc := NewAttendanceService(sessions, resolverStub{assignment: &assignment}, newSiteStoreStub(testSite()), newTestEngine(t), photos, nil, metrics, nil, zap.NewNop())
	svc.now = func() time.Time { return monday10 }
	return &attendanceFixture{svc: svc, sessions: sessions, photoDir: dir, metrics: metrics}
}

func submission(meters, accuracy float64) AttendanceReport {
	r := reportAt(meters, accuracy)
	return AttendanceReport{SiteID: "site-1", Latitude: r.Latitude, Longitude: r.Longitude, AccuracyMeters: r.AccuracyMeters, ClientIP: r.ClientIP}
}

func policyReason(t *testing.T, err error) string {
	t.Helper()
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected typed error, got %v", err)
	require.Equal(t, appErrors.ErrPolicyViolation.Code, appErr.Code)
	return appErr.Reason
}

func TestCheckInAdmitsOnce(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()

	res, err := f.svc.CheckIn(ctx, "stu-1", monday10, submission(50, 10))
	require.NoError(t, err)
	assert.Equal(t, ActionCheckIn, res.Action)
	assert.Equal(t, models.StateCheckedIn, res.State)
	assert.Equal(t, models.SessionStatusPresent, res.Session.Status)
	assert.False(t, res.Session.IsSuspicious)
	assert.Nil(t, res.Session.CheckInPhotoPath)
	assert.InDelta(t, 50, res.Session.CheckInDistance, 0.5)

	_, err = f.svc.CheckIn(ctx, "stu-1", monday10, submission(50, 10))
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, 1, f.sessions.inserts)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().Admitted)
}

func TestCheckOutRequiresCheckIn(t *testing.T) {
	f := newAttendanceFixture(t)
	_, err := f.svc.CheckOut(context.Background(), "stu-1", monday10, submission(50, 10))
	require.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Contains(t, err.Error(), "not checked in")
}

func TestFullDayLifecycle(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, "stu-1", monday10, submission(50, 10))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return monday10.Add(7 * time.Hour) }
	res, err := f.svc.CheckOut(ctx, "stu-1", monday10, submission(60, 10))
	require.NoError(t, err)
	assert.Equal(t, ActionCheckOut, res.Action)
	assert.Equal(t, models.StateCompleted, res.State)
	require.NotNil(t, res.Session.CheckOutAt)
	assert.False(t, res.Session.IsSuspicious)

	status, err := f.svc.Status(ctx, "stu-1", monday10)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, status.State)

	_, err = f.svc.CheckOut(ctx, "stu-1", monday10, submission(60, 10))
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	_, err = f.svc.CheckIn(ctx, "stu-1", monday10, submission(60, 10))
	require.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Contains(t, err.Error(), "already completed")
	assert.Equal(t, 1, f.sessions.completions)
}

func TestMarkDispatchesByState(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()

	res, err := f.svc.Mark(ctx, "stu-1", submission(20, 10))
	require.NoError(t, err)
	assert.Equal(t, ActionCheckIn, res.Action)

	f.svc.now = func() time.Time { return monday10.Add(time.Hour) }
	res, err = f.svc.Mark(ctx, "stu-1", submission(20, 10))
	require.NoError(t, err)
	assert.Equal(t, ActionCheckOut, res.Action)

	_, err = f.svc.Mark(ctx, "stu-1", submission(20, 10))
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestCheckInRejectionLeavesNoRow(t *testing.T) {
	f := newAttendanceFixture(t)
	_, err := f.svc.CheckIn(context.Background(), "stu-1", monday10, submission(500, 10))
	require.Error(t, err)
	assert.Equal(t, string(ReasonOutsideGeofence), policyReason(t, err))
	assert.Contains(t, err.Error(), "outside geofence, distance=500m")
	assert.Zero(t, f.sessions.inserts)
	assert.Equal(t, uint64(1), f.metrics.Snapshot().Rejected)
}

func TestCheckInEscalationThenResubmitWithPhoto(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()

	res, err := f.svc.CheckIn(ctx, "stu-1", monday10, submission(100, 400))
	require.NoError(t, err)
	assert.True(t, res.RequiresPhoto)
	assert.Equal(t, models.StateNotStarted, res.State)
	assert.Nil(t, res.Session)
	assert.Zero(t, f.sessions.inserts)

	report := submission(100, 400)
	report.Photo = testPhotoPayload(t)
	res, err = f.svc.CheckIn(ctx, "stu-1", monday10, report)
	require.NoError(t, err)
	assert.False(t, res.RequiresPhoto)
	require.NotNil(t, res.Session.CheckInPhotoPath)
	assert.Contains(t, storedFiles(t, f.photoDir), *res.Session.CheckInPhotoPath)
	assert.True(t, res.Session.IsSuspicious)
	require.NotNil(t, res.Session.SuspiciousReason)
	assert.Contains(t, *res.Session.SuspiciousReason, "poor location accuracy")
}

func TestCheckInLostRaceReleasesPhoto(t *testing.T) {
	f := newAttendanceFixture(t)
	f.sessions.forceLoss = true
	report := submission(100, 400)
	report.Photo = testPhotoPayload(t)

	_, err := f.svc.CheckIn(context.Background(), "stu-1", monday10, report)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, storedFiles(t, f.photoDir))
}

func TestConcurrentCheckInsOneWins(t *testing.T) {
	f := newAttendanceFixture(t)
	const attempts = 8
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CheckIn(context.Background(), "stu-1", monday10, submission(30, 10))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, appErrors.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, attempts-1, conflicts)
	assert.Equal(t, 1, f.sessions.inserts)
}

func TestCheckInPolicyPreconditions(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, "stu-1", monday10.AddDate(0, 0, 1), submission(10, 10))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	report := submission(10, 10)
	report.SiteID = "site-other"
	_, err = f.svc.CheckIn(ctx, "stu-1", monday10, report)
	assert.Equal(t, string(ReasonSiteNotAssigned), policyReason(t, err))

	f.svc.assignments = resolverStub{}
	_, err = f.svc.CheckIn(ctx, "stu-1", monday10, submission(10, 10))
	assert.Equal(t, string(ReasonNoActiveAssignment), policyReason(t, err))
}

func TestCheckOutRejectionKeepsCheckedIn(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()
	_, err := f.svc.CheckIn(ctx, "stu-1", monday10, submission(10, 10))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return monday10.Add(9 * time.Hour) }
	_, err = f.svc.CheckOut(ctx, "stu-1", monday10, submission(10, 10))
	assert.Equal(t, string(ReasonOutsideHours), policyReason(t, err))

	status, err := f.svc.Status(ctx, "stu-1", monday10)
	require.NoError(t, err)
	assert.Equal(t, models.StateCheckedIn, status.State)
}

func TestCheckOutMergesSuspicion(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()
	_, err := f.svc.CheckIn(ctx, "stu-1", monday10, submission(10, 10))
	require.NoError(t, err)

	f.svc.now = func() time.Time { return monday10.Add(time.Minute) }
	far := geo.Offset(testCenter, 150, 225)
	report := AttendanceReport{SiteID: "site-1", Latitude: far.Latitude, Longitude: far.Longitude, AccuracyMeters: 10, ClientIP: "192.168.1.7"}
	res, err := f.svc.CheckOut(ctx, "stu-1", monday10, report)
	require.NoError(t, err)
	assert.True(t, res.Session.IsSuspicious)
	require.NotNil(t, res.Session.SuspiciousReason)
	assert.Contains(t, *res.Session.SuspiciousReason, "client IP changed since check-in")
	assert.Equal(t, models.SessionStatusPresent, res.Session.Status)
}

func TestReviewOverridesStatus(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()
	res, err := f.svc.CheckIn(ctx, "stu-1", monday10, submission(10, 10))
	require.NoError(t, err)

	session, err := f.svc.Review(ctx, res.Session.ID, dto.ReviewRequest{Status: models.SessionStatusRejected}, "adm-1")
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusRejected, session.Status)
	require.NotNil(t, session.ReviewedBy)
	assert.Equal(t, "adm-1", *session.ReviewedBy)

	_, err = f.svc.Review(ctx, "missing", dto.ReviewRequest{Status: models.SessionStatusPresent}, "adm-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = f.svc.Review(ctx, res.Session.ID, dto.ReviewRequest{Status: "MAYBE"}, "adm-1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestReportFromRequest(t *testing.T) {
	f := newAttendanceFixture(t)
	_, err := f.svc.ReportFromRequest(dto.MarkAttendanceRequest{Latitude: floatRef(12.9)}, "10.0.0.1")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	report, err := f.svc.ReportFromRequest(dto.MarkAttendanceRequest{SiteID: " site-1 ", Latitude: floatRef(12.9), Longitude: floatRef(77.5), Accuracy: floatRef(8)}, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "site-1", report.SiteID)
	assert.Equal(t, "10.0.0.1", report.ClientIP)
}

func TestCheckOutAfterAssignmentRemoved(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()
	_, err := f.svc.CheckIn(ctx, "stu-1", monday10, submission(10, 10))
	require.NoError(t, err)

	removedAt := monday10.Add(time.Hour)
	removed := testAssignment()
	removed.RemovedAt = &removedAt
	f.svc.assignments = resolverStub{governing: &removed}

	f.svc.now = func() time.Time { return monday10.Add(7 * time.Hour) }
	res, err := f.svc.CheckOut(ctx, "stu-1", monday10, submission(20, 10))
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, res.State)

	status, err := f.svc.Status(ctx, "stu-1", monday10)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, status.State)
}

func TestCheckOutIgnoresSameDayReassignment(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()
	_, err := f.svc.CheckIn(ctx, "stu-1", monday10, submission(10, 10))
	require.NoError(t, err)

	superseded := testAssignment()
	supersededAt := monday10.Add(time.Hour)
	superseded.SupersededAt = &supersededAt
	next := testAssignment()
	next.ID = "asg-2"
	next.SiteID = "site-2"
	next.AllowedDays = []string{"TUE"}
	f.svc.assignments = resolverStub{assignment: &next, governing: &superseded}

	f.svc.now = func() time.Time { return monday10.Add(2 * time.Hour) }
	res, err := f.svc.CheckOut(ctx, "stu-1", monday10, submission(20, 10))
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, res.State)
	assert.Equal(t, "site-1", res.Session.SiteID)
}

func TestCheckOutFallsBackToSiteWindow(t *testing.T) {
	f := newAttendanceFixture(t)
	ctx := context.Background()
	_, err := f.svc.CheckIn(ctx, "stu-1", monday10, submission(10, 10))
	require.NoError(t, err)

	f.svc.assignments = resolverStub{}
	f.svc.now = func() time.Time { return monday10.Add(9 * time.Hour) }
	_, err = f.svc.CheckOut(ctx, "stu-1", monday10, submission(10, 10))
	assert.Equal(t, string(ReasonOutsideHours), policyReason(t, err))

	f.svc.now = func() time.Time { return monday10.Add(3 * time.Hour) }
	res, err := f.svc.CheckOut(ctx, "stu-1", monday10, submission(10, 10))
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, res.State)
}
