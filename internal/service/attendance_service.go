package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
)

// Attendance actions reported back to clients.
const (
	ActionCheckIn  = "CHECK_IN"
	ActionCheckOut = "CHECK_OUT"
)

type sessionStore interface {
	FindByStudentDate(ctx context.Context, studentID string, date time.Time) (*models.AttendanceSession, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceSession, error)
	InsertCheckIn(ctx context.Context, session *models.AttendanceSession) (bool, error)
	CompleteCheckOut(ctx context.Context, id string, record models.CheckOutRecord) (bool, error)
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus, reviewerID string, at time.Time) error
}

type assignmentResolver interface {
	ResolveActiveAssignment(ctx context.Context, studentID string, date time.Time) (*models.Assignment, error)
	SessionAssignment(ctx context.Context, studentID, siteID string, date time.Time) (*models.Assignment, error)
}

type photoCapturer interface {
	Capture(ctx context.Context, payload, key string, fn func(path *string) error) error
}

// AttendanceReport is a device submission enriched with the caller's address.
type AttendanceReport struct {
	SiteID         string
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
	Photo          string
	ClientIP       string
}

// MarkResult describes what happened to a submission that was not refused.
type MarkResult struct {
	Action        string
	Decision      Decision
	RequiresPhoto bool
	State         models.SessionState
	Session       *models.AttendanceSession
}

// StatusResult is the day's state and row, if any.
type StatusResult struct {
	State   models.SessionState
	Session *models.AttendanceSession
}

// AttendanceService drives the NotStarted → CheckedIn → Completed state machine.
type AttendanceService struct {
	sessions    sessionStore
	assignments assignmentResolver
	sites       siteReader
	engine      *VerificationEngine
	photos      photoCapturer
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAttendanceService wires the state machine.
func NewAttendanceService(
	sessions sessionStore,
	assignments assignmentResolver,
	sites siteReader,
	engine *VerificationEngine,
	photos photoCapturer,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *AttendanceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{
		sessions:    sessions,
		assignments: assignments,
		sites:       sites,
		engine:      engine,
		photos:      photos,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// ReportFromRequest validates a mark-attendance payload.
func (s *AttendanceService) ReportFromRequest(req dto.MarkAttendanceRequest, clientIP string) (AttendanceReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return AttendanceReport{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance report")
	}
	return AttendanceReport{
		SiteID:         strings.TrimSpace(req.SiteID),
		Latitude:       *req.Latitude,
		Longitude:      *req.Longitude,
		AccuracyMeters: *req.Accuracy,
		Photo:          req.Photo,
		ClientIP:       clientIP,
	}, nil
}

// Today returns the current attendance date in the engine's zone.
func (s *AttendanceService) Today() time.Time {
	return models.DateOf(s.now().In(s.engine.Location()))
}

// Mark dispatches a submission to CheckIn or CheckOut based on today's state.
func (s *AttendanceService) Mark(ctx context.Context, studentID string, report AttendanceReport) (*MarkResult, error) {
	today := s.Today()
	current, err := s.load(ctx, studentID, today)
	if err != nil {
		return nil, err
	}
	switch models.StateOf(current) {
	case models.StateNotStarted:
		return s.CheckIn(ctx, studentID, today, report)
	case models.StateCheckedIn:
		return s.CheckOut(ctx, studentID, today, report)
	default:
		return nil, appErrors.Clone(appErrors.ErrConflict, "already completed")
	}
}

// CheckIn admits the first event of the day.
func (s *AttendanceService) CheckIn(ctx context.Context, studentID string, date time.Time, report AttendanceReport) (*MarkResult, error) {
	now := s.now()
	day, err := s.requireToday(date, now)
	if err != nil {
		return nil, err
	}
	current, err := s.load(ctx, studentID, day)
	if err != nil {
		return nil, err
	}
	switch models.StateOf(current) {
	case models.StateCheckedIn:
		return nil, appErrors.Clone(appErrors.ErrConflict, "already checked in")
	case models.StateCompleted:
		return nil, appErrors.Clone(appErrors.ErrConflict, "already completed")
	}

	assignment, err := s.assignments.ResolveActiveAssignment(ctx, studentID, day)
	if err != nil {
		return nil, err
	}
	if assignment == nil {
		return nil, appErrors.Policy(string(ReasonNoActiveAssignment), "no active assignment")
	}
	if report.SiteID != "" && report.SiteID != assignment.SiteID {
		return nil, appErrors.Policy(string(ReasonSiteNotAssigned), "site not assigned")
	}
	site, err := s.loadSite(ctx, assignment.SiteID)
	if err != nil {
		return nil, err
	}

	decision := s.engine.Evaluate(Evaluation{
		Report:     locationReport(report),
		Site:       *site,
		Assignment: *assignment,
		Now:        now,
	})
	s.metrics.RecordDecision(ActionCheckIn, decision)
	if result, err := s.settle(ActionCheckIn, decision, models.StateNotStarted); result != nil || err != nil {
		return result, err
	}

	session := &models.AttendanceSession{
		ID:               uuid.NewString(),
		StudentID:        studentID,
		SiteID:           site.ID,
		Date:             day,
		CheckInAt:        now.UTC(),
		CheckInLatitude:  report.Latitude,
		CheckInLongitude: report.Longitude,
		CheckInAccuracy:  report.AccuracyMeters,
		CheckInDistance:  decision.DistanceMeters,
		CheckInIP:        report.ClientIP,
		Status:           models.SessionStatusPresent,
		IsSuspicious:     decision.Suspicious,
		SuspiciousReason: optionalString(decision.SuspiciousReason),
	}
	err = s.photos.Capture(ctx, report.Photo, session.ID+"-checkin", func(photoPath *string) error {
		session.CheckInPhotoPath = photoPath
		inserted, err := s.sessions.InsertCheckIn(ctx, session)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-in")
		}
		if !inserted {
			return appErrors.Clone(appErrors.ErrConflict, "already checked in")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.InvalidateReports(ctx)
	s.logAdmission(ActionCheckIn, session, decision)
	return &MarkResult{Action: ActionCheckIn, Decision: decision, State: models.StateCheckedIn, Session: session}, nil
}

// CheckOut completes the day's session against the check-in site.
func (s *AttendanceService) CheckOut(ctx context.Context, studentID string, date time.Time, report AttendanceReport) (*MarkResult, error) {
	now := s.now()
	day, err := s.requireToday(date, now)
	if err != nil {
		return nil, err
	}
	current, err := s.load(ctx, studentID, day)
	if err != nil {
		return nil, err
	}
	switch models.StateOf(current) {
	case models.StateNotStarted:
		return nil, appErrors.Clone(appErrors.ErrConflict, "not checked in")
	case models.StateCompleted:
		return nil, appErrors.Clone(appErrors.ErrConflict, "already completed")
	}
	if !now.After(current.CheckInAt) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "check-out must be after check-in")
	}

	assignment, err := s.checkInAssignment(ctx, current)
	if err != nil {
		return nil, err
	}
	if report.SiteID != "" && report.SiteID != current.SiteID {
		return nil, appErrors.Policy(string(ReasonSiteNotAssigned), "site not assigned")
	}
	site, err := s.loadSite(ctx, current.SiteID)
	if err != nil {
		return nil, err
	}

	decision := s.engine.Evaluate(Evaluation{
		Report:     locationReport(report),
		Site:       *site,
		Assignment: *assignment,
		Now:        now,
		CheckIn: &PriorEvent{
			Latitude:  current.CheckInLatitude,
			Longitude: current.CheckInLongitude,
			At:        current.CheckInAt,
			ClientIP:  current.CheckInIP,
		},
	})
	s.metrics.RecordDecision(ActionCheckOut, decision)
	if result, err := s.settle(ActionCheckOut, decision, models.StateCheckedIn); result != nil || err != nil {
		return result, err
	}

	record := models.CheckOutRecord{
		At:        now.UTC(),
		Latitude:  report.Latitude,
		Longitude: report.Longitude,
		Accuracy:  report.AccuracyMeters,
		Distance:  decision.DistanceMeters,
		IP:        report.ClientIP,
	}
	record.IsSuspicious, record.SuspiciousReason = mergeSuspicion(current, decision)

	err = s.photos.Capture(ctx, report.Photo, current.ID+"-checkout", func(photoPath *string) error {
		record.PhotoPath = photoPath
		ok, err := s.sessions.CompleteCheckOut(ctx, current.ID, record)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record check-out")
		}
		if !ok {
			return appErrors.Clone(appErrors.ErrConflict, "already completed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	completed := *current
	completed.CheckOutAt = &record.At
	completed.CheckOutLatitude = &record.Latitude
	completed.CheckOutLongitude = &record.Longitude
	completed.CheckOutAccuracy = &record.Accuracy
	completed.CheckOutDistance = &record.Distance
	completed.CheckOutIP = &record.IP
	completed.CheckOutPhotoPath = record.PhotoPath
	completed.IsSuspicious = record.IsSuspicious
	completed.SuspiciousReason = record.SuspiciousReason

	s.cache.InvalidateReports(ctx)
	s.logAdmission(ActionCheckOut, &completed, decision)
	return &MarkResult{Action: ActionCheckOut, Decision: decision, State: models.StateCompleted, Session: &completed}, nil
}

// checkInAssignment returns the assignment the admitted check-in was made
// under. Later removals or reassignments do not apply to an open session; when
// no row is found only the site's window governs the check-out.
func (s *AttendanceService) checkInAssignment(ctx context.Context, current *models.AttendanceSession) (*models.Assignment, error) {
	assignment, err := s.assignments.SessionAssignment(ctx, current.StudentID, current.SiteID, current.Date)
	if err != nil {
		return nil, err
	}
	if assignment != nil {
		return assignment, nil
	}
	s.logger.Warn("no assignment on record for open session, using site window",
		zap.String("session_id", current.ID),
		zap.String("student_id", current.StudentID),
		zap.String("site_id", current.SiteID))
	return &models.Assignment{
		StudentID:   current.StudentID,
		SiteID:      current.SiteID,
		StartDate:   current.Date,
		EndDate:     current.Date,
		AllowedDays: pq.StringArray{string(models.WeekdayOf(current.Date))},
	}, nil
}

// Status returns the state machine position for the student's date.
func (s *AttendanceService) Status(ctx context.Context, studentID string, date time.Time) (*StatusResult, error) {
	current, err := s.load(ctx, studentID, models.DateOf(date))
	if err != nil {
		return nil, err
	}
	return &StatusResult{State: models.StateOf(current), Session: current}, nil
}

// Review lets an administrator override a session status. Rows are never deleted.
func (s *AttendanceService) Review(ctx context.Context, sessionID string, req dto.ReviewRequest, reviewerID string) (*models.AttendanceSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	if err := s.sessions.UpdateStatus(ctx, sessionID, req.Status, reviewerID, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review session")
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	s.cache.InvalidateReports(ctx)
	s.logger.Info("session reviewed", zap.String("session_id", sessionID), zap.String("status", string(req.Status)), zap.String("reviewer_id", reviewerID))
	return session, nil
}

// settle maps non-admit outcomes to their caller-facing form; it returns
// (nil, nil) when the decision admits the event.
func (s *AttendanceService) settle(action string, decision Decision, state models.SessionState) (*MarkResult, error) {
	switch decision.Outcome {
	case OutcomeAdmit:
		return nil, nil
	case OutcomeRequireSecondaryVerification:
		return &MarkResult{Action: action, Decision: decision, RequiresPhoto: true, State: state}, nil
	default:
		return nil, appErrors.Policy(string(decision.Reason), decision.Message)
	}
}

func (s *AttendanceService) requireToday(date, now time.Time) (time.Time, error) {
	today := models.DateOf(now.In(s.engine.Location()))
	if !models.DateOf(date).Equal(today) {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attendance can only be marked for %s", today.Format(models.DateLayout)))
	}
	return today, nil
}

func (s *AttendanceService) load(ctx context.Context, studentID string, day time.Time) (*models.AttendanceSession, error) {
	current, err := s.sessions.FindByStudentDate(ctx, studentID, day)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance session")
	}
	return current, nil
}

func (s *AttendanceService) loadSite(ctx context.Context, id string) (*models.Site, error) {
	site, err := s.sites.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load site")
	}
	return site, nil
}

func (s *AttendanceService) logAdmission(action string, session *models.AttendanceSession, decision Decision) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.String("session_id", session.ID),
		zap.String("student_id", session.StudentID),
		zap.String("site_id", session.SiteID),
		zap.Float64("distance_m", decision.DistanceMeters),
	}
	if decision.Suspicious {
		s.logger.Warn("attendance admitted with suspicion", append(fields, zap.String("suspicious_reason", decision.SuspiciousReason))...)
		return
	}
	s.logger.Info("attendance admitted", fields...)
}

func locationReport(r AttendanceReport) LocationReport {
	return LocationReport{
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		AccuracyMeters: r.AccuracyMeters,
		HasPhoto:       strings.TrimSpace(r.Photo) != "",
		ClientIP:       r.ClientIP,
	}
}

func mergeSuspicion(current *models.AttendanceSession, decision Decision) (bool, *string) {
	var reasons []string
	if current.SuspiciousReason != nil && *current.SuspiciousReason != "" {
		reasons = append(reasons, *current.SuspiciousReason)
	}
	if decision.SuspiciousReason != "" {
		reasons = append(reasons, decision.SuspiciousReason)
	}
	return current.IsSuspicious || decision.Suspicious, optionalString(strings.Join(reasons, "; "))
}

func optionalString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
