package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	"github.com/noah-isme/placement-attendance-api/internal/repository"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
)

// AssignmentRule names how a new assignment treats overlapping ones.
type AssignmentRule string

// RuleSupersede is last-write-wins: overlapping assignments are cut back or superseded.
const RuleSupersede AssignmentRule = "SUPERSEDE"

type assignmentStore interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListCovering(ctx context.Context, studentID string, date time.Time) ([]models.Assignment, error)
	FindGoverning(ctx context.Context, studentID, siteID string, date time.Time) (*models.Assignment, error)
	ListByStudent(ctx context.Context, studentID string, includeInactive bool) ([]models.Assignment, error)
	History(ctx context.Context, assignmentID string) ([]models.AssignmentHistory, error)
	WithStudentLock(ctx context.Context, studentID string, fn func(repository.AssignmentWriter) error) error
}

type siteReader interface {
	FindByID(ctx context.Context, id string) (*models.Site, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// AssignmentService resolves and mutates student placement assignments.
type AssignmentService struct {
	repo      assignmentStore
	sites     siteReader
	students  studentReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssignmentService wires the assignment policy.
func NewAssignmentService(repo assignmentStore, sites siteReader, students studentReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{repo: repo, sites: sites, students: students, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// Rule reports the overlap rule enforced by Assign and Update.
func (s *AssignmentService) Rule() AssignmentRule {
	return RuleSupersede
}

// ResolveActiveAssignment returns the live assignment containing date, or nil.
// When several match, the most recently created wins.
func (s *AssignmentService) ResolveActiveAssignment(ctx context.Context, studentID string, date time.Time) (*models.Assignment, error) {
	items, err := s.repo.ListCovering(ctx, studentID, models.DateOf(date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve assignment")
	}
	if len(items) == 0 {
		return nil, nil
	}
	if len(items) > 1 {
		ids := make([]string, len(items))
		for i, a := range items {
			ids[i] = a.ID
		}
		s.logger.Warn("overlapping assignments, using most recent",
			zap.String("student_id", studentID),
			zap.Time("date", date),
			zap.Strings("assignment_ids", ids))
	}
	return &items[0], nil
}

// SessionAssignment returns the assignment an admitted check-in at site on
// date was made under, even if it has since been removed or superseded.
func (s *AssignmentService) SessionAssignment(ctx context.Context, studentID, siteID string, date time.Time) (*models.Assignment, error) {
	assignment, err := s.repo.FindGoverning(ctx, studentID, siteID, models.DateOf(date))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve session assignment")
	}
	return assignment, nil
}

// IsDayAllowed reports whether date's weekday is in the assignment's allowed days.
func (s *AssignmentService) IsDayAllowed(assignment models.Assignment, date time.Time) bool {
	return assignment.AllowsDay(date)
}

// Get returns an assignment by id.
func (s *AssignmentService) Get(ctx context.Context, id string) (*models.Assignment, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	return assignment, nil
}

// List returns the student's assignments.
func (s *AssignmentService) List(ctx context.Context, studentID string, includeInactive bool) ([]models.Assignment, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	items, err := s.repo.ListByStudent(ctx, studentID, includeInactive)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return items, nil
}

// History returns the audit trail of an assignment.
func (s *AssignmentService) History(ctx context.Context, id string) ([]models.AssignmentHistory, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	items, err := s.repo.History(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment history")
	}
	return items, nil
}

// Assign binds the student to the site and supersedes overlapping assignments.
func (s *AssignmentService) Assign(ctx context.Context, req dto.AssignRequest, actorID string) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	span, err := parseSpan(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	days, err := normaliseDays(req.AllowedDays)
	if err != nil {
		return nil, err
	}
	if err := s.ensureAssignable(ctx, req.StudentID, req.SiteID); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		ID:          uuid.NewString(),
		StudentID:   req.StudentID,
		SiteID:      req.SiteID,
		StartDate:   span.From,
		EndDate:     span.To,
		AllowedDays: days,
	}
	err = s.repo.WithStudentLock(ctx, req.StudentID, func(w repository.AssignmentWriter) error {
		site, err := w.LockSite(ctx, assignment.SiteID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "site not found")
			}
			return err
		}
		if !site.Active {
			return appErrors.Clone(appErrors.ErrValidation, "site is inactive")
		}
		if err := s.supersedeOverlaps(ctx, w, assignment, "", actorID); err != nil {
			return err
		}
		if err := w.Insert(ctx, assignment); err != nil {
			return err
		}
		return w.RecordHistory(ctx, historyEntry(assignment, models.AssignmentActionAssign, actorID, assignment))
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign student")
	}
	s.cache.InvalidateReports(ctx)
	s.logger.Info("student assigned", zap.String("student_id", assignment.StudentID), zap.String("site_id", assignment.SiteID), zap.String("assignment_id", assignment.ID))
	return assignment, nil
}

// Update edits the date range or weekday set of a live assignment.
func (s *AssignmentService) Update(ctx context.Context, id string, req dto.UpdateAssignmentRequest, actorID string) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Live() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment is no longer active")
	}

	start, end := existing.StartDate.Format(models.DateLayout), existing.EndDate.Format(models.DateLayout)
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	span, err := parseSpan(start, end)
	if err != nil {
		return nil, err
	}
	days := existing.AllowedDays
	if req.AllowedDays != nil {
		if days, err = normaliseDays(req.AllowedDays); err != nil {
			return nil, err
		}
	}

	updated := *existing
	updated.StartDate, updated.EndDate, updated.AllowedDays = span.From, span.To, days
	err = s.repo.WithStudentLock(ctx, existing.StudentID, func(w repository.AssignmentWriter) error {
		if err := s.supersedeOverlaps(ctx, w, &updated, existing.ID, actorID); err != nil {
			return err
		}
		if err := w.UpdateSchedule(ctx, &updated); err != nil {
			return err
		}
		return w.RecordHistory(ctx, historyEntry(&updated, models.AssignmentActionUpdate, actorID, map[string]interface{}{
			"before": existing,
			"after":  updated,
		}))
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update assignment")
	}
	s.cache.InvalidateReports(ctx)
	return &updated, nil
}

// Remove soft-deletes an assignment. Recorded sessions are left untouched.
func (s *AssignmentService) Remove(ctx context.Context, id string, actorID string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.RemovedAt != nil {
		return appErrors.Clone(appErrors.ErrConflict, "assignment already removed")
	}
	at := s.now().UTC()
	err = s.repo.WithStudentLock(ctx, existing.StudentID, func(w repository.AssignmentWriter) error {
		if err := w.Remove(ctx, id, at); err != nil {
			return err
		}
		return w.RecordHistory(ctx, historyEntry(existing, models.AssignmentActionRemove, actorID, map[string]interface{}{"removedAt": at}))
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove assignment")
	}
	s.cache.InvalidateReports(ctx)
	return nil
}

func (s *AssignmentService) ensureAssignable(ctx context.Context, studentID, siteID string) error {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	site, err := s.sites.FindByID(ctx, siteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load site")
	}
	if !site.Active {
		return appErrors.Clone(appErrors.ErrValidation, "site is inactive")
	}
	return nil
}

// supersedeOverlaps applies the supersede rule to live assignments overlapping target.
func (s *AssignmentService) supersedeOverlaps(ctx context.Context, w repository.AssignmentWriter, target *models.Assignment, excludeID, actorID string) error {
	prior, err := w.LiveOverlapping(ctx, target.StudentID, target.Range(), excludeID)
	if err != nil {
		return err
	}
	at := s.now().UTC()
	for i := range prior {
		p := prior[i]
		if !p.StartDate.Before(target.StartDate) {
			if err := w.Supersede(ctx, p.ID, at); err != nil {
				return err
			}
			if err := w.RecordHistory(ctx, historyEntry(&p, models.AssignmentActionSupersede, actorID, map[string]interface{}{"supersededBy": target.ID})); err != nil {
				return err
			}
			continue
		}
		newEnd := target.StartDate.AddDate(0, 0, -1)
		if err := w.Truncate(ctx, p.ID, newEnd); err != nil {
			return err
		}
		if err := w.RecordHistory(ctx, historyEntry(&p, models.AssignmentActionTruncate, actorID, map[string]interface{}{
			"previousEndDate": p.EndDate.Format(models.DateLayout),
			"endDate":         newEnd.Format(models.DateLayout),
		})); err != nil {
			return err
		}
	}
	return nil
}

func historyEntry(a *models.Assignment, action models.AssignmentAction, actorID string, payload interface{}) models.AssignmentHistory {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	entry := models.AssignmentHistory{AssignmentID: a.ID, StudentID: a.StudentID, Action: action, Payload: raw}
	if actorID != "" {
		entry.ActorID = &actorID
	}
	return entry
}

func parseSpan(from, to string) (models.DateRange, error) {
	start, err := time.Parse(models.DateLayout, from)
	if err != nil {
		return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}
	end, err := time.Parse(models.DateLayout, to)
	if err != nil {
		return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "invalid end date")
	}
	span := models.NewDateRange(start, end)
	if span.Empty() {
		return models.DateRange{}, appErrors.Clone(appErrors.ErrValidation, "date range is empty")
	}
	return span, nil
}

func normaliseDays(raw []string) (pq.StringArray, error) {
	if len(raw) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "allowed days must not be empty")
	}
	seen := make(map[models.Weekday]bool, len(raw))
	days := make(pq.StringArray, 0, len(raw))
	for _, d := range raw {
		code, err := models.ParseWeekday(d)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		if !seen[code] {
			seen[code] = true
			days = append(days, string(code))
		}
	}
	return days, nil
}
