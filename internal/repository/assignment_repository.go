package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/placement-attendance-api/internal/models"
)

const assignmentColumns = `id, student_id, site_id, start_date, end_date, allowed_days, created_at, updated_at, superseded_at, removed_at`

// AssignmentWriter is the set of mutations available while a student's assignments are locked.
type AssignmentWriter interface {
	// LockSite holds a share lock on the site row until commit.
	LockSite(ctx context.Context, siteID string) (*models.Site, error)
	LiveOverlapping(ctx context.Context, studentID string, span models.DateRange, excludeID string) ([]models.Assignment, error)
	Insert(ctx context.Context, assignment *models.Assignment) error
	UpdateSchedule(ctx context.Context, assignment *models.Assignment) error
	Truncate(ctx context.Context, id string, endDate time.Time) error
	Supersede(ctx context.Context, id string, at time.Time) error
	Remove(ctx context.Context, id string, at time.Time) error
	RecordHistory(ctx context.Context, entry models.AssignmentHistory) error
}

// AssignmentRepository persists placement assignments and their history.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID loads an assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, "SELECT "+assignmentColumns+" FROM placement_assignments WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return &assignment, nil
}

// ListCovering returns live assignments of the student containing date, newest first.
func (r *AssignmentRepository) ListCovering(ctx context.Context, studentID string, date time.Time) ([]models.Assignment, error) {
	query := "SELECT " + assignmentColumns + ` FROM placement_assignments
WHERE student_id = $1 AND removed_at IS NULL AND superseded_at IS NULL AND start_date <= $2 AND end_date >= $2
ORDER BY created_at DESC, id DESC`
	var items []models.Assignment
	if err := r.db.SelectContext(ctx, &items, query, studentID, models.DateOf(date)); err != nil {
		return nil, fmt.Errorf("list covering assignments: %w", err)
	}
	return items, nil
}

// FindGoverning returns the assignment that placed the student at site on
// date, including removed, superseded and truncated rows. Covering rows rank
// first, then the newest. Nil when the student never had the site.
func (r *AssignmentRepository) FindGoverning(ctx context.Context, studentID, siteID string, date time.Time) (*models.Assignment, error) {
	query := "SELECT " + assignmentColumns + ` FROM placement_assignments
WHERE student_id = $1 AND site_id = $2 AND start_date <= $3
ORDER BY (end_date >= $3) DESC, created_at DESC, id DESC
LIMIT 1`
	var items []models.Assignment
	if err := r.db.SelectContext(ctx, &items, query, studentID, siteID, models.DateOf(date)); err != nil {
		return nil, fmt.Errorf("find governing assignment: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// ListByStudent returns all assignments of a student, newest first.
func (r *AssignmentRepository) ListByStudent(ctx context.Context, studentID string, includeInactive bool) ([]models.Assignment, error) {
	query := "SELECT " + assignmentColumns + " FROM placement_assignments WHERE student_id = $1"
	if !includeInactive {
		query += " AND removed_at IS NULL AND superseded_at IS NULL"
	}
	query += " ORDER BY start_date DESC, created_at DESC"
	var items []models.Assignment
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list student assignments: %w", err)
	}
	return items, nil
}

// History returns the audit trail of an assignment.
func (r *AssignmentRepository) History(ctx context.Context, assignmentID string) ([]models.AssignmentHistory, error) {
	const query = `SELECT id, assignment_id, student_id, action, actor_id, payload, created_at
FROM placement_assignment_history WHERE assignment_id = $1 ORDER BY created_at ASC`
	var items []models.AssignmentHistory
	if err := r.db.SelectContext(ctx, &items, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list assignment history: %w", err)
	}
	return items, nil
}

// WithStudentLock runs fn in a transaction holding an advisory lock on the
// student, so concurrent assignment changes for that student serialise.
func (r *AssignmentRepository) WithStudentLock(ctx context.Context, studentID string, fn func(AssignmentWriter) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", studentID); err != nil {
		return fmt.Errorf("lock student assignments: %w", err)
	}
	if err = fn(&assignmentTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment transaction: %w", err)
	}
	return nil
}

type assignmentTx struct {
	tx *sqlx.Tx
}

func (w *assignmentTx) LockSite(ctx context.Context, siteID string) (*models.Site, error) {
	var site models.Site
	if err := w.tx.GetContext(ctx, &site, "SELECT "+siteColumns+" FROM placement_sites WHERE id = $1 FOR SHARE", siteID); err != nil {
		return nil, fmt.Errorf("lock site: %w", err)
	}
	return &site, nil
}

func (w *assignmentTx) LiveOverlapping(ctx context.Context, studentID string, span models.DateRange, excludeID string) ([]models.Assignment, error) {
	query := "SELECT " + assignmentColumns + ` FROM placement_assignments
WHERE student_id = $1 AND removed_at IS NULL AND superseded_at IS NULL
	AND start_date <= $3 AND end_date >= $2`
	args := []interface{}{studentID, span.From, span.To}
	if excludeID != "" {
		args = append(args, excludeID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	query += " ORDER BY start_date ASC FOR UPDATE"
	var items []models.Assignment
	if err := w.tx.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list overlapping assignments: %w", err)
	}
	return items, nil
}

func (w *assignmentTx) Insert(ctx context.Context, assignment *models.Assignment) error {
	now := time.Now().UTC()
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	assignment.CreatedAt, assignment.UpdatedAt = now, now
	const query = `INSERT INTO placement_assignments (id, student_id, site_id, start_date, end_date, allowed_days, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := w.tx.ExecContext(ctx, query, assignment.ID, assignment.StudentID, assignment.SiteID,
		assignment.StartDate, assignment.EndDate, assignment.AllowedDays, assignment.CreatedAt, assignment.UpdatedAt); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (w *assignmentTx) UpdateSchedule(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE placement_assignments SET start_date = $2, end_date = $3, allowed_days = $4, updated_at = $5 WHERE id = $1`
	if _, err := w.tx.ExecContext(ctx, query, assignment.ID, assignment.StartDate, assignment.EndDate,
		assignment.AllowedDays, assignment.UpdatedAt); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

func (w *assignmentTx) Truncate(ctx context.Context, id string, endDate time.Time) error {
	const query = `UPDATE placement_assignments SET end_date = $2, updated_at = $3 WHERE id = $1`
	if _, err := w.tx.ExecContext(ctx, query, id, models.DateOf(endDate), time.Now().UTC()); err != nil {
		return fmt.Errorf("truncate assignment: %w", err)
	}
	return nil
}

func (w *assignmentTx) Supersede(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE placement_assignments SET superseded_at = $2, updated_at = $2 WHERE id = $1`
	if _, err := w.tx.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("supersede assignment: %w", err)
	}
	return nil
}

func (w *assignmentTx) Remove(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE placement_assignments SET removed_at = $2, updated_at = $2 WHERE id = $1 AND removed_at IS NULL`
	if _, err := w.tx.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("remove assignment: %w", err)
	}
	return nil
}

func (w *assignmentTx) RecordHistory(ctx context.Context, entry models.AssignmentHistory) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	payload := []byte(entry.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	const query = `INSERT INTO placement_assignment_history (id, assignment_id, student_id, action, actor_id, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := w.tx.ExecContext(ctx, query, entry.ID, entry.AssignmentID, entry.StudentID, entry.Action,
		entry.ActorID, payload, entry.CreatedAt); err != nil {
		return fmt.Errorf("record assignment history: %w", err)
	}
	return nil
}
