package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/placement-attendance-api/internal/models"
	"github.com/noah-isme/placement-attendance-api/pkg/database"
)

// ReportRepository performs the bulk reads behind attendance reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Snapshot reads students, their assignments, sites and sessions for span in a
// single read-only repeatable-read transaction.
func (r *ReportRepository) Snapshot(ctx context.Context, span models.DateRange, filter models.ReportFilter) (snapshot *models.ReportSnapshot, err error) {
	tx, err := r.db.BeginTxx(ctx, database.SnapshotTxOptions)
	if err != nil {
		return nil, fmt.Errorf("begin report snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	snapshot = &models.ReportSnapshot{}

	studentQuery, studentArgs := buildStudentQuery(span, filter)
	if err = tx.SelectContext(ctx, &snapshot.Students, studentQuery, studentArgs...); err != nil {
		return nil, fmt.Errorf("report students: %w", err)
	}
	if len(snapshot.Students) > 0 {
		ids := make([]string, len(snapshot.Students))
		for i, s := range snapshot.Students {
			ids[i] = s.ID
		}

		assignmentQuery := "SELECT " + assignmentColumns + ` FROM placement_assignments
WHERE student_id = ANY($1) AND start_date <= $3 AND end_date >= $2
ORDER BY created_at DESC, id DESC`
		if err = tx.SelectContext(ctx, &snapshot.Assignments, assignmentQuery, pq.Array(ids), span.From, span.To); err != nil {
			return nil, fmt.Errorf("report assignments: %w", err)
		}

		sessionQuery := "SELECT " + sessionColumns + ` FROM attendance_sessions
WHERE student_id = ANY($1) AND date BETWEEN $2 AND $3
ORDER BY date ASC, student_id ASC`
		if err = tx.SelectContext(ctx, &snapshot.Sessions, sessionQuery, pq.Array(ids), span.From, span.To); err != nil {
			return nil, fmt.Errorf("report sessions: %w", err)
		}
	}

	if err = tx.SelectContext(ctx, &snapshot.Sites, "SELECT "+siteColumns+" FROM placement_sites ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("report sites: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit report snapshot: %w", err)
	}
	return snapshot, nil
}

func buildStudentQuery(span models.DateRange, filter models.ReportFilter) (string, []interface{}) {
	query := strings.Builder{}
	query.WriteString("SELECT " + studentColumns + " FROM students s WHERE 1=1")
	args := []interface{}{}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		fmt.Fprintf(&query, clause, len(args))
	}
	if filter.StudentID != "" {
		add(" AND s.id = $%d", filter.StudentID)
	}
	if filter.Batch != "" {
		add(" AND s.batch = $%d", filter.Batch)
	}
	if filter.Course != "" {
		add(" AND s.course = $%d", filter.Course)
	}
	if filter.Branch != "" {
		add(" AND s.branch = $%d", filter.Branch)
	}
	if filter.Year != nil {
		add(" AND s.year = $%d", *filter.Year)
	}
	if filter.Semester != nil {
		add(" AND s.semester = $%d", *filter.Semester)
	}
	if filter.SiteID != "" {
		args = append(args, filter.SiteID, span.From, span.To)
		fmt.Fprintf(&query, `
AND EXISTS (
	SELECT 1 FROM placement_assignments pa
	WHERE pa.student_id = s.id AND pa.site_id = $%d AND pa.start_date <= $%d AND pa.end_date >= $%d
)`, len(args)-2, len(args), len(args)-1)
	}
	query.WriteString("\nORDER BY s.batch, s.course, s.branch, s.year, s.semester, s.roll_number, s.id")
	return query.String(), args
}
