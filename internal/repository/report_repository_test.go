package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/placement-attendance-api/internal/models"
)

func TestReportRepositorySnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db)
	span := models.NewDateRange(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC))
	year := 3

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s WHERE 1=1 AND s.batch = $1 AND s.year = $2")).
		WithArgs("2026", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "full_name", "roll_number", "batch", "course", "branch", "year", "semester", "active"}).
			AddRow("stu-1", "Asha", "R1", "2026", "BTech", "CSE", 3, 5, true))
	mock.ExpectQuery(regexp.QuoteMeta("FROM placement_assignments\nWHERE student_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg(), span.From, span.To).
		WillReturnRows(sqlmock.NewRows(assignmentRowColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_sessions\nWHERE student_id = ANY($1) AND date BETWEEN $2 AND $3")).
		WithArgs(sqlmock.AnyArg(), span.From, span.To).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM placement_sites ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows(siteRowColumns))
	mock.ExpectCommit()

	snapshot, err := repo.Snapshot(context.Background(), span, models.ReportFilter{Batch: "2026", Year: &year})
	require.NoError(t, err)
	require.Len(t, snapshot.Students, 1)
	assert.Equal(t, "CSE", snapshot.Students[0].Branch)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositorySnapshotSkipsRowsWithoutStudents(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReportRepository(db)
	span := models.NewDateRange(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	mock.ExpectQuery("FROM students s").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("FROM placement_sites").WillReturnRows(sqlmock.NewRows(siteRowColumns))
	mock.ExpectCommit()

	snapshot, err := repo.Snapshot(context.Background(), span, models.ReportFilter{})
	require.NoError(t, err)
	assert.Empty(t, snapshot.Students)
	assert.Empty(t, snapshot.Sessions)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildStudentQuerySiteFilter(t *testing.T) {
	span := models.NewDateRange(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC))
	query, args := buildStudentQuery(span, models.ReportFilter{Course: "BTech", SiteID: "site-1"})
	assert.Contains(t, query, "s.course = $1")
	assert.Contains(t, query, "pa.site_id = $2 AND pa.start_date <= $4 AND pa.end_date >= $3")
	assert.Equal(t, []interface{}{"BTech", "site-1", span.From, span.To}, args)
}
