package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/placement-attendance-api/internal/models"
)

func TestSessionRepositoryFindByStudentDateNone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_sessions WHERE student_id = $1 AND date = $2")).
		WithArgs("stu-1", time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)).
		WillReturnError(sql.ErrNoRows)

	session, err := repo.FindByStudentDate(context.Background(), "stu-1", time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionRepositoryInsertCheckIn(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, date) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sess-1"))

	session := &models.AttendanceSession{ID: "sess-1", StudentID: "stu-1", SiteID: "site-1", Date: time.Now(), CheckInAt: time.Now(), Status: models.SessionStatusPresent}
	inserted, err := repo.InsertCheckIn(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryInsertCheckInConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, date) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	inserted, err := repo.InsertCheckIn(context.Background(), &models.AttendanceSession{StudentID: "stu-1", Date: time.Now()})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestSessionRepositoryInsertCheckInUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (student_id, date) DO NOTHING")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "attendance_sessions_pkey"})

	inserted, err := repo.InsertCheckIn(context.Background(), &models.AttendanceSession{ID: "sess-1", StudentID: "stu-1", Date: time.Now()})
	require.NoError(t, err)
	assert.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryCompleteCheckOutLosesRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND check_out_at IS NULL")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.CompleteCheckOut(context.Background(), "sess-1", models.CheckOutRecord{At: time.Now(), IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE attendance_sessions SET status = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", models.SessionStatusRejected, "admin-1", time.Now())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
