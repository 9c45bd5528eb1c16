package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/placement-attendance-api/internal/models"
	"github.com/noah-isme/placement-attendance-api/pkg/database"
)

const sessionColumns = `id, student_id, site_id, date, check_in_at, check_in_latitude, check_in_longitude,
check_in_accuracy_meters, check_in_distance_meters, check_in_ip, check_in_photo_path, check_out_at,
check_out_latitude, check_out_longitude, check_out_accuracy_meters, check_out_distance_meters, check_out_ip,
check_out_photo_path, status, is_suspicious, suspicious_reason, reviewed_by, reviewed_at, created_at, updated_at`

// SessionRepository persists attendance sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// FindByStudentDate returns the session of the student for date, or nil when none exists.
func (r *SessionRepository) FindByStudentDate(ctx context.Context, studentID string, date time.Time) (*models.AttendanceSession, error) {
	var session models.AttendanceSession
	query := "SELECT " + sessionColumns + " FROM attendance_sessions WHERE student_id = $1 AND date = $2"
	if err := r.db.GetContext(ctx, &session, query, studentID, models.DateOf(date)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session for student date: %w", err)
	}
	return &session, nil
}

// FindByID loads a session.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.AttendanceSession, error) {
	var session models.AttendanceSession
	if err := r.db.GetContext(ctx, &session, "SELECT "+sessionColumns+" FROM attendance_sessions WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// InsertCheckIn creates the day's session unless one already exists for the
// student and date. It reports false when the uniqueness guard rejected the row.
func (r *SessionRepository) InsertCheckIn(ctx context.Context, session *models.AttendanceSession) (bool, error) {
	now := time.Now().UTC()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.Date = models.DateOf(session.Date)
	session.CreatedAt, session.UpdatedAt = now, now

	const query = `INSERT INTO attendance_sessions (id, student_id, site_id, date, check_in_at, check_in_latitude,
check_in_longitude, check_in_accuracy_meters, check_in_distance_meters, check_in_ip, check_in_photo_path,
status, is_suspicious, suspicious_reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (student_id, date) DO NOTHING
RETURNING id`
	var id string
	err := r.db.QueryRowxContext(ctx, query,
		session.ID, session.StudentID, session.SiteID, session.Date, session.CheckInAt,
		session.CheckInLatitude, session.CheckInLongitude, session.CheckInAccuracy, session.CheckInDistance,
		session.CheckInIP, session.CheckInPhotoPath, session.Status, session.IsSuspicious, session.SuspiciousReason,
		session.CreatedAt, session.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || database.IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert session: %w", err)
	}
	return true, nil
}

// CompleteCheckOut records the checkout only while the session is still open.
// It reports false when another checkout already completed the session.
func (r *SessionRepository) CompleteCheckOut(ctx context.Context, id string, record models.CheckOutRecord) (bool, error) {
	const query = `UPDATE attendance_sessions SET check_out_at = $2, check_out_latitude = $3, check_out_longitude = $4,
check_out_accuracy_meters = $5, check_out_distance_meters = $6, check_out_ip = $7, check_out_photo_path = $8,
is_suspicious = $9, suspicious_reason = $10, updated_at = $11
WHERE id = $1 AND check_out_at IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, record.At, record.Latitude, record.Longitude, record.Accuracy,
		record.Distance, record.IP, record.PhotoPath, record.IsSuspicious, record.SuspiciousReason, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("complete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete session rows: %w", err)
	}
	return affected == 1, nil
}

// UpdateStatus records an administrative review of a session.
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status models.SessionStatus, reviewerID string, at time.Time) error {
	const query = `UPDATE attendance_sessions SET status = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status, reviewerID, at)
	if err != nil {
		return fmt.Errorf("review session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("review session rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
