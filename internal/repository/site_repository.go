package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/placement-attendance-api/internal/models"
)

const siteColumns = `id, name, address, latitude, longitude, radius_meters, allowed_start_time, allowed_end_time, active, deactivated_at, created_at, updated_at`

const siteUpdateQuery = `UPDATE placement_sites SET name = :name, address = :address, latitude = :latitude, longitude = :longitude,
radius_meters = :radius_meters, allowed_start_time = :allowed_start_time, allowed_end_time = :allowed_end_time,
active = :active, deactivated_at = :deactivated_at, updated_at = :updated_at WHERE id = :id`

// SiteRepository persists placement sites.
type SiteRepository struct {
	db *sqlx.DB
}

// NewSiteRepository constructs the repository.
func NewSiteRepository(db *sqlx.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

// List returns sites ordered by name then id along with the total count.
func (r *SiteRepository) List(ctx context.Context, filter models.SiteFilter) ([]models.Site, int, error) {
	where := ""
	if filter.ActiveOnly {
		where = " WHERE active = TRUE"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM placement_sites"+where); err != nil {
		return nil, 0, fmt.Errorf("count sites: %w", err)
	}

	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	query := fmt.Sprintf("SELECT %s FROM placement_sites%s ORDER BY name ASC, id ASC LIMIT $1 OFFSET $2", siteColumns, where)

	var sites []models.Site
	if err := r.db.SelectContext(ctx, &sites, query, size, (page-1)*size); err != nil {
		return nil, 0, fmt.Errorf("list sites: %w", err)
	}
	return sites, total, nil
}

// FindByID loads a site.
func (r *SiteRepository) FindByID(ctx context.Context, id string) (*models.Site, error) {
	var site models.Site
	if err := r.db.GetContext(ctx, &site, "SELECT "+siteColumns+" FROM placement_sites WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return &site, nil
}

// Create inserts a new site, assigning id and timestamps.
func (r *SiteRepository) Create(ctx context.Context, site *models.Site) error {
	now := time.Now().UTC()
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	site.CreatedAt, site.UpdatedAt = now, now
	const query = `INSERT INTO placement_sites (id, name, address, latitude, longitude, radius_meters, allowed_start_time, allowed_end_time, active, deactivated_at, created_at, updated_at)
VALUES (:id, :name, :address, :latitude, :longitude, :radius_meters, :allowed_start_time, :allowed_end_time, :active, :deactivated_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, site); err != nil {
		return fmt.Errorf("insert site: %w", err)
	}
	return nil
}

// Update overwrites the mutable columns of a site.
func (r *SiteRepository) Update(ctx context.Context, site *models.Site) error {
	site.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, siteUpdateQuery, site); err != nil {
		return fmt.Errorf("update site: %w", err)
	}
	return nil
}

// Delete removes a site row.
func (r *SiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM placement_sites WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete site: %w", err)
	}
	return nil
}

// HasHistory reports whether any session or assignment references the site.
func (r *SiteRepository) HasHistory(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM attendance_sessions WHERE site_id = $1)
	OR EXISTS (SELECT 1 FROM placement_assignments WHERE site_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("check site history: %w", err)
	}
	return exists, nil
}

// DeactivateUnlessAssigned writes site, which carries active=false, unless a
// live assignment covers date; it then reports false and leaves the row
// unchanged. The site row stays locked from the check through the write.
func (r *SiteRepository) DeactivateUnlessAssigned(ctx context.Context, site *models.Site, date time.Time) (ok bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin site transaction: %w", err)
	}
	defer func() {
		if err != nil || !ok {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT id FROM placement_sites WHERE id = $1 FOR UPDATE", site.ID); err != nil {
		return false, fmt.Errorf("lock site: %w", err)
	}
	const coverQuery = `SELECT EXISTS (
	SELECT 1 FROM placement_assignments
	WHERE site_id = $1 AND removed_at IS NULL AND superseded_at IS NULL
		AND start_date <= $2 AND end_date >= $2
)`
	var covered bool
	if err = tx.GetContext(ctx, &covered, coverQuery, site.ID, models.DateOf(date)); err != nil {
		return false, fmt.Errorf("check site assignments: %w", err)
	}
	if covered {
		return false, nil
	}

	site.UpdatedAt = time.Now().UTC()
	if _, err = tx.NamedExecContext(ctx, siteUpdateQuery, site); err != nil {
		return false, fmt.Errorf("deactivate site: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit site transaction: %w", err)
	}
	return true, nil
}
