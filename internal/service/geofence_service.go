package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/geo"
)

type siteStore interface {
	List(ctx context.Context, filter models.SiteFilter) ([]models.Site, int, error)
	FindByID(ctx context.Context, id string) (*models.Site, error)
	Create(ctx context.Context, site *models.Site) error
	Update(ctx context.Context, site *models.Site) error
	Delete(ctx context.Context, id string) error
	HasHistory(ctx context.Context, id string) (bool, error)
	DeactivateUnlessAssigned(ctx context.Context, site *models.Site, date time.Time) (bool, error)
}

// GeofenceService is the registry of placement sites.
//
// Deactivating a site that a live assignment covers today is refused with a
// conflict; sites deactivated otherwise are rejected by the verification engine.
type GeofenceService struct {
	repo      siteStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	now       func() time.Time
}

// NewGeofenceService wires the registry.
func NewGeofenceService(repo siteStore, cache *CacheService, validate *validator.Validate, location *time.Location, logger *zap.Logger) *GeofenceService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &GeofenceService{repo: repo, cache: cache, validator: validate, logger: logger, location: location, now: time.Now}
}

// List returns a page of sites ordered by name.
func (s *GeofenceService) List(ctx context.Context, query dto.SiteListQuery) ([]models.Site, *models.Pagination, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 || query.PageSize > 200 {
		query.PageSize = 50
	}
	sites, total, err := s.repo.List(ctx, models.SiteFilter{ActiveOnly: query.ActiveOnly, Page: query.Page, PageSize: query.PageSize})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sites")
	}
	return sites, &models.Pagination{Page: query.Page, PageSize: query.PageSize, TotalCount: total}, nil
}

// Get returns a site by id.
func (s *GeofenceService) Get(ctx context.Context, id string) (*models.Site, error) {
	site, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "site not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load site")
	}
	return site, nil
}

// Register validates and stores a new site.
func (s *GeofenceService) Register(ctx context.Context, req dto.SiteRequest) (*models.Site, error) {
	site, err := s.buildSite(req)
	if err != nil {
		return nil, err
	}
	site.Active = req.Active == nil || *req.Active
	if !site.Active {
		now := s.now().UTC()
		site.DeactivatedAt = &now
	}
	if err := s.repo.Create(ctx, site); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create site")
	}
	s.logger.Info("site registered", zap.String("site_id", site.ID), zap.String("name", site.Name))
	return site, nil
}

// Update validates and overwrites a site, guarding deactivation.
func (s *GeofenceService) Update(ctx context.Context, id string, req dto.SiteRequest) (*models.Site, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	site, err := s.buildSite(req)
	if err != nil {
		return nil, err
	}
	site.ID = existing.ID
	site.CreatedAt = existing.CreatedAt
	site.Active = existing.Active
	site.DeactivatedAt = existing.DeactivatedAt

	deactivating := false
	if req.Active != nil && *req.Active != existing.Active {
		if *req.Active {
			site.Active = true
			site.DeactivatedAt = nil
		} else {
			at := s.now().UTC()
			site.Active = false
			site.DeactivatedAt = &at
			deactivating = true
		}
	}

	if deactivating {
		ok, err := s.repo.DeactivateUnlessAssigned(ctx, site, models.DateOf(s.now().In(s.location)))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate site")
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrConflict, "site has an active assignment today; reassign students before deactivating")
		}
	} else if err := s.repo.Update(ctx, site); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update site")
	}
	s.cache.InvalidateReports(ctx)
	s.logger.Info("site updated", zap.String("site_id", site.ID), zap.Bool("active", site.Active))
	return site, nil
}

// Delete removes a site that was never used; used sites must be deactivated.
func (s *GeofenceService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	used, err := s.repo.HasHistory(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check site history")
	}
	if used {
		return appErrors.Clone(appErrors.ErrConflict, "site has attendance history, deactivate instead")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete site")
	}
	return nil
}

func (s *GeofenceService) buildSite(req dto.SiteRequest) (*models.Site, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid site payload")
	}
	center := geo.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if err := center.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	start, err := models.ParseClock(req.AllowedStartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	end, err := models.ParseClock(req.AllowedEndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "allowed start time must be before end time")
	}
	return &models.Site{
		Name:             strings.TrimSpace(req.Name),
		Address:          strings.TrimSpace(req.Address),
		Latitude:         center.Latitude,
		Longitude:        center.Longitude,
		RadiusMeters:     *req.RadiusMeters,
		AllowedStartTime: start,
		AllowedEndTime:   end,
	}, nil
}
