package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
)

type siteStoreStub struct {
	sites      map[string]*models.Site
	liveToday  bool
	history    bool
	created    []*models.Site
	updated    []*models.Site
	deleted    []string
	coverDates []time.Time
}

func newSiteStoreStub(sites ...models.Site) *siteStoreStub {
	s := &siteStoreStub{sites: map[string]*models.Site{}}
	for i := range sites {
		site := sites[i]
		s.sites[site.ID] = &site
	}
	return s
}

func (s *siteStoreStub) List(ctx context.Context, filter models.SiteFilter) ([]models.Site, int, error) {
	var out []models.Site
	for _, site := range s.sites {
		if filter.ActiveOnly && !site.Active {
			continue
		}
		out = append(out, *site)
	}
	return out, len(out), nil
}

func (s *siteStoreStub) FindByID(ctx context.Context, id string) (*models.Site, error) {
	site, ok := s.sites[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *site
	return &copied, nil
}

func (s *siteStoreStub) Create(ctx context.Context, site *models.Site) error {
	site.ID = "site-new"
	s.created = append(s.created, site)
	s.sites[site.ID] = site
	return nil
}

func (s *siteStoreStub) Update(ctx context.Context, site *models.Site) error {
	s.updated = append(s.updated, site)
	s.sites[site.ID] = site
	return nil
}

func (s *siteStoreStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	delete(s.sites, id)
	return nil
}

func (s *siteStoreStub) HasHistory(ctx context.Context, id string) (bool, error) {
	return s.history, nil
}

func (s *siteStoreStub) DeactivateUnlessAssigned(ctx context.Context, site *models.Site, date time.Time) (bool, error) {
	s.coverDates = append(s.coverDates, date)
	if s.liveToday {
		return false, nil
	}
	return true, s.Update(ctx, site)
}

func floatRef(v float64) *float64 { return &v }
func boolRef(v bool) *bool { return &v }

func validSiteRequest() dto.SiteRequest {
	return dto.SiteRequest{
		Name:             " Acme Works ",
		Latitude:         floatRef(12.9716),
		Longitude:        floatRef(77.5946),
		RadiusMeters:     floatRef(200),
		AllowedStartTime: "09:00",
		AllowedEndTime:   "18:00",
	}
}

func newTestGeofenceService(store *siteStoreStub) *GeofenceService {
	svc := NewGeofenceService(store, nil, nil, time.UTC, zap.NewNop())
	svc.now = func() time.Time { return monday10 }
	return svc
}

func TestGeofenceRegister(t *testing.T) {
	store := newSiteStoreStub()
	site, err := newTestGeofenceService(store).Register(context.Background(), validSiteRequest())
	require.NoError(t, err)
	assert.Equal(t, "Acme Works", site.Name)
	assert.True(t, site.Active)
	assert.Nil(t, site.DeactivatedAt)
	assert.Equal(t, models.ClockTime(9*3600), site.AllowedStartTime)
	assert.Len(t, store.created, 1)
}

func TestGeofenceRegisterValidation(t *testing.T) {
	svc := newTestGeofenceService(newSiteStoreStub())

	req := validSiteRequest()
	req.AllowedStartTime, req.AllowedEndTime = "18:00", "09:00"
	_, err := svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req = validSiteRequest()
	req.RadiusMeters = floatRef(0)
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req = validSiteRequest()
	req.AllowedEndTime = "25:00"
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	req = validSiteRequest()
	req.Latitude = floatRef(91)
	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestGeofenceDeactivateGuardedByLiveAssignment(t *testing.T) {
	store := newSiteStoreStub(testSite())
	store.liveToday = true
	svc := newTestGeofenceService(store)

	req := validSiteRequest()
	req.Active = boolRef(false)
	_, err := svc.Update(context.Background(), "site-1", req)
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Empty(t, store.updated)
	require.Len(t, store.coverDates, 1)
	assert.Equal(t, models.DateOf(monday10), store.coverDates[0])
}

func TestGeofenceDeactivateAndReactivate(t *testing.T) {
	store := newSiteStoreStub(testSite())
	svc := newTestGeofenceService(store)

	req := validSiteRequest()
	req.Active = boolRef(false)
	site, err := svc.Update(context.Background(), "site-1", req)
	require.NoError(t, err)
	assert.False(t, site.Active)
	require.NotNil(t, site.DeactivatedAt)
	assert.Equal(t, monday10, *site.DeactivatedAt)

	req.Active = boolRef(true)
	site, err = svc.Update(context.Background(), "site-1", req)
	require.NoError(t, err)
	assert.True(t, site.Active)
	assert.Nil(t, site.DeactivatedAt)
}

func TestGeofenceUpdateMissingSite(t *testing.T) {
	_, err := newTestGeofenceService(newSiteStoreStub()).Update(context.Background(), "nope", validSiteRequest())
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestGeofenceDelete(t *testing.T) {
	store := newSiteStoreStub(testSite())
	store.history = true
	svc := newTestGeofenceService(store)
	assert.ErrorIs(t, svc.Delete(context.Background(), "site-1"), appErrors.ErrConflict)

	store.history = false
	require.NoError(t, svc.Delete(context.Background(), "site-1"))
	assert.Equal(t, []string{"site-1"}, store.deleted)
}

func TestGeofenceListDefaultsPaging(t *testing.T) {
	_, page, err := newTestGeofenceService(newSiteStoreStub(testSite())).List(context.Background(), dto.SiteListQuery{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 50, page.PageSize)
	assert.Equal(t, 1, page.TotalCount)
}
