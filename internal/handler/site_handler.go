package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/response"
)

type siteService interface {
	List(ctx context.Context, query dto.SiteListQuery) ([]models.Site, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Site, error)
	Register(ctx context.Context, req dto.SiteRequest) (*models.Site, error)
	Update(ctx context.Context, id string, req dto.SiteRequest) (*models.Site, error)
	Delete(ctx context.Context, id string) error
}

// SiteHandler exposes the geofence registry.
type SiteHandler struct {
	service siteService
}

// NewSiteHandler builds a new handler.
func NewSiteHandler(service siteService) *SiteHandler {
	return &SiteHandler{service: service}
}

// List godoc
// @Summary List placement sites
// @Tags Sites
// @Produce json
// @Param active query bool false "Only active sites"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /placement-attendance/sites [get]
func (h *SiteHandler) List(c *gin.Context) {
	sites, pagination, err := h.service.List(c.Request.Context(), dto.SiteListQuery{
		ActiveOnly: queryBool(c, "active"),
		Page:       queryInt(c, "page", 1),
		PageSize:   queryInt(c, "page_size", 50),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sites, pagination)
}

// Get godoc
// @Summary Get a placement site
// @Tags Sites
// @Produce json
// @Param id path string true "Site ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /placement-attendance/sites/{id} [get]
func (h *SiteHandler) Get(c *gin.Context) {
	site, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, site, nil)
}

// Create godoc
// @Summary Register a placement site
// @Tags Sites
// @Accept json
// @Produce json
// @Param payload body dto.SiteRequest true "Site payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /placement-attendance/sites [post]
func (h *SiteHandler) Create(c *gin.Context) {
	var req dto.SiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid site payload"))
		return
	}
	site, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, site)
}

// Update godoc
// @Summary Update or deactivate a placement site
// @Tags Sites
// @Accept json
// @Produce json
// @Param id path string true "Site ID"
// @Param payload body dto.SiteRequest true "Site payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /placement-attendance/sites/{id} [put]
func (h *SiteHandler) Update(c *gin.Context) {
	var req dto.SiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid site payload"))
		return
	}
	site, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, site, nil)
}

// Delete godoc
// @Summary Delete an unused placement site
// @Tags Sites
// @Param id path string true "Site ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /placement-attendance/sites/{id} [delete]
func (h *SiteHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListActive godoc
// @Summary List active placement sites
// @Tags Sites
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /placement-attendance/list [get]
func (h *SiteHandler) ListActive(c *gin.Context) {
	sites, _, err := h.service.List(c.Request.Context(), dto.SiteListQuery{ActiveOnly: true, Page: 1, PageSize: 200})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sites, nil)
}
