package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/middleware"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	"github.com/noah-isme/placement-attendance-api/internal/service"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/response"
)

type reportService interface {
	ParseQuery(q dto.ReportQuery) (service.ReportParams, error)
	Aggregate(ctx context.Context, params service.ReportParams) (*models.ReportSummary, error)
	Detail(ctx context.Context, params service.ReportParams) (*models.ReportDetail, error)
}

type exportService interface {
	Export(ctx context.Context, params service.ReportParams) (*service.ExportResult, error)
}

// ReportHandler exposes attendance reports.
type ReportHandler struct {
	reports reportService
	exports exportService
}

// NewReportHandler constructs handler.
func NewReportHandler(reports reportService, exports exportService) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports}
}

// Report godoc
// @Summary Attendance report
// @Description Grouped totals per batch, course, branch, year and semester, or per student detail. csv and pdf formats download a file.
// @Tags Reports
// @Produce json
// @Produce text/csv
// @Produce application/pdf
// @Param from query string true "From (YYYY-MM-DD)"
// @Param to query string true "To (YYYY-MM-DD)"
// @Param mode query string false "grouped or detail"
// @Param format query string false "json, csv or pdf"
// @Param batch query string false "Batch"
// @Param course query string false "Course"
// @Param branch query string false "Branch"
// @Param year query int false "Year"
// @Param semester query int false "Semester"
// @Param siteId query string false "Site ID"
// @Param studentId query string false "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /placement-attendance/report [get]
func (h *ReportHandler) Report(c *gin.Context) {
	var query dto.ReportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid report query"))
		return
	}
	params, err := h.reports.ParseQuery(query)
	if err != nil {
		response.Error(c, err)
		return
	}
	if params.Format != "json" {
		h.download(c, params)
		return
	}

	if params.Mode == service.ReportModeDetail {
		detail, err := h.reports.Detail(c.Request.Context(), params)
		if err != nil {
			response.Error(c, err)
			return
		}
		middleware.SetCacheHit(c, detail.Cached)
		response.JSON(c, http.StatusOK, detail, nil, middleware.ExtractMeta(c))
		return
	}
	summary, err := h.reports.Aggregate(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, summary.Cached)
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

func (h *ReportHandler) download(c *gin.Context, params service.ReportParams) {
	file, err := h.exports.Export(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
