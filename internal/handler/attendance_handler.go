package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	"github.com/noah-isme/placement-attendance-api/internal/service"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/response"
)

type attendanceService interface {
	ReportFromRequest(req dto.MarkAttendanceRequest, clientIP string) (service.AttendanceReport, error)
	Today() time.Time
	Mark(ctx context.Context, studentID string, report service.AttendanceReport) (*service.MarkResult, error)
	CheckIn(ctx context.Context, studentID string, date time.Time, report service.AttendanceReport) (*service.MarkResult, error)
	CheckOut(ctx context.Context, studentID string, date time.Time, report service.AttendanceReport) (*service.MarkResult, error)
	Status(ctx context.Context, studentID string, date time.Time) (*service.StatusResult, error)
	Review(ctx context.Context, sessionID string, req dto.ReviewRequest, reviewerID string) (*models.AttendanceSession, error)
}

type transition func(ctx context.Context, studentID string, date time.Time, report service.AttendanceReport) (*service.MarkResult, error)

// AttendanceHandler serves student check-in and check-out.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler builds a new handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// Mark godoc
// @Summary Check in or check out
// @Description Checks in when the day has not started, otherwise checks out. Answers 428 with requiresPhoto when the location is too imprecise.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkAttendanceRequest true "Device report"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /placement-attendance/mark-attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	studentID, report, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.service.Mark(c.Request.Context(), studentID, report)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, result)
}

// CheckIn godoc
// @Summary Check in explicitly
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkAttendanceRequest true "Device report"
// @Success 201 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /placement-attendance/check-in [post]
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	h.explicit(c, h.service.CheckIn)
}

// CheckOut godoc
// @Summary Check out explicitly
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.MarkAttendanceRequest true "Device report"
// @Success 200 {object} response.Envelope
// @Failure 428 {object} response.Envelope
// @Router /placement-attendance/check-out [post]
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	h.explicit(c, h.service.CheckOut)
}

func (h *AttendanceHandler) explicit(c *gin.Context, fn transition) {
	studentID, report, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := fn(c.Request.Context(), studentID, h.service.Today(), report)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.respond(c, result)
}

// Status godoc
// @Summary Today's attendance state
// @Description Administrators may inspect a student through studentId.
// @Tags Attendance
// @Produce json
// @Param studentId query string false "Student ID (administrators only)"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /placement-attendance/status [get]
func (h *AttendanceHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	studentID := claims.UserID
	if requested := strings.TrimSpace(c.Query("studentId")); requested != "" && requested != claims.UserID {
		if !claims.Role.IsAdministrative() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "cannot inspect another student"))
			return
		}
		studentID = requested
	}
	date, err := queryDate(c, "date", h.service.Today())
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.service.Status(c.Request.Context(), studentID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload := dto.StatusResponse{Status: result.State}
	if result.Session != nil {
		if claims.Role.IsAdministrative() {
			payload.Data = result.Session
		} else {
			payload.Data = dto.NewSessionView(result.Session)
		}
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// Review godoc
// @Summary Override a session status after review
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.ReviewRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /placement-attendance/sessions/{id}/review [patch]
func (h *AttendanceHandler) Review(c *gin.Context) {
	var req dto.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}
	session, err := h.service.Review(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

func (h *AttendanceHandler) bind(c *gin.Context) (string, service.AttendanceReport, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", service.AttendanceReport{}, false
	}
	var req dto.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance report"))
		return "", service.AttendanceReport{}, false
	}
	report, err := h.service.ReportFromRequest(req, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return "", service.AttendanceReport{}, false
	}
	return claims.UserID, report, true
}

func (h *AttendanceHandler) respond(c *gin.Context, result *service.MarkResult) {
	if result.RequiresPhoto {
		response.PhotoRequired(c, appErrors.ErrPhotoRequired, dto.MarkAttendanceResponse{
			Status:  "pending",
			Action:  result.Action,
			Message: result.Decision.Message,
		})
		return
	}
	status := http.StatusOK
	message := "checked out"
	if result.Action == service.ActionCheckIn {
		status = http.StatusCreated
		message = "checked in"
	}
	response.JSON(c, status, dto.MarkAttendanceResponse{
		Status:  "success",
		Action:  result.Action,
		Message: message,
		Session: dto.NewSessionView(result.Session),
	}, nil)
}
