package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/placement-attendance-api/internal/dto"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/response"
)

type assignmentService interface {
	Get(ctx context.Context, id string) (*models.Assignment, error)
	List(ctx context.Context, studentID string, includeInactive bool) ([]models.Assignment, error)
	History(ctx context.Context, id string) ([]models.AssignmentHistory, error)
	ResolveActiveAssignment(ctx context.Context, studentID string, date time.Time) (*models.Assignment, error)
	Assign(ctx context.Context, req dto.AssignRequest, actorID string) (*models.Assignment, error)
	Update(ctx context.Context, id string, req dto.UpdateAssignmentRequest, actorID string) (*models.Assignment, error)
	Remove(ctx context.Context, id string, actorID string) error
}

// AssignmentHandler exposes student to site placement management.
type AssignmentHandler struct {
	service assignmentService
	now     func() time.Time
}

// NewAssignmentHandler builds a new handler.
func NewAssignmentHandler(service assignmentService) *AssignmentHandler {
	return &AssignmentHandler{service: service, now: time.Now}
}

// Assign godoc
// @Summary Assign a student to a site
// @Description Overlapping live assignments of the student are truncated or superseded.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param payload body dto.AssignRequest true "Assignment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /placement-attendance/assign [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	assignment, err := h.service.Assign(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Get godoc
// @Summary Get an assignment
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /placement-attendance/assignment/{id} [get]
func (h *AssignmentHandler) Get(c *gin.Context) {
	assignment, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Update godoc
// @Summary Edit an assignment schedule
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body dto.UpdateAssignmentRequest true "Schedule changes"
// @Success 200 {object} response.Envelope
// @Router /placement-attendance/assignment/{id} [put]
func (h *AssignmentHandler) Update(c *gin.Context) {
	var req dto.UpdateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid assignment payload"))
		return
	}
	assignment, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}

// Remove godoc
// @Summary Remove an assignment
// @Tags Assignments
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /placement-attendance/assignment/{id} [delete]
func (h *AssignmentHandler) Remove(c *gin.Context) {
	if err := h.service.Remove(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Assignment audit trail
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 200 {object} response.Envelope
// @Router /placement-attendance/assignment/{id}/history [get]
func (h *AssignmentHandler) History(c *gin.Context) {
	items, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// ListByStudent godoc
// @Summary List a student's assignments
// @Tags Assignments
// @Produce json
// @Param studentId query string true "Student ID"
// @Param includeInactive query bool false "Include superseded and removed"
// @Success 200 {object} response.Envelope
// @Router /placement-attendance/assignments [get]
func (h *AssignmentHandler) ListByStudent(c *gin.Context) {
	if c.Query("studentId") == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}
	items, err := h.service.List(c.Request.Context(), c.Query("studentId"), queryBool(c, "includeInactive"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Active godoc
// @Summary Resolve the assignment governing a date
// @Tags Assignments
// @Produce json
// @Param studentId query string true "Student ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /placement-attendance/assignments/active [get]
func (h *AssignmentHandler) Active(c *gin.Context) {
	if c.Query("studentId") == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId is required"))
		return
	}
	date, err := queryDate(c, "date", h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	assignment, err := h.service.ResolveActiveAssignment(c.Request.Context(), c.Query("studentId"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	if assignment == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "no active assignment"))
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil)
}
