package main

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/internal/handler"
	"github.com/noah-isme/placement-attendance-api/internal/middleware"
	"github.com/noah-isme/placement-attendance-api/internal/models"
	"github.com/noah-isme/placement-attendance-api/internal/service"
	"github.com/noah-isme/placement-attendance-api/pkg/config"
	"github.com/noah-isme/placement-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/placement-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/placement-attendance-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	sites       *handler.SiteHandler
	assignments *handler.AssignmentHandler
	attendance  *handler.AttendanceHandler
	reports     *handler.ReportHandler
	photos      *handler.PhotoHandler
	metrics     *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())
	return r, nil
}

func registerRoutes(r *gin.Engine, cfg *config.Config, logr *zap.Logger, auth middleware.TokenValidator, limiter middleware.Counter, h routeHandlers) {
	r.GET("/health", h.metrics.Health)
	r.GET("/ready", h.metrics.Ready)
	r.GET("/metrics", h.metrics.Prometheus)

	api := r.Group(cfg.APIPrefix + "/placement-attendance")
	api.GET("/photos/:token", h.photos.Download)

	secured := api.Group("", middleware.JWT(auth))
	secured.GET("/list", h.sites.ListActive)
	secured.GET("/status", h.attendance.Status)

	student := secured.Group("", middleware.RequireRoles(models.RoleStudent))
	rateLimit := middleware.RateLimit(limiter, "mark", cfg.RateLimit.PerMinute, time.Minute, logr)
	student.POST("/mark-attendance", rateLimit, h.attendance.Mark)
	student.POST("/check-in", rateLimit, h.attendance.CheckIn)
	student.POST("/check-out", rateLimit, h.attendance.CheckOut)

	admin := secured.Group("", middleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin))
	admin.GET("/sites", h.sites.List)
	admin.GET("/sites/:id", h.sites.Get)
	admin.POST("/sites", middleware.Audit(logr, "create", "site"), h.sites.Create)
	admin.PUT("/sites/:id", middleware.Audit(logr, "update", "site"), h.sites.Update)
	admin.DELETE("/sites/:id", middleware.Audit(logr, "delete", "site"), h.sites.Delete)

	admin.POST("/assign", middleware.Audit(logr, "assign", "assignment"), h.assignments.Assign)
	admin.GET("/assignment/:id", h.assignments.Get)
	admin.PUT("/assignment/:id", middleware.Audit(logr, "update", "assignment"), h.assignments.Update)
	admin.DELETE("/assignment/:id", middleware.Audit(logr, "remove", "assignment"), h.assignments.Remove)
	admin.GET("/assignment/:id/history", h.assignments.History)
	admin.GET("/assignments", h.assignments.ListByStudent)
	admin.GET("/assignments/active", h.assignments.Active)

	admin.PATCH("/sessions/:id/review", middleware.Audit(logr, "review", "session"), h.attendance.Review)
	admin.GET("/report", h.reports.Report)
	admin.GET("/metrics/summary", h.metrics.Summary)
}
