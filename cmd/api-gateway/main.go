package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/placement-attendance-api/api/swagger"
	"github.com/noah-isme/placement-attendance-api/internal/handler"
	"github.com/noah-isme/placement-attendance-api/internal/middleware"
	"github.com/noah-isme/placement-attendance-api/internal/repository"
	"github.com/noah-isme/placement-attendance-api/internal/service"
	"github.com/noah-isme/placement-attendance-api/pkg/cache"
	"github.com/noah-isme/placement-attendance-api/pkg/config"
	"github.com/noah-isme/placement-attendance-api/pkg/database"
	"github.com/noah-isme/placement-attendance-api/pkg/holiday"
	"github.com/noah-isme/placement-attendance-api/pkg/jobs"
	"github.com/noah-isme/placement-attendance-api/pkg/logger"
	"github.com/noah-isme/placement-attendance-api/pkg/photo"
	"github.com/noah-isme/placement-attendance-api/pkg/storage"
)

// @title Placement Attendance API
// @version 1.0.0
// @description Geofenced, time-windowed attendance for students on placement.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	location, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		return fmt.Errorf("attendance timezone: %w", err)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, continuing without cache and rate limiting", zap.Error(err))
	}

	calendar, err := holiday.Load(cfg.Holidays.File)
	if err != nil {
		return fmt.Errorf("holiday calendar: %w", err)
	}
	logr.Info("holiday calendar loaded", zap.String("file", cfg.Holidays.File), zap.Int("entries", calendar.Len()))

	photoStore, err := storage.NewLocalStorage(cfg.Photos.StorageDir)
	if err != nil {
		return fmt.Errorf("photo storage: %w", err)
	}

	engine, err := service.NewVerificationEngine(service.Thresholds{
		PrecisionThresholdMeters: cfg.Attendance.PrecisionThresholdMeters,
		SuspiciousAccuracyMeters: cfg.Attendance.SuspiciousAccuracyMeters,
		MaxTravelSpeedMps:        cfg.Attendance.MaxTravelSpeedMps,
		MinTravelDistanceMeters:  cfg.Attendance.MinTravelDistanceMeters,
	}, location)
	if err != nil {
		return fmt.Errorf("verification thresholds: %w", err)
	}

	siteRepo := repository.NewSiteRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := service.NewValidator()
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
	})

	photoSvc := service.NewPhotoService(
		photo.NewProcessor(cfg.Photos.MaxBytes, cfg.Photos.MaxDimension),
		photoStore,
		storage.NewSignedURLSigner(cfg.Photos.SignedURLSecret, cfg.Photos.SignedURLTTL),
		metricsSvc,
		service.PhotoServiceConfig{ThumbnailSize: cfg.Photos.ThumbnailSize, LinkPrefix: cfg.APIPrefix + "/placement-attendance/photos"},
		logr,
	)
	thumbnails := jobs.New[string]("photo-thumbnails", photoSvc.ProcessThumbnail, jobs.Config{
		Workers:    cfg.Photos.Workers,
		MaxRetries: cfg.Photos.WorkerRetries,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	photoSvc.UseQueue(thumbnails)
	thumbnails.Start(ctx)
	defer thumbnails.Stop()

	geofenceSvc := service.NewGeofenceService(siteRepo, cacheSvc, validate, location, logr)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, siteRepo, studentRepo, cacheSvc, validate, logr)
	attendanceSvc := service.NewAttendanceService(sessionRepo, assignmentSvc, siteRepo, engine, photoSvc, cacheSvc, metricsSvc, validate, logr)
	reportSvc := service.NewReportService(reportRepo, calendar, photoSvc, cacheSvc, metricsSvc, validate, location, service.ReportServiceConfig{
		MaxRangeDays: cfg.Reports.MaxRangeDays,
		CacheTTL:     cfg.Reports.CacheTTL,
	}, logr)
	exportSvc := service.NewExportService(reportSvc, logr)

	handlers := routeHandlers{
		sites:       handler.NewSiteHandler(geofenceSvc),
		assignments: handler.NewAssignmentHandler(assignmentSvc),
		attendance:  handler.NewAttendanceHandler(attendanceSvc),
		reports:     handler.NewReportHandler(reportSvc, exportSvc),
		photos:      handler.NewPhotoHandler(photoSvc),
		metrics: handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    cacheRepo.Ping,
		}),
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r, err := newRouter(cfg, logr, metricsSvc)
	if err != nil {
		return err
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	var limiter middleware.Counter
	if cfg.RateLimit.Enabled && redisClient != nil {
		limiter = cacheRepo
	}
	registerRoutes(r, cfg, logr, authSvc, limiter, handlers)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down", zap.Int("pending_thumbnails", thumbnails.Pending()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
