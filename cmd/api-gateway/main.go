package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/lms-coursework-api/api/swagger"
	"github.com/noah-isme/lms-coursework-api/internal/handler"
	"github.com/noah-isme/lms-coursework-api/internal/middleware"
	"github.com/noah-isme/lms-coursework-api/internal/models"
	"github.com/noah-isme/lms-coursework-api/internal/repository"
	"github.com/noah-isme/lms-coursework-api/internal/service"
	"github.com/noah-isme/lms-coursework-api/pkg/cache"
	"github.com/noah-isme/lms-coursework-api/pkg/config"
	"github.com/noah-isme/lms-coursework-api/pkg/database"
	"github.com/noah-isme/lms-coursework-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-coursework-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-coursework-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-coursework-api/pkg/storage"
)

// @title LMS Coursework API
// @version 1.0.0
// @description Assignments, submissions, grading and progress tracking
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare upload storage", "error", err)
	}
	uploadSigner := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	statsRepo := repository.NewStatsRepository(db)
	tokenRepo := repository.NewTokenRepository(redisClient)

	metricsSvc := service.NewMetricsService()
	authSvc := service.NewAuthService(userRepo, tokenRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "lms-coursework-api",
	})
	assignmentSvc := service.NewAssignmentService(assignmentRepo, courseRepo, enrollmentRepo, validate, logr)
	submissionSvc := service.NewSubmissionService(submissionRepo, assignmentRepo, courseRepo, enrollmentRepo, validate, logr)
	progressSvc := service.NewProgressService(statsRepo, assignmentRepo, courseRepo, enrollmentRepo, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	submissionHandler := handler.NewSubmissionHandler(submissionSvc, metricsSvc)
	progressHandler := handler.NewProgressHandler(progressSvc)
	uploadHandler := handler.NewUploadHandler(uploadStore, uploadSigner, cfg.Uploads.MaxFileSizeBytes, logr)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	var exportHandler *handler.ExportHandler
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportSvc := service.NewExportService(statsRepo, courseRepo, exportStore, exportSigner, validate, logr, service.ExportConfig{
			WorkerConcurrency: cfg.Exports.WorkerConcurrency,
			WorkerRetries:     cfg.Exports.WorkerRetries,
			CleanupInterval:   cfg.Exports.CleanupInterval,
			ResultTTL:         cfg.Exports.ResultTTL,
		})
		exportSvc.Start(context.Background())
		defer exportSvc.Stop()
		exportHandler = handler.NewExportHandler(exportSvc, metricsSvc)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	// Login audits inside the service, where the user is known after
	// credential verification. The route-level Audit middleware would only
	// produce an anonymous duplicate row here.
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), middleware.Audit(userRepo, models.AuditActionLogout, "auth"), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staffOnly := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	assignments := protected.Group("/assignments")
	assignments.GET("", assignmentHandler.List)
	assignments.GET("/:id", assignmentHandler.Get)
	assignments.POST("", staffOnly, middleware.Audit(userRepo, models.AuditActionAssignmentCreate, "assignment"), assignmentHandler.Create)
	assignments.PUT("/:id", staffOnly, middleware.Audit(userRepo, models.AuditActionAssignmentUpdate, "assignment"), assignmentHandler.Update)
	assignments.POST("/:id/publish", staffOnly, middleware.Audit(userRepo, models.AuditActionAssignmentUpdate, "assignment"), assignmentHandler.Publish)
	assignments.POST("/:id/archive", staffOnly, middleware.Audit(userRepo, models.AuditActionAssignmentUpdate, "assignment"), assignmentHandler.Archive)
	assignments.DELETE("/:id", staffOnly, middleware.Audit(userRepo, models.AuditActionAssignmentDelete, "assignment"), assignmentHandler.Delete)
	assignments.POST("/:id/submissions", middleware.Audit(userRepo, models.AuditActionSubmissionCreate, "submission"), submissionHandler.Submit)
	assignments.GET("/:id/stats", staffOnly, progressHandler.AssignmentStats)

	submissions := protected.Group("/submissions")
	submissions.GET("", submissionHandler.List)
	submissions.GET("/:id", submissionHandler.Get)
	submissions.PUT("/:id", middleware.Audit(userRepo, models.AuditActionSubmissionUpdate, "submission"), submissionHandler.UpdateWork)
	submissions.POST("/:id/grade", staffOnly, middleware.Audit(userRepo, models.AuditActionSubmissionGrade, "submission"), submissionHandler.Grade)
	submissions.POST("/:id/return", staffOnly, middleware.Audit(userRepo, models.AuditActionSubmissionReturn, "submission"), submissionHandler.Return)
	submissions.POST("/record-grade", staffOnly, middleware.Audit(userRepo, models.AuditActionSubmissionGrade, "submission"), submissionHandler.RecordGrade)
	submissions.DELETE("/:id", middleware.Audit(userRepo, models.AuditActionSubmissionDelete, "submission"), submissionHandler.Delete)

	courses := protected.Group("/courses")
	courses.GET("/:id/stats", staffOnly, progressHandler.CourseStats)
	courses.GET("/:id/progress", staffOnly, progressHandler.CourseProgress)
	courses.GET("/:id/roster", staffOnly, progressHandler.CourseRoster)

	protected.GET("/me/progress", progressHandler.MyProgress)

	protected.GET("/system/metrics", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Snapshot)

	uploads := protected.Group("/uploads")
	uploads.POST("", uploadHandler.Upload)
	uploads.GET("/download", uploadHandler.Download)

	if exportHandler != nil {
		exports := protected.Group("/exports")
		exports.POST("/gradebook", staffOnly, middleware.Audit(userRepo, models.AuditActionGradebookExport, "export"), exportHandler.Enqueue)
		exports.GET("/:id", exportHandler.Status)
		exports.GET("/download", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
