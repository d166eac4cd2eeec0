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

	_ "github.com/noah-isme/course-management-api/api/swagger"
	"github.com/noah-isme/course-management-api/internal/handler"
	"github.com/noah-isme/course-management-api/internal/middleware"
	"github.com/noah-isme/course-management-api/internal/repository"
	"github.com/noah-isme/course-management-api/internal/service"
	"github.com/noah-isme/course-management-api/pkg/cache"
	"github.com/noah-isme/course-management-api/pkg/config"
	"github.com/noah-isme/course-management-api/pkg/database"
	"github.com/noah-isme/course-management-api/pkg/events"
	"github.com/noah-isme/course-management-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/course-management-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/course-management-api/pkg/middleware/requestid"
	"github.com/noah-isme/course-management-api/pkg/validation"
)

// @title Course Management API
// @version 1.0.0
// @description Courses, students and enrollments with seat-capacity accounting
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const serviceName = "Course Management API"

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			logr.Fatal("database migration failed", zap.Error(err))
		}
	}

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			redisRepo := repository.NewCacheRepository(client)
			defer redisRepo.Close() //nolint:errcheck
			cacheRepo = redisRepo
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.StatsTTL, logr, cfg.Cache.Enabled)

	var publisher service.ActivityPublisher
	if cfg.Kafka.Enabled {
		kafkaPublisher, err := events.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			logr.Warn("kafka publisher disabled", zap.Error(err))
		} else {
			defer kafkaPublisher.Close() //nolint:errcheck
			publisher = kafkaPublisher
		}
	}

	activitySvc := service.NewActivityService(repository.NewActivityRepository(db), publisher, service.ActivityConfig{
		Workers:    cfg.Activity.Workers,
		BufferSize: cfg.Activity.BufferSize,
		MaxRetries: cfg.Activity.MaxRetries,
		RetryDelay: cfg.Activity.RetryDelay,
	}, metrics, logr)
	// Stop drains after the server has finished its in-flight requests.
	activitySvc.Start(context.Background())
	defer activitySvc.Stop()

	validate := validation.Default()
	courseRepo := repository.NewCourseRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)

	courseSvc := service.NewCourseService(courseRepo, validate, cacheSvc, activitySvc, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, cacheSvc, activitySvc, logr)
	enrollmentSvc := service.NewEnrollmentService(service.EnrollmentServiceParams{
		Repo:      enrollmentRepo,
		Students:  studentRepo,
		Courses:   courseRepo,
		Validator: validate,
		Cache:     cacheSvc,
		Activity:  activitySvc,
		Metrics:   metrics,
		Logger:    logr,
	})
	exportSvc := service.NewExportService(enrollmentRepo, validate, logr)
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Courses:     courseSvc,
		Students:    studentSvc,
		Enrollments: enrollmentSvc,
		Activity:    activitySvc,
		Cache:       cacheSvc,
		Logger:      logr,
		Config:      service.DashboardServiceConfig{CacheTTL: cfg.Cache.DashboardTTL},
	})
	authSvc, err := service.NewAuthService(service.AuthConfig{
		AdminUsername: cfg.Auth.AdminUsername,
		AdminPassword: cfg.Auth.AdminPassword,
		TokenSecret:   cfg.JWT.Secret,
		TokenExpiry:   cfg.JWT.Expiration,
		Issuer:        cfg.JWT.Issuer,
	}, validate, activitySvc, logr)
	if err != nil {
		logr.Fatal("auth service init failed", zap.Error(err))
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Courses:     handler.NewCourseHandler(courseSvc),
		Students:    handler.NewStudentHandler(studentSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc, exportSvc),
		Activity:    handler.NewActivityHandler(activitySvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc),
		Metrics:     handler.NewMetricsHandler(metrics, db, serviceName),
	}, handler.RouteOptions{
		Prefix:       cfg.APIPrefix,
		AuthRequired: cfg.Auth.Required,
		Tokens:       authSvc,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "auth_required", cfg.Auth.Required)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
