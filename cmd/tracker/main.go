package main

import (
	"context"
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

	_ "github.com/medwatch/emias-tracker-api/api/swagger"
	"github.com/medwatch/emias-tracker-api/internal/emias"
	"github.com/medwatch/emias-tracker-api/internal/handler"
	"github.com/medwatch/emias-tracker-api/internal/middleware"
	"github.com/medwatch/emias-tracker-api/internal/repository"
	"github.com/medwatch/emias-tracker-api/internal/service"
	"github.com/medwatch/emias-tracker-api/pkg/cache"
	"github.com/medwatch/emias-tracker-api/pkg/config"
	"github.com/medwatch/emias-tracker-api/pkg/database"
	"github.com/medwatch/emias-tracker-api/pkg/jobs"
	"github.com/medwatch/emias-tracker-api/pkg/logger"
	corsmiddleware "github.com/medwatch/emias-tracker-api/pkg/middleware/cors"
	reqidmiddleware "github.com/medwatch/emias-tracker-api/pkg/middleware/requestid"
	"github.com/medwatch/emias-tracker-api/pkg/storage"
)

// @title EMIAS Tracker API
// @version 0.1.0
// @description Slot tracking and auto-booking service for the EMIAS appointment portal
// @BasePath /
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	profileRepo := repository.NewProfileRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	trackingRepo := repository.NewTrackingRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	portal := emias.NewClient(emias.Config{
		BaseURL:   cfg.Portal.BaseURL,
		Timeout:   cfg.Portal.Timeout,
		UserAgent: cfg.Portal.UserAgent,
	}, logr)

	validate := validator.New()
	aliases := service.NewSpecialityAliases(cfg.Booking.AliasGroups)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, 5*time.Minute, logr, true)
	authSvc := service.NewAuthService(auditRepo, validate, logr, service.AuthConfig{
		Username:     cfg.Admin.Username,
		PasswordHash: cfg.Admin.PasswordHash,
		TokenSecret:  cfg.JWT.Secret,
		TokenExpiry:  cfg.JWT.Expiration,
		Issuer:       "emias-tracker-api",
	})
	auditSvc := service.NewAuditService(auditRepo, cacheSvc, cfg.Audit.CacheTTL, logr)
	registrySvc := service.NewRegistryService(profileRepo, resourceRepo, logr)
	bookingSvc := service.NewBookingService(portal, profileRepo, resourceRepo, linkRepo, auditRepo, metricsSvc, logr, service.BookingConfig{
		AliasGroups:       cfg.Booking.AliasGroups,
		ReferralWhitelist: cfg.Booking.ReferralWhitelist,
	})
	trackingSvc := service.NewTrackingService(trackingRepo, snapshotRepo, profileRepo, resourceRepo, linkRepo, portal, auditRepo, aliases, logr)

	var notifier service.Notifier = service.NopNotifier{}
	if cfg.Notify.Enabled {
		notifier = service.NewTelegramNotifier(service.TelegramNotifierConfig{
			BotToken: cfg.Notify.BotToken,
			APIBase:  cfg.Notify.APIBase,
			Timeout:  10 * time.Second,
		}, logr)
	}
	cycleSvc := service.NewCycleService(trackingRepo, snapshotRepo, profileRepo, resourceRepo, linkRepo, portal, bookingSvc, notifier, metricsSvc, aliases, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	authHandler := handler.NewAuthHandler(authSvc)
	trackingHandler := handler.NewTrackingHandler(trackingSvc, cycleSvc)
	bookingHandler := handler.NewBookingHandler(bookingSvc)
	auditHandler := handler.NewAuditHandler(auditSvc)
	registryHandler := handler.NewRegistryHandler(registrySvc)

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))
	protected.GET("/auth/me", authHandler.Me)

	protected.GET("/tracking", trackingHandler.List)
	protected.POST("/tracking", trackingHandler.Start)
	protected.POST("/tracking/run-cycle", trackingHandler.RunCycle)
	protected.DELETE("/tracking/:resourceId", trackingHandler.Stop)
	protected.PATCH("/tracking/:resourceId/active", trackingHandler.SetActive)
	protected.PATCH("/tracking/:resourceId/auto-booking", trackingHandler.SetAutoBooking)
	protected.PUT("/tracking/:resourceId/rules", trackingHandler.UpdateRules)
	protected.GET("/tracking/:resourceId/slots", trackingHandler.FindSlots)

	protected.POST("/bookings", bookingHandler.Book)

	protected.PUT("/profiles", registryHandler.UpsertProfile)
	protected.GET("/profiles/:userId", registryHandler.GetProfile)
	protected.PUT("/resources", registryHandler.UpsertResource)
	protected.GET("/resources/:id", registryHandler.GetResource)
	protected.PUT("/specialities", registryHandler.UpsertSpeciality)

	protected.GET("/audits", auditHandler.List)
	protected.GET("/system/metrics", metricsHandler.Snapshot)

	var reportQueue *jobs.Queue
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		reportRepo := repository.NewReportRepository(db)
		exportSvc := service.NewExportService(auditRepo, store, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
			RowLimit:  100000,
		}, logr, nil, nil)
		reportWorker := service.NewReportWorker(reportRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
		reportQueue = jobs.NewQueue("reports", reportWorker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		reportQueue.Start(ctx)
		reportSvc := service.NewReportService(reportRepo, reportQueue, exportSvc, logr, service.ReportServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
			MaxRetries:      cfg.Exports.WorkerRetries,
		})
		reportSvc.RecoverPendingJobs(ctx)
		reportSvc.StartCleanup(ctx)

		reportHandler := handler.NewReportHandler(reportSvc)
		api.GET("/export/:token", reportHandler.Download)
		protected.POST("/reports/generate", reportHandler.Generate)
		protected.GET("/reports/:id", reportHandler.Status)
	}

	var scheduler *service.Scheduler
	if cfg.Tracker.Enabled {
		scheduler = service.NewScheduler(cycleSvc, cfg.Tracker.Interval, logr)
		scheduler.Start(ctx)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("server shutdown failed", "error", err)
	}
	if scheduler != nil {
		scheduler.Wait()
	}
	if reportQueue != nil {
		reportQueue.Stop()
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("redis close failed", "error", err)
	}
}
