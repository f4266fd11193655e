package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/cvm-platform/cvm-admin-api/api/swagger"
	"github.com/cvm-platform/cvm-admin-api/internal/configstore"
	"github.com/cvm-platform/cvm-admin-api/internal/handler"
	internalmiddleware "github.com/cvm-platform/cvm-admin-api/internal/middleware"
	"github.com/cvm-platform/cvm-admin-api/internal/models"
	"github.com/cvm-platform/cvm-admin-api/internal/repository"
	"github.com/cvm-platform/cvm-admin-api/internal/service"
	"github.com/cvm-platform/cvm-admin-api/pkg/cache"
	"github.com/cvm-platform/cvm-admin-api/pkg/config"
	"github.com/cvm-platform/cvm-admin-api/pkg/database"
	"github.com/cvm-platform/cvm-admin-api/pkg/jobs"
	"github.com/cvm-platform/cvm-admin-api/pkg/logger"
	corsmiddleware "github.com/cvm-platform/cvm-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/cvm-platform/cvm-admin-api/pkg/middleware/requestid"
	"github.com/cvm-platform/cvm-admin-api/pkg/storage"
)

// @title CVM Admin API
// @version 1.0.0
// @description Campaign value management admin backend: offers, segments, campaigns, offer creatives and reference data
// @BasePath /api/v1
// @schemes http
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	cacheRepo := repository.NewCacheRepository(nil, logr)
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		} else {
			defer redisClient.Close()
			cacheRepo = repository.NewCacheRepository(redisClient, logr)
		}
	}

	snapshotStore, err := storage.NewLocalStorage(cfg.Reference.SnapshotDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare reference snapshot dir", "error", err)
	}
	refStore := configstore.New(configstore.NewFileSnapshot(snapshotStore, cfg.Reference.SnapshotFile), logr)

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	offerRepo := repository.NewOfferRepository(db)
	segmentRepo := repository.NewSegmentRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	creativeRepo := repository.NewCreativeRepository(db)

	auditSvc := service.NewAuditService(auditRepo, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A nil auditor turns every Record call into a no-op, so services
	// only get the real one when the audit queue is running.
	var auditor *service.AuditService
	if cfg.Audit.Enabled {
		auditor = auditSvc
		auditSvc.Start(ctx)
		defer auditSvc.Stop()
	}

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, auditor, validate, logr, service.AuthConfig{
		Secret:        cfg.JWT.Secret,
		AccessExpiry:  cfg.JWT.Expiration,
		RefreshExpiry: cfg.JWT.RefreshExpiration,
		Issuer:        cfg.JWT.Issuer,
	})
	referenceSvc := service.NewReferenceService(refStore, auditor, logr)
	offerSvc := service.NewOfferService(offerRepo, validate, logr)
	segmentSvc := service.NewSegmentService(segmentRepo, validate, logr)
	campaignSvc := service.NewCampaignService(campaignRepo, segmentRepo, validate, logr)
	creativeSvc := service.NewCreativeService(creativeRepo, offerRepo, validate, logr, service.CreativeServiceConfig{
		Cache:       cacheRepo,
		Auditor:     auditor,
		Metrics:     metricsSvc,
		StatsTTL:    cfg.Cache.StatsTTL,
		ListTTL:     cfg.Cache.ListTTL,
		MaxVersions: cfg.Creatives.MaxVersionsPerKey,
	})

	var exportSvc *service.ExportService
	if cfg.Exports.Enabled {
		exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare exports dir", "error", err)
		}
		exportSvc = service.NewExportService(creativeSvc, exportStore, auditor, logr)
	}

	authHandler := handler.NewAuthHandler(authSvc)
	referenceHandler := handler.NewReferenceHandler(referenceSvc)
	offerHandler := handler.NewOfferHandler(offerSvc)
	segmentHandler := handler.NewSegmentHandler(segmentSvc)
	campaignHandler := handler.NewCampaignHandler(campaignSvc)
	creativeHandler := handler.NewCreativeHandler(creativeSvc, metricsSvc)
	opsHandler := handler.NewOpsHandler(metricsSvc, auditSvc, func(ctx context.Context) error {
		return db.PingContext(ctx)
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", opsHandler.Health)
	r.GET("/ready", opsHandler.Ready)
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)

	writers := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleMarketer)
	admins := internalmiddleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	reference := secured.Group("/reference")
	reference.GET("", referenceHandler.Types)
	reference.POST("/preview", referenceHandler.Preview)
	reference.GET("/:type", referenceHandler.List)
	reference.GET("/:type/:id", referenceHandler.Get)
	reference.POST("/:type", writers, referenceHandler.Create)
	reference.PUT("/:type/:id", writers, referenceHandler.Update)
	reference.DELETE("/:type/:id", admins, referenceHandler.Delete)

	offers := secured.Group("/offers")
	offers.GET("", offerHandler.List)
	offers.GET("/:id", offerHandler.Get)
	offers.POST("", writers, offerHandler.Create)
	offers.PUT("/:id", writers, offerHandler.Update)
	offers.DELETE("/:id", admins, offerHandler.Delete)

	segments := secured.Group("/segments")
	segments.GET("", segmentHandler.List)
	segments.GET("/:id", segmentHandler.Get)
	segments.POST("", writers, segmentHandler.Create)
	segments.PUT("/:id", writers, segmentHandler.Update)
	segments.DELETE("/:id", admins, segmentHandler.Delete)

	campaigns := secured.Group("/campaigns")
	campaigns.GET("", campaignHandler.List)
	campaigns.GET("/:id", campaignHandler.Get)
	campaigns.POST("", writers, campaignHandler.Create)
	campaigns.PUT("/:id", writers, campaignHandler.Update)
	campaigns.DELETE("/:id", admins, campaignHandler.Delete)

	creatives := secured.Group("/creatives")
	creatives.GET("", creativeHandler.List)
	creatives.GET("/stats", creativeHandler.Stats)
	creatives.POST("/render", creativeHandler.Render)
	creatives.GET("/:id", creativeHandler.Get)
	creatives.GET("/:id/versions", creativeHandler.Versions)
	creatives.POST("", writers, creativeHandler.Create)
	creatives.PATCH("/:id", writers, creativeHandler.Update)
	creatives.DELETE("/:id", admins, creativeHandler.Delete)
	creatives.POST("/:id/clone", writers, creativeHandler.Clone)
	creatives.POST("/:id/rollback/:version", writers, creativeHandler.Rollback)

	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		secured.GET("/exports/creatives", admins, exportHandler.Creatives)
	}

	ops := secured.Group("/ops", admins)
	ops.GET("/metrics", opsHandler.Snapshot)
	ops.GET("/audit", opsHandler.AuditTrail)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}
