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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/procurement-api/api/swagger"
	"github.com/noah-isme/procurement-api/internal/handler"
	"github.com/noah-isme/procurement-api/internal/middleware"
	"github.com/noah-isme/procurement-api/internal/repository"
	"github.com/noah-isme/procurement-api/internal/service"
	"github.com/noah-isme/procurement-api/pkg/cache"
	"github.com/noah-isme/procurement-api/pkg/config"
	"github.com/noah-isme/procurement-api/pkg/database"
	"github.com/noah-isme/procurement-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/procurement-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/procurement-api/pkg/middleware/requestid"
)

// @title Asset Procurement API
// @version 1.0.0
// @description Asset disposal queue and approval engine
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	cacheRepo, closeCache := buildCacheRepository(ctx, cfg, logr)
	defer closeCache()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Disposals.CacheTTL, logr, cacheRepo != nil)

	userRepo := repository.NewUserRepository(db)
	assetRepo := repository.NewAssetRepository(db)
	requestRepo := repository.NewDisposalRequestRepository(db)
	queueRepo := repository.NewDisposalQueueRepository(db)
	approvalRepo := repository.NewDisposalApprovalRepository(db)

	validate := service.NewValidator()
	policy := service.NewDisposalPolicy(service.PrivilegedRolesFromConfig(cfg.Disposals.PrivilegedRoles)...)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	assetSvc := service.NewAssetService(assetRepo, userRepo, userRepo, policy, cacheSvc, metricsSvc, validate, logr)
	transactor := database.NewTransactor(db)
	queueSvc := service.NewDisposalQueueService(queueRepo, transactor, userRepo, policy, cacheSvc, metricsSvc, cfg.Disposals.CacheTTL, logr)
	disposalSvc := service.NewDisposalService(service.DisposalServiceDeps{
		Assets:    assetRepo,
		Requests:  requestRepo,
		Approvals: approvalRepo,
		Users:     userRepo,
		Tx:        transactor,
		Audit:     userRepo,
		Policy:    policy,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
	})
	exportSvc := service.NewExportService(queueSvc, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	assetHandler := handler.NewAssetHandler(assetSvc)
	disposalHandler := handler.NewDisposalHandler(queueSvc, disposalSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if metricsSvc != nil {
		r.Use(middleware.Metrics(metricsSvc))
		r.GET("/metrics", metricsHandler.Prometheus)
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)
	secured.PATCH("/assets/:id/condition", assetHandler.UpdateCondition)

	disposals := secured.Group("")
	disposals.Use(middleware.RequireFeature("disposals", cfg.Disposals.Enabled))
	disposals.GET("/disposals", disposalHandler.List)
	disposals.GET("/disposals/export", disposalHandler.Export)
	disposals.POST("/disposals/requests", disposalHandler.CreateRequest)
	disposals.POST("/disposals/decisions", middleware.RequireRoles(policy.PrivilegedRoles()...), disposalHandler.Decide)
	disposals.GET("/assets/:id/disposal-approvals", disposalHandler.History)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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

// buildCacheRepository selects the queue cache backend. A Redis outage at
// boot degrades to the in-process cache.
func buildCacheRepository(ctx context.Context, cfg *config.Config, logr *zap.Logger) (service.CacheRepository, func()) {
	noop := func() {}
	switch cfg.Cache.Backend {
	case config.CacheBackendNone:
		return nil, noop
	case config.CacheBackendRedis:
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err == nil {
			redisRepo := repository.NewCacheRepository(client, logr)
			return redisRepo, func() { _ = redisRepo.Close() }
		}
		logr.Warn("redis unavailable, falling back to memory cache", zap.Error(err))
	}
	memory := repository.NewMemoryCacheRepository(cache.NewMemory(cfg.Cache.MemorySize, cfg.Disposals.CacheTTL))
	return memory, func() { _ = memory.Close() }
}
