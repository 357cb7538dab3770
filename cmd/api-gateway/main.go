package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campusdesk/complaint-api/api/swagger"
	"github.com/campusdesk/complaint-api/internal/handler"
	"github.com/campusdesk/complaint-api/internal/middleware"
	"github.com/campusdesk/complaint-api/internal/models"
	"github.com/campusdesk/complaint-api/internal/repository"
	"github.com/campusdesk/complaint-api/internal/service"
	"github.com/campusdesk/complaint-api/pkg/cache"
	"github.com/campusdesk/complaint-api/pkg/config"
	"github.com/campusdesk/complaint-api/pkg/database"
	"github.com/campusdesk/complaint-api/pkg/logger"
	corsmiddleware "github.com/campusdesk/complaint-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campusdesk/complaint-api/pkg/middleware/requestid"
	"github.com/campusdesk/complaint-api/pkg/storage"
)

// @title Campus Complaint API
// @version 1.0.0
// @description Complaint lifecycle management for campus services.
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		redisClient = nil
	}

	files, err := storage.NewLocalStorage(cfg.Attachments.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init attachment storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Attachments.SignedURLSecret, cfg.Attachments.SignedURLTTL)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled)
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	complaintSvc := service.NewComplaintService(complaintRepo, userRepo, userRepo, files, signer, cacheSvc, cfg.Attachments, validate, logr)
	dashboardSvc := service.NewDashboardService(complaintRepo, cacheSvc, logr, service.DashboardServiceConfig{
		CacheTTL: cfg.Dashboard.CacheTTL,
	})
	exportSvc := service.NewExportService(complaintRepo, nil, nil, service.ExportConfig{
		Enabled: cfg.Exports.Enabled,
		MaxRows: cfg.Exports.MaxRows,
	}, logr)

	authHandler := handler.NewAuthHandler(authSvc)
	complaintHandler := handler.NewComplaintHandler(complaintSvc, exportSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc, metricsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
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
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	// Signed token is the credential, no session required.
	api.GET("/attachments/download", complaintHandler.DownloadAttachment)

	complaints := api.Group("/complaints", middleware.JWT(authSvc))
	{
		complaints.POST("", middleware.RequireRoles(models.RoleStudent), complaintHandler.Create)
		complaints.GET("", complaintHandler.List)
		complaints.GET("/admins", middleware.RequireAdmin(), complaintHandler.Admins)
		complaints.GET("/export", middleware.RequireAdmin(), complaintHandler.Export)
		complaints.GET("/:id", complaintHandler.Get)
		complaints.DELETE("/:id", middleware.RequireAdmin(), complaintHandler.Delete)
		complaints.PATCH("/:id/status", middleware.RequireAdmin(), complaintHandler.UpdateStatus)
		complaints.PATCH("/:id/priority", middleware.RequireAdmin(), complaintHandler.UpdatePriority)
		complaints.PATCH("/:id/assign", middleware.RequireAdmin(), complaintHandler.Assign)
		complaints.PATCH("/:id/reject", middleware.RequireAdmin(), complaintHandler.Reject)
		complaints.PATCH("/:id/request-info", middleware.RequireAdmin(), complaintHandler.RequestInfo)
		complaints.PATCH("/:id/submit-info", middleware.RequireRoles(models.RoleStudent), complaintHandler.SubmitInfo)
		complaints.PATCH("/:id/reply", middleware.RequireAdmin(), complaintHandler.Reply)
		complaints.PATCH("/:id/feedback", middleware.RequireRoles(models.RoleStudent), complaintHandler.Feedback)
	}

	dashboard := api.Group("/dashboard", middleware.JWT(authSvc))
	{
		dashboard.GET("/admin", middleware.RequireAdmin(), dashboardHandler.Admin)
		dashboard.GET("/overview", middleware.RequireRoles(models.RoleSuperAdmin), dashboardHandler.Overview)
		dashboard.GET("/system", middleware.RequireRoles(models.RoleSuperAdmin), dashboardHandler.System)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
