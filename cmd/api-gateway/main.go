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
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/dissertation-portal-api/api/swagger"
	"github.com/noah-isme/dissertation-portal-api/internal/handler"
	"github.com/noah-isme/dissertation-portal-api/internal/middleware"
	"github.com/noah-isme/dissertation-portal-api/internal/models"
	"github.com/noah-isme/dissertation-portal-api/internal/repository"
	"github.com/noah-isme/dissertation-portal-api/internal/service"
	"github.com/noah-isme/dissertation-portal-api/pkg/cache"
	"github.com/noah-isme/dissertation-portal-api/pkg/config"
	"github.com/noah-isme/dissertation-portal-api/pkg/database"
	"github.com/noah-isme/dissertation-portal-api/pkg/export"
	"github.com/noah-isme/dissertation-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/dissertation-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/dissertation-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/dissertation-portal-api/pkg/storage"
)

// @title Dissertation Portal API
// @version 0.1.0
// @description Dissertation supervision portal: sessions, requests and signed documents
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("postgres connection failed", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, session listing cache disabled", "error", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	fileStorage, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("upload storage init failed", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "dissertation-portal",
	})

	sessionSvc := service.NewSessionService(sessionRepo, requestRepo, cacheRepo, userRepo, metricsSvc, nil, logr, service.SessionConfig{
		AllowOverlap: cfg.Sessions.AllowOverlap,
		CacheEnabled: cfg.Sessions.ListingCacheEnabled && redisClient != nil,
		CacheTTL:     cfg.Sessions.ListingCacheTTL,
	})

	documentSvc := service.NewDocumentService(requestRepo, export.NewFormRenderer(), fileStorage, metricsSvc, logr, service.DocumentConfig{
		Enabled:     cfg.Documents.Enabled,
		Concurrency: cfg.Documents.WorkerConcurrency,
		MaxRetries:  cfg.Documents.WorkerRetries,
	})

	uploadSvc := service.NewUploadService(requestRepo, fileStorage, signer, logr, service.UploadConfig{
		MaxFileSize:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})

	requestSvc := service.NewRequestService(requestRepo, sessionRepo, documentSvc, uploadSvc, sessionSvc, userRepo, metricsSvc, nil, logr, service.RequestConfig{
		CascadeWithdraw: cfg.Sessions.CascadeWithdraw,
	})

	documentSvc.Start(ctx)
	defer documentSvc.Stop()

	go sweepExpiredSessions(ctx, sessionSvc, logr, cfg.Sessions.SweepInterval)

	authHandler := handler.NewAuthHandler(authSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	uploadHandler := handler.NewUploadHandler(uploadSvc, requestSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	authed := auth.Group("", middleware.JWT(authSvc))
	authed.POST("/logout", authHandler.Logout)
	authed.POST("/change-password", authHandler.ChangePassword)

	professor := api.Group("/professor", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleProfessor))
	professor.POST("/sessions", sessionHandler.Create)
	professor.GET("/sessions", sessionHandler.List)
	professor.GET("/sessions/:id", sessionHandler.Get)
	professor.PUT("/sessions/:id", sessionHandler.Update)
	professor.DELETE("/sessions/:id", sessionHandler.Delete)
	professor.GET("/sessions/:id/requests", requestHandler.ListBySession)
	professor.GET("/requests", requestHandler.ListForProfessor)
	professor.PUT("/requests/:id/approve", requestHandler.Approve)
	professor.PUT("/requests/:id/reject", requestHandler.Reject)
	professor.PUT("/requests/:id/request-reupload", requestHandler.RequestReupload)
	professor.POST("/requests/:id/response-document", uploadHandler.UploadResponse)

	student := api.Group("/student", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleStudent))
	student.GET("/sessions", sessionHandler.ListActive)
	student.POST("/requests", requestHandler.Submit)
	student.GET("/requests", requestHandler.ListForStudent)
	student.POST("/requests/:id/signed-document", uploadHandler.UploadSigned)

	shared := api.Group("/requests", middleware.JWT(authSvc))
	shared.GET("/:id", requestHandler.Get)
	shared.GET("/:id/documents/:kind/download",
		middleware.Audit(userRepo, "DOCUMENT_DOWNLOAD", "dissertation_request"),
		uploadHandler.Download)

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown error", "error", err)
	}
}

// sweepExpiredSessions periodically deactivates sessions whose end date
// has passed so student listings stay accurate without waiting for a
// request to hit each one.
func sweepExpiredSessions(ctx context.Context, sessions *service.SessionService, logr *zap.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			affected, err := sessions.DeactivateExpired(ctx)
			if err != nil {
				logr.Sugar().Warnw("session sweep failed", "error", err)
				continue
			}
			if affected > 0 {
				logr.Sugar().Infow("expired sessions deactivated", "count", affected)
			}
		}
	}
}
