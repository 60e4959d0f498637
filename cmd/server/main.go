// Package main runs the RACI tracker HTTP server with WebSocket notifications and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/raci-tracker/backend/config"
	"github.com/raci-tracker/backend/internal/auth"
	"github.com/raci-tracker/backend/internal/companies"
	"github.com/raci-tracker/backend/internal/dashboard"
	"github.com/raci-tracker/backend/internal/departments"
	"github.com/raci-tracker/backend/internal/events"
	"github.com/raci-tracker/backend/internal/meetings"
	"github.com/raci-tracker/backend/internal/middleware"
	"github.com/raci-tracker/backend/internal/notify"
	"github.com/raci-tracker/backend/internal/raci"
	"github.com/raci-tracker/backend/internal/realtime"
	"github.com/raci-tracker/backend/internal/users"
	"github.com/raci-tracker/backend/internal/websiteadmins"
	"github.com/raci-tracker/backend/pkg/cache"
	"github.com/raci-tracker/backend/pkg/database"
	"github.com/raci-tracker/backend/pkg/queue"
	"github.com/raci-tracker/backend/pkg/redis"
	"github.com/raci-tracker/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := middleware.RegisterValidators(); err != nil {
		logger.Fatal("register validators", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.URL,
		database.PoolOptions{MaxConns: cfg.Database.MaxConns, MinConns: cfg.Database.MinConns}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var (
		blob      storage.Blob
		uploadDir string
	)
	switch cfg.Storage.Driver {
	case "s3":
		blob, err = storage.NewS3(ctx, storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			Bucket:          cfg.AWS.Bucket,
		}, logger)
	default:
		var local *storage.Local
		local, err = storage.NewLocal(cfg.Storage.UploadDir, cfg.Server.PublicBaseURL, logger)
		if local != nil {
			blob, uploadDir = local, local.Dir()
		}
	}
	if err != nil {
		logger.Fatal("storage", zap.Error(err), zap.String("driver", cfg.Storage.Driver))
	}

	jwtService := auth.NewJWTService(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	redisPubSub := realtime.NewRedisPubSub(rdb, logger)
	hub := realtime.NewHub(logger, redisPubSub, redisPubSub)
	jobQueue := queue.NewQueue(rdb, cfg.Worker.MaxRetries, logger)
	dashCache := cache.New(rdb, cfg.Dashboard.CacheTTL)
	notifier := notify.NewService(jobQueue, hub, notify.NewRepository(pool), logger)

	// Auth
	authSvc := auth.NewService(auth.NewRepository(pool), jwtService, notifier, auth.Options{
		OTPTTL:         cfg.Auth.OTPTTL,
		OTPMaxAttempts: cfg.Auth.OTPMaxAttempts,
		ResetWindow:    cfg.Auth.ResetWindow,
	}, logger)

	// Tenancy
	companySvc := companies.NewService(companies.NewRepository(pool), blob, dashCache, logger)
	adminSvc := websiteadmins.NewService(websiteadmins.NewRepository(pool), logger)
	departmentSvc := departments.NewService(departments.NewRepository(pool), dashCache, logger)
	userSvc := users.NewService(users.NewRepository(pool), dashCache, logger)

	// RACI
	raciSvc := raci.NewService(raci.NewRepository(pool), notifier, dashCache, logger)
	eventSvc := events.NewService(events.NewRepository(pool), raciSvc, blob, notifier, dashCache, logger)
	meetingSvc := meetings.NewService(meetings.NewRepository(pool), notifier, logger)
	dashboardSvc := dashboard.NewService(dashboard.NewRepository(pool), dashCache, logger)

	router := newRouter(logger, jwtService, handlers{
		auth:          auth.NewHandler(authSvc, logger),
		companies:     companies.NewHandler(companySvc, logger),
		websiteAdmins: websiteadmins.NewHandler(adminSvc, logger),
		departments:   departments.NewHandler(departmentSvc, logger),
		users:         users.NewHandler(userSvc, logger),
		events:        events.NewHandler(eventSvc, logger),
		raci:          raci.NewHandler(raciSvc, logger),
		meetings:      meetings.NewHandler(meetingSvc, logger),
		dashboard:     dashboard.NewHandler(dashboardSvc, logger),
		ws:            realtime.ServeWs(hub, logger, jwtService.ValidateAccess, cfg.Server.CORSAllowedOrigins),
	}, routerOptions{
		corsOrigins:   cfg.Server.CORSAllowedOrigins,
		production:    cfg.IsProduction(),
		authRateLimit: cfg.Server.RateLimitAuth,
		uploadDir:     uploadDir,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
