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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/discussion-api/api/swagger"
	"github.com/noah-isme/discussion-api/internal/handler"
	"github.com/noah-isme/discussion-api/internal/middleware"
	"github.com/noah-isme/discussion-api/internal/repository"
	"github.com/noah-isme/discussion-api/internal/service"
	"github.com/noah-isme/discussion-api/pkg/cache"
	"github.com/noah-isme/discussion-api/pkg/config"
	"github.com/noah-isme/discussion-api/pkg/database"
	"github.com/noah-isme/discussion-api/pkg/export"
	"github.com/noah-isme/discussion-api/pkg/logger"
)

// @title Discussion API
// @version 1.0.0
// @description Threaded discussion entries with topic locking, soft deletes and exports.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	// nil when Redis is down; the cache and idempotency repositories then degrade to no-ops
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, thread cache and reply dedup disabled", zap.Error(err))
	} else {
		defer redisClient.Close()
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	topicRepo := repository.NewTopicRepository(db, metricsSvc)
	entryRepo := repository.NewEntryRepository(db, metricsSvc)
	auditRepo := repository.NewAuditRepository(db)
	toolRepo := repository.NewToolLookupRepository(db)

	auditDispatcher := service.NewAuditDispatcher(auditRepo, service.AuditDispatcherConfig{
		Workers:    cfg.Audit.Workers,
		Retries:    cfg.Audit.Retries,
		RetryDelay: 500 * time.Millisecond,
	}, logr)
	// not tied to the signal context: buffered records are drained by Stop after the server shuts down
	auditDispatcher.Start(context.Background())

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, logr),
		metricsSvc,
		cfg.Discussion.ThreadCacheTTL,
		logr,
		cfg.Discussion.ThreadCacheEnabled && redisClient != nil,
	)

	discussionSvc := service.NewDiscussionService(
		entryRepo,
		topicRepo,
		repository.NewIdempotencyRepository(redisClient),
		cacheSvc,
		auditDispatcher,
		metricsSvc,
		validate,
		logr,
		service.DiscussionServiceConfig{
			Guard: service.TopicLockGuard{
				LockBlocksDelete:      cfg.Discussion.LockBlocksDelete,
				StudentOwnEntriesOnly: cfg.Discussion.StudentOwnEntriesOnly,
			},
			MaxMessageLength: cfg.Discussion.MaxMessageLength,
			ThreadCacheTTL:   cfg.Discussion.ThreadCacheTTL,
			IdempotencyTTL:   cfg.Discussion.IdempotencyTTL,
		},
	)

	topicSvc := service.NewTopicService(topicRepo, cacheSvc, auditDispatcher, validate, logr)
	toolSvc := service.NewToolLookupService(toolRepo, auditDispatcher, validate, logr)
	exportSvc := service.NewExportService(entryRepo, topicRepo, export.NewCSVExporter(), export.NewPDFExporter("message"), logr)
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	checks := map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = redisPing(redisClient)
	}

	r := newRouter(cfg, logr, routerDeps{
		auth:        authSvc,
		metrics:     metricsSvc,
		limiter:     middleware.NewActorRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
		audit:       auditDispatcher,
		discussions: handler.NewDiscussionHandler(discussionSvc, exportSvc),
		topics:      handler.NewTopicHandler(topicSvc),
		tools:       handler.NewToolLookupHandler(toolSvc),
		probes:      handler.NewMetricsHandler(metricsSvc, checks),
	})

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	auditDispatcher.Stop(shutdownCtx)
}

func redisPing(client redis.UniversalClient) handler.ReadinessCheck {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
