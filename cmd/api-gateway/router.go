package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/discussion-api/internal/handler"
	"github.com/noah-isme/discussion-api/internal/middleware"
	"github.com/noah-isme/discussion-api/internal/models"
	"github.com/noah-isme/discussion-api/internal/service"
	"github.com/noah-isme/discussion-api/pkg/config"
	"github.com/noah-isme/discussion-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/discussion-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/discussion-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth        *service.AuthService
	metrics     *service.MetricsService
	limiter     *middleware.ActorRateLimiter
	audit       *service.AuditDispatcher
	discussions *handler.DiscussionHandler
	topics      *handler.TopicHandler
	tools       *handler.ToolLookupHandler
	probes      *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.probes.Health)
	r.GET("/ready", deps.probes.Ready)
	r.GET("/metrics", deps.probes.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(deps.auth))

	moderator := middleware.RequireCapability(models.CapabilityModerator)
	limited := middleware.RateLimit(deps.limiter)

	topics := api.Group("/topics")
	topics.POST("", moderator, limited, deps.topics.Create)
	topics.GET("/:id", deps.topics.Get)
	topics.POST("/:id/lock", moderator, limited, deps.topics.Lock)
	topics.POST("/:id/unlock", moderator, limited, deps.topics.Unlock)
	topics.POST("/:id/entries", limited, deps.discussions.Reply)
	topics.GET("/:id/thread", deps.discussions.Thread)
	topics.GET("/:id/export", middleware.Audit(deps.audit, models.AuditActionThreadExport, "discussion_topic"), deps.discussions.Export)
	topics.GET("/:id/integrity", moderator, middleware.Audit(deps.audit, models.AuditActionIntegrityCheck, "discussion_topic"), deps.discussions.Integrity)

	entries := api.Group("/entries")
	entries.GET("/:id", deps.discussions.Get)
	entries.GET("/:id/replies", deps.discussions.Replies)
	entries.PUT("/:id", limited, deps.discussions.Edit)
	entries.DELETE("/:id", limited, deps.discussions.Delete)

	if cfg.ToolLookups.Enabled {
		assignments := api.Group("/assignments")
		assignments.POST("/:id/tool-lookups", moderator, limited, deps.tools.Attach)
		assignments.GET("/:id/tool-lookups", deps.tools.List)
		assignments.DELETE("/:id/tool-lookups", moderator, limited, deps.tools.Clear)
		api.DELETE("/tools/:type/:toolId/lookups", moderator, limited, deps.tools.ClearTool)
	}

	return r
}
