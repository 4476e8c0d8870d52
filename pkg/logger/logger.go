package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/noah-isme/discussion-api/pkg/config"
	"github.com/noah-isme/discussion-api/pkg/middleware/requestid"
)

// ActorKey is the gin context key under which middleware stores the acting user id.
const ActorKey = "actor_id"

func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build(zap.Fields(zap.String("service", "discussion-api")))
}

// FromContext returns l enriched with the request id and actor of the current request.
func FromContext(l *zap.Logger, c *gin.Context) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	if c == nil {
		return l
	}
	fields := make([]zap.Field, 0, 2)
	if reqID := requestid.Value(c); reqID != "" {
		fields = append(fields, zap.String("request_id", reqID))
	}
	if actor := c.GetString(ActorKey); actor != "" {
		fields = append(fields, zap.String("actor_id", actor))
	}
	return l.With(fields...)
}

func GinMiddleware(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		entry := FromContext(l, c)
		if c.Writer.Status() >= 500 {
			entry.Error("http_request", fields...)
			return
		}
		entry.Info("http_request", fields...)
	}
}
