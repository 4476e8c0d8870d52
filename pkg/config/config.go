package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Discussion  DiscussionConfig
	Audit       AuditConfig
	RateLimit   RateLimitConfig
	ToolLookups ToolLookupConfig
	Migrations  MigrationsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DiscussionConfig tunes discussion mutation policy and caching.
type DiscussionConfig struct {
	LockBlocksDelete      bool
	StudentOwnEntriesOnly bool
	MaxMessageLength      int
	ThreadCacheEnabled    bool
	ThreadCacheTTL        time.Duration
	IdempotencyTTL        time.Duration
}

// AuditConfig sizes the asynchronous audit writer.
type AuditConfig struct {
	Workers int
	Retries int
}

// RateLimitConfig bounds mutation throughput per actor.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// ToolLookupConfig gates the assignment tool lookup endpoints.
type ToolLookupConfig struct {
	Enabled bool
}

// MigrationsConfig points the migrate CLI at its SQL source.
type MigrationsConfig struct {
	Path string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxMessage := v.GetInt("DISCUSSION_MAX_MESSAGE_LENGTH")
	if maxMessage <= 0 {
		maxMessage = 64 * 1024
	}
	cfg.Discussion = DiscussionConfig{
		LockBlocksDelete:      v.GetBool("DISCUSSION_LOCK_BLOCKS_DELETE"),
		StudentOwnEntriesOnly: v.GetBool("DISCUSSION_STUDENT_OWN_ENTRIES_ONLY"),
		MaxMessageLength:      maxMessage,
		ThreadCacheEnabled:    v.GetBool("ENABLE_THREAD_CACHE"),
		ThreadCacheTTL:        parseDuration(v.GetString("DISCUSSION_THREAD_CACHE_TTL"), 2*time.Minute),
		IdempotencyTTL:        parseDuration(v.GetString("DISCUSSION_IDEMPOTENCY_TTL"), 24*time.Hour),
	}

	cfg.Audit = AuditConfig{
		Workers: v.GetInt("AUDIT_WORKERS"),
		Retries: v.GetInt("AUDIT_RETRIES"),
	}

	cfg.RateLimit = RateLimitConfig{
		RPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		Burst: v.GetInt("RATE_LIMIT_BURST"),
	}

	cfg.ToolLookups = ToolLookupConfig{Enabled: v.GetBool("ENABLE_TOOL_LOOKUPS")}
	cfg.Migrations = MigrationsConfig{Path: v.GetString("MIGRATIONS_PATH")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "discussions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "discussion-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DISCUSSION_LOCK_BLOCKS_DELETE", true)
	v.SetDefault("DISCUSSION_STUDENT_OWN_ENTRIES_ONLY", true)
	v.SetDefault("DISCUSSION_MAX_MESSAGE_LENGTH", 64*1024)
	v.SetDefault("ENABLE_THREAD_CACHE", false)
	v.SetDefault("DISCUSSION_THREAD_CACHE_TTL", "2m")
	v.SetDefault("DISCUSSION_IDEMPOTENCY_TTL", "24h")

	v.SetDefault("AUDIT_WORKERS", 1)
	v.SetDefault("AUDIT_RETRIES", 3)

	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)

	v.SetDefault("ENABLE_TOOL_LOOKUPS", true)
	v.SetDefault("MIGRATIONS_PATH", "file://migrations")
}

// viper surfaces a missing explicit config file as a path error rather than ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
