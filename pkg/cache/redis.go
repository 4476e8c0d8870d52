package cache

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/discussion-api/pkg/config"
)

const dialCheckTimeout = 3 * time.Second

// NewRedis connects to Redis and verifies the connection with PING.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        []string{net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))},
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialCheckTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialCheckTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return client, nil
}
