package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
)

const (
	cacheKeyPrefix = "cache:"
	unlinkBatch    = 200
)

var errNoCacheClient = errors.New("cache client not configured")

// CacheRepository keeps JSON encoded read models in Redis under a shared key prefix.
type CacheRepository struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewCacheRepository constructs the repository. A nil client reports every read as a miss.
func NewCacheRepository(client redis.UniversalClient, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, logger: logger}
}

func (r *CacheRepository) key(k string) string {
	return cacheKeyPrefix + k
}

// Get decodes the value stored under key into dest, returning ErrCacheMiss when absent.
func (r *CacheRepository) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return appErrors.ErrCacheMiss
	case err != nil:
		return fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// a payload from an older schema is dropped rather than served
		_ = r.client.Unlink(ctx, r.key(key)).Err()
		return appErrors.ErrCacheMiss
	}
	return nil
}

// Set encodes value and stores it for ttl.
func (r *CacheRepository) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	return r.client.Set(ctx, r.key(key), payload, ttl).Err()
}

// Incr atomically increments the integer counter under key. Counters never expire.
func (r *CacheRepository) Incr(ctx context.Context, key string) (int64, error) {
	if r.client == nil {
		return 0, errNoCacheClient
	}
	n, err := r.client.Incr(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache incr %s: %w", key, err)
	}
	return n, nil
}

// DeleteByPattern unlinks every key matching the glob pattern.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}
	var (
		keys    []string
		removed int
	)
	iter := r.client.Scan(ctx, 0, r.key(pattern), unlinkBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) < unlinkBatch {
			continue
		}
		if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache unlink %s: %w", pattern, err)
		}
		removed += len(keys)
		keys = keys[:0]
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache scan %s: %w", pattern, err)
	}
	if len(keys) > 0 {
		if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache unlink %s: %w", pattern, err)
		}
		removed += len(keys)
	}
	if removed > 0 {
		r.logger.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("keys", removed))
	}
	return nil
}
