package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingMarker   = "__pending__"
	reserveAttempts = 2
)

// idempotencyClient is the subset of redis commands the store issues.
type idempotencyClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyRepository records which entry a client-supplied idempotency key produced.
type IdempotencyRepository struct {
	client idempotencyClient
	prefix string
}

// NewIdempotencyRepository constructs the store. A nil client disables deduplication.
func NewIdempotencyRepository(client redis.UniversalClient) *IdempotencyRepository {
	r := &IdempotencyRepository{prefix: "idem:reply:"}
	if client != nil {
		r.client = client
	}
	return r
}

// Reserve claims key for ttl. When the key was already claimed it reports the entry id
// recorded for it, or an empty id while the first request is still running. A claim that
// expires between SETNX and GET is retried once.
func (r *IdempotencyRepository) Reserve(ctx context.Context, key string, ttl time.Duration) (reserved bool, entryID string, err error) {
	if r.client == nil {
		return true, "", nil
	}
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		ok, err := r.client.SetNX(ctx, r.prefix+key, pendingMarker, ttl).Result()
		if err != nil {
			return false, "", fmt.Errorf("reserve idempotency key: %w", err)
		}
		if ok {
			return true, "", nil
		}
		value, err := r.client.Get(ctx, r.prefix+key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return false, "", fmt.Errorf("read idempotency key: %w", err)
		case value == pendingMarker:
			return false, "", nil
		default:
			return false, value, nil
		}
	}
	return false, "", nil
}

// Complete stores the entry produced for key.
func (r *IdempotencyRepository) Complete(ctx context.Context, key, entryID string, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Set(ctx, r.prefix+key, entryID, ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release frees key after a failed attempt so the client can retry.
func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
