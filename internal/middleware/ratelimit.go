package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
	"github.com/noah-isme/discussion-api/pkg/response"
)

const limiterIdleTTL = 10 * time.Minute

type actorLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ActorRateLimiter hands out one token bucket per actor, falling back to the client IP.
type ActorRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*actorLimiter
	r        rate.Limit
	b        int
	now      func() time.Time
}

// NewActorRateLimiter builds a limiter allowing rps sustained requests with the given burst.
func NewActorRateLimiter(rps float64, burst int) *ActorRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ActorRateLimiter{
		limiters: make(map[string]*actorLimiter),
		r:        rate.Limit(rps),
		b:        burst,
		now:      time.Now,
	}
}

// Allow consumes a token for key.
func (l *ActorRateLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.limiters[key]
	if !ok {
		l.evictIdle(now)
		entry = &actorLimiter{limiter: rate.NewLimiter(l.r, l.b)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// evictIdle drops buckets unused for limiterIdleTTL; an idle bucket is full again anyway.
func (l *ActorRateLimiter) evictIdle(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(l.limiters, key)
		}
	}
}

// RateLimit rejects requests beyond the actor's budget with 429.
func RateLimit(limiter *ActorRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if claims := ClaimsFromContext(c); claims != nil && claims.UserID != "" {
			key = "user:" + claims.UserID
		}
		if !limiter.Allow(key) {
			response.Error(c, appErrors.ErrTooManyRequests)
			c.Abort()
			return
		}
		c.Next()
	}
}
