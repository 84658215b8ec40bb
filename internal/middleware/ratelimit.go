// Package middleware holds the gin middleware shared by every route group.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/adminboard/backend-api/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	RateLimitHeader          = "X-RateLimit-Limit"
	RateLimitRemainingHeader = "X-RateLimit-Remaining"
	RateLimitResetHeader     = "X-RateLimit-Reset"
	RetryAfterHeader         = "Retry-After"

	rateLimitKeyPrefix = "ratelimit:"
)

var rateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	},
	[]string{"scope"},
)

// RateLimitConfig defines a fixed-window limit.
type RateLimitConfig struct {
	// Scope namespaces the counters, e.g. "auth".
	Scope    string
	Requests int
	Window   time.Duration
	// KeyFunc extracts the client key; the client IP by default.
	KeyFunc func(*gin.Context) string
}

// RateLimiter counts requests per key in Redis, or in process when no
// Redis client is configured.
type RateLimiter struct {
	config RateLimitConfig
	redis  redis.UniversalClient
	logger *logging.StandardLogger

	mu       sync.Mutex
	localMap map[string]*rateLimitEntry
}

type rateLimitEntry struct {
	count     int
	resetTime time.Time
}

// rateLimitScript increments the window counter and returns
// {allowed, remaining, ttl seconds}.
var rateLimitScript = redis.NewScript(`
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if current >= limit then
	return {0, 0, redis.call("TTL", KEYS[1])}
end
current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return {1, limit - current, redis.call("TTL", KEYS[1])}
`)

func NewRateLimiter(config RateLimitConfig, redisClient redis.UniversalClient, logger *logging.StandardLogger) *RateLimiter {
	if config.Requests <= 0 {
		config.Requests = 30
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if config.KeyFunc == nil {
		config.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RateLimiter{
		config:   config,
		redis:    redisClient,
		logger:   logger.WithComponent("rate_limiter"),
		localMap: make(map[string]*rateLimitEntry),
	}
}

// Middleware rejects requests over the limit with 429. Limiter failures
// let the request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.config.Scope + ":" + rl.config.KeyFunc(c)

		allowed, remaining, resetTime, err := rl.checkAndUpdate(c.Request.Context(), key)
		if err != nil {
			rl.logger.WithError(err).Error("Rate limit check failed", zap.String("scope", rl.config.Scope))
			c.Next()
			return
		}

		c.Header(RateLimitHeader, strconv.Itoa(rl.config.Requests))
		c.Header(RateLimitRemainingHeader, strconv.Itoa(remaining))
		c.Header(RateLimitResetHeader, strconv.FormatInt(resetTime.Unix(), 10))

		if !allowed {
			retryAfter := int64(time.Until(resetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			rateLimitedTotal.WithLabelValues(rl.config.Scope).Inc()
			c.Header(RetryAfterHeader, strconv.FormatInt(retryAfter, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message":     "Too many requests. Please try again later.",
				"retry_after": retryAfter,
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) checkAndUpdate(ctx context.Context, key string) (bool, int, time.Time, error) {
	if rl.redis != nil {
		return rl.checkAndUpdateRedis(ctx, key)
	}
	allowed, remaining, reset := rl.checkAndUpdateLocal(key, time.Now())
	return allowed, remaining, reset, nil
}

func (rl *RateLimiter) checkAndUpdateRedis(ctx context.Context, key string) (bool, int, time.Time, error) {
	windowSeconds := int(rl.config.Window.Seconds())
	if windowSeconds < 1 {
		windowSeconds = 1
	}

	values, err := rateLimitScript.Run(ctx, rl.redis, []string{rateLimitKeyPrefix + key}, rl.config.Requests, windowSeconds).Int64Slice()
	if err != nil {
		return false, 0, time.Time{}, err
	}
	if len(values) != 3 {
		return false, 0, time.Time{}, fmt.Errorf("unexpected rate limit reply of length %d", len(values))
	}

	ttl := values[2]
	if ttl < 0 {
		ttl = int64(windowSeconds)
	}
	return values[0] == 1, int(values[1]), time.Now().Add(time.Duration(ttl) * time.Second), nil
}

func (rl *RateLimiter) checkAndUpdateLocal(key string, now time.Time) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.localMap) > 1000 {
		rl.cleanupLocked(now)
	}

	entry, exists := rl.localMap[key]
	if !exists || now.After(entry.resetTime) {
		entry = &rateLimitEntry{resetTime: now.Add(rl.config.Window)}
		rl.localMap[key] = entry
	}
	if entry.count >= rl.config.Requests {
		return false, 0, entry.resetTime
	}
	entry.count++
	return true, rl.config.Requests - entry.count, entry.resetTime
}

// Reset clears the counter for a client key within this limiter's scope.
func (rl *RateLimiter) Reset(ctx context.Context, clientKey string) error {
	key := rl.config.Scope + ":" + clientKey
	if rl.redis != nil {
		return rl.redis.Del(ctx, rateLimitKeyPrefix+key).Err()
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.localMap, key)
	return nil
}

// Cleanup drops expired local windows. Redis expires its own keys.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cleanupLocked(time.Now())
}

func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for key, entry := range rl.localMap {
		if now.After(entry.resetTime) {
			delete(rl.localMap, key)
		}
	}
}
