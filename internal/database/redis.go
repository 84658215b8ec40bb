package database

import (
	"context"
	"fmt"
	"time"

	"github.com/adminboard/backend-api/internal/config"
	"github.com/adminboard/backend-api/internal/logging"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisClient wraps a Redis client with logging and Sentry tracing.
type RedisClient struct {
	Client *redis.Client
	logger *logging.StandardLogger
}

// NewRedisConnection connects and pings Redis, retrying a few times before
// giving up.
func NewRedisConnection(ctx context.Context, cfg config.RedisConfig, logger *logging.StandardLogger) (*RedisClient, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("redis")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	rdb.AddHook(&RedisSentryHook{})

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var err error
	for attempt := 0; attempt < connectAttempts; attempt++ {
		if err = rdb.Ping(ctx).Err(); err == nil {
			break
		}
		logger.Warn("Redis connection attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
		if attempt < connectAttempts-1 {
			time.Sleep(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis", zap.String("addr", cfg.Addr()))
	return &RedisClient{Client: rdb, logger: logger}, nil
}

// NewRedisClientFrom wraps an existing client.
func NewRedisClientFrom(client *redis.Client, logger *logging.StandardLogger) *RedisClient {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RedisClient{Client: client, logger: logger}
}

// Close closes the Redis connection.
func (r *RedisClient) Close() {
	if r == nil || r.Client == nil {
		return
	}
	if err := r.Client.Close(); err != nil {
		r.logger.Error("Error closing Redis client", zap.Error(err))
		return
	}
	r.logger.Info("Redis connection closed")
}

// HealthCheck verifies the Redis connection.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return fmt.Errorf("redis client is nil")
	}
	return r.Client.Ping(ctx).Err()
}
