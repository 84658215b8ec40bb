package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	rdb.AddHook(&RedisSentryHook{})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisClientFrom(rdb, nil), server
}

func TestRedisClient_HealthCheck(t *testing.T) {
	client, server := newTestRedisClient(t)
	ctx := context.Background()

	assert.NoError(t, client.HealthCheck(ctx))

	server.Close()
	assert.Error(t, client.HealthCheck(ctx))
}

func TestRedisClient_HookPassesThroughCommands(t *testing.T) {
	client, server := newTestRedisClient(t)
	ctx := context.Background()

	require.NoError(t, client.Client.Set(ctx, "k", "v", 0).Err())
	got, err := server.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	_, err = client.Client.Get(ctx, "missing").Result()
	assert.ErrorIs(t, err, redis.Nil)

	cmds, err := client.Client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, "counter")
		p.Incr(ctx, "counter")
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, cmds, 2)
}

func TestRedisClient_NilSafe(t *testing.T) {
	var client *RedisClient
	assert.Error(t, client.HealthCheck(context.Background()))
	assert.NotPanics(t, client.Close)
}
