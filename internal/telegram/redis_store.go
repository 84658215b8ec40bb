package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSessionPrefix = "telegram:auth:session:"

// completeScript returns 0 when the session is absent or older than the
// cutoff, 2 when it is already completed and 1 after completing it.
var completeScript = redis.NewScript(`
local created = redis.call('HGET', KEYS[1], 'created_at')
if not created then
	return 0
end
if tonumber(created) < tonumber(ARGV[1]) then
	return 0
end
if redis.call('HGET', KEYS[1], 'status') == 'completed' then
	return 2
end
redis.call('HSET', KEYS[1], 'status', 'completed', 'user', ARGV[2])
return 1
`)

// consumeScript returns the session fields and deletes the key when the
// session is completed. Pending sessions are returned untouched; absent or
// expired ones yield an empty reply.
var consumeScript = redis.NewScript(`
local fields = redis.call('HGETALL', KEYS[1])
if #fields == 0 then
	return {}
end
local values = {}
for i = 1, #fields, 2 do
	values[fields[i]] = fields[i + 1]
end
if not values['created_at'] or tonumber(values['created_at']) < tonumber(ARGV[1]) then
	return {}
end
if values['status'] == 'completed' then
	redis.call('DEL', KEYS[1])
end
return fields
`)

// RedisStore shares sessions between API replicas. Each session is a hash
// that Redis expires on its own; Sweep only catches keys left without a TTL.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore builds a store whose keys expire after ttl.
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(token string) string {
	return redisSessionPrefix + token
}

func (s *RedisStore) Put(ctx context.Context, session PendingSession) error {
	fields := map[string]interface{}{
		"status":     string(session.Status),
		"created_at": strconv.FormatInt(session.CreatedAt.UnixMilli(), 10),
	}
	if session.User != nil {
		raw, err := json.Marshal(session.User)
		if err != nil {
			return fmt.Errorf("failed to encode session user: %w", err)
		}
		fields["user"] = string(raw)
	}

	key := sessionKey(session.Token)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if s.ttl > 0 {
		pipe.PExpire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, token string, cutoff time.Time) (*PendingSession, error) {
	values, err := s.client.HGetAll(ctx, sessionKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	session, err := decodeSession(token, values)
	if err != nil {
		return nil, err
	}
	if expired(session.CreatedAt, cutoff) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *RedisStore) Complete(ctx context.Context, token string, identity Identity, cutoff time.Time) (CompletionResult, error) {
	raw, err := json.Marshal(identity)
	if err != nil {
		return ResultNotFound, fmt.Errorf("failed to encode identity: %w", err)
	}

	code, err := completeScript.Run(ctx, s.client, []string{sessionKey(token)}, cutoff.UnixMilli(), string(raw)).Int()
	if err != nil {
		return ResultNotFound, fmt.Errorf("failed to complete session: %w", err)
	}
	switch code {
	case 1:
		return ResultCompleted, nil
	case 2:
		return ResultAlreadyCompleted, nil
	default:
		return ResultNotFound, nil
	}
}

func (s *RedisStore) Consume(ctx context.Context, token string, cutoff time.Time) (*PendingSession, error) {
	raw, err := consumeScript.Run(ctx, s.client, []string{sessionKey(token)}, cutoff.UnixMilli()).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to consume session: %w", err)
	}
	values := make(map[string]string, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		values[raw[i]] = raw[i+1]
	}
	return decodeSession(token, values)
}

func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	removed := 0
	iter := s.client.Scan(ctx, 0, redisSessionPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		created, err := s.client.HGet(ctx, key, "created_at").Int64()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return removed, fmt.Errorf("failed to read session %s: %w", key, err)
		}
		if created >= cutoff.UnixMilli() {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return removed, fmt.Errorf("failed to sweep session: %w", err)
		}
		removed += int(n)
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan sessions: %w", err)
	}
	return removed, nil
}

func decodeSession(token string, values map[string]string) (*PendingSession, error) {
	if len(values) == 0 {
		return nil, ErrSessionNotFound
	}
	createdMs, err := strconv.ParseInt(values["created_at"], 10, 64)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	session := &PendingSession{
		Token:     token,
		Status:    SessionStatus(values["status"]),
		CreatedAt: time.UnixMilli(createdMs).UTC(),
	}
	if raw := values["user"]; raw != "" {
		var user Identity
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("failed to decode session user: %w", err)
		}
		session.User = &user
	}
	return session, nil
}
