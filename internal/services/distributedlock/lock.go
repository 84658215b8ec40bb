// Package distributedlock serializes work on a key, either inside one
// process or across API replicas through Redis.
package distributedlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adminboard/backend-api/internal/logging"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const releaseTimeout = 2 * time.Second

// ErrLockHeld is returned by TryLock when another holder owns the key.
var ErrLockHeld = errors.New("lock already held")

// Locker provides distributed locking using Redis SET NX with a token.
type Locker struct {
	client redis.UniversalClient
	prefix string
	opts   LockOptions
	logger *logging.StandardLogger
}

// Lock represents an acquired distributed lock.
type Lock struct {
	key   string
	token string
}

// LockOptions configures lock behavior.
type LockOptions struct {
	// TTL bounds how long a crashed holder can block others.
	TTL time.Duration
	// WaitTimeout is how long Lock waits for acquisition.
	WaitTimeout time.Duration
	// RetryInterval is the delay between attempts while waiting.
	RetryInterval time.Duration
}

// DefaultLockOptions suit short critical sections such as account
// reconciliation.
func DefaultLockOptions() LockOptions {
	return LockOptions{
		TTL:           10 * time.Second,
		WaitTimeout:   5 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}
}

// releaseLockScript deletes the key only if the token still matches.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendLockScript extends the TTL only if the token still matches.
var extendLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// NewLocker creates a lock manager whose keys are namespaced by prefix.
func NewLocker(client redis.UniversalClient, prefix string, opts LockOptions, logger *logging.StandardLogger) *Locker {
	if opts.TTL <= 0 {
		opts.TTL = DefaultLockOptions().TTL
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultLockOptions().RetryInterval
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Locker{client: client, prefix: prefix, opts: opts, logger: logger.WithComponent("distributed_lock")}
}

// TryLock attempts to acquire a lock without waiting.
func (l *Locker) TryLock(ctx context.Context, key string) (*Lock, error) {
	if l.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	key = l.prefix + key
	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, l.opts.TTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return nil, ErrLockHeld
	}

	return &Lock{key: key, token: token}, nil
}

// Lock acquires the key, retrying until WaitTimeout elapses.
func (l *Locker) Lock(ctx context.Context, key string) (*Lock, error) {
	if l.opts.WaitTimeout <= 0 {
		return l.TryLock(ctx, key)
	}

	ctx, cancel := context.WithTimeout(ctx, l.opts.WaitTimeout)
	defer cancel()

	ticker := time.NewTicker(l.opts.RetryInterval)
	defer ticker.Stop()

	for {
		lock, err := l.TryLock(ctx, key)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockHeld) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Unlock releases a lock.
func (l *Locker) Unlock(ctx context.Context, lock *Lock) error {
	if lock == nil {
		return fmt.Errorf("lock is nil")
	}

	result, err := releaseLockScript.Run(ctx, l.client, []string{lock.key}, lock.token).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if result == 0 {
		return fmt.Errorf("lock was not held or token mismatch")
	}
	return nil
}

// Extend pushes the expiry of an acquired lock out by ttl.
func (l *Locker) Extend(ctx context.Context, lock *Lock, ttl time.Duration) error {
	if lock == nil {
		return fmt.Errorf("lock is nil")
	}

	result, err := extendLockScript.Run(ctx, l.client, []string{lock.key}, lock.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend lock: %w", err)
	}
	if result == 0 {
		return fmt.Errorf("lock was not held or token mismatch")
	}
	return nil
}

// Acquire locks key and returns the matching release func. While held, the
// lock is extended every TTL/2 so a slow holder keeps it. The release uses
// its own short timeout so a cancelled request still frees the key.
func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := l.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(lock, stop, done)

	return func() {
		close(stop)
		<-done

		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := l.Unlock(releaseCtx, lock); err != nil {
			l.logger.WithError(err).Warn("Failed to release lock", zap.String("key", lock.key))
		}
	}, nil
}

func (l *Locker) keepAlive(lock *Lock, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.opts.TTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			err := l.Extend(ctx, lock, l.opts.TTL)
			cancel()
			if err != nil {
				l.logger.WithError(err).Warn("Failed to extend lock", zap.String("key", lock.key))
				return
			}
		}
	}
}
