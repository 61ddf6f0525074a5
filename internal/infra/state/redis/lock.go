package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"stop-game/internal/repository"
)

// 只有持有者 token 匹配时才删除 key
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker 基于 SET NX PX 的分布式锁
type RedisLocker struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisLocker(client *redis.Client, keyPrefix string) *RedisLocker {
	if client == nil {
		panic("redis client cannot be nil for RedisLocker")
	}
	if keyPrefix == "" {
		keyPrefix = "sg:"
	}
	return &RedisLocker{client: client, keyPrefix: keyPrefix}
}

// Acquire 在 MaxWait 内每隔 Retry 尝试一次，超时返回 repository.ErrLockNotAcquired。
func (l *RedisLocker) Acquire(ctx context.Context, key string, opts repository.LockOptions) (repository.Lock, error) {
	if opts.Hold <= 0 {
		return nil, fmt.Errorf("redis lock: hold duration must be positive")
	}
	if opts.Retry <= 0 {
		opts.Retry = 100 * time.Millisecond
	}
	fullKey := l.keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(opts.MaxWait)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, opts.Hold).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock: failed to acquire %s: %w", fullKey, err)
		}
		if ok {
			return &redisLock{client: l.client, key: fullKey, token: token}, nil
		}

		wait := opts.Retry
		if left := time.Until(deadline); left <= 0 {
			return nil, fmt.Errorf("%w: %s", repository.ErrLockNotAcquired, fullKey)
		} else if left < wait {
			wait = left
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Key() string { return l.key }

func (l *redisLock) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis lock: failed to release %s: %w", l.key, err)
	}
	return nil
}
