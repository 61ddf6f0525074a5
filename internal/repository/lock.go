package repository

import (
	"context"
	"time"
)

// LockOptions 分布式锁的持有时间与等待策略
type LockOptions struct {
	Hold    time.Duration // 锁自动过期时间
	MaxWait time.Duration // 获取锁的最长等待时间
	Retry   time.Duration // 两次尝试之间的间隔
}

// Lock 是已获取的锁。
type Lock interface {
	Key() string
	// Release 只会释放自己持有的锁；锁已过期被他人获取时不做任何事。
	Release(ctx context.Context) error
}

// Locker 按 key 授予有时限的互斥锁。等待超时返回 ErrLockNotAcquired。
type Locker interface {
	Acquire(ctx context.Context, key string, opts LockOptions) (Lock, error)
}
