package repository

import (
	"context"
	"time"

	"stop-game/internal/domain"
)

// RoomStore 是房间会话的键值存储，通常由 Redis 实现。
// 每次写入都覆盖整条房间记录并刷新过期时间。
type RoomStore interface {
	// GetRoom 读取房间，不存在时返回 ErrRoomNotFound。
	GetRoom(ctx context.Context, code string) (*domain.Room, error)

	// SaveRoom 原子地覆盖房间记录，并把房间码加入活跃集合。
	SaveRoom(ctx context.Context, room *domain.Room, ttl time.Duration) error

	// DeleteRoom 删除房间记录并从活跃集合移除。
	DeleteRoom(ctx context.Context, code string) error

	// RoomExists 用于创建房间时检查房间码冲突。
	RoomExists(ctx context.Context, code string) (bool, error)

	// ListActiveRooms 返回活跃集合中仍然存在的房间，顺带清理已过期的集合成员。
	ListActiveRooms(ctx context.Context) ([]*domain.Room, error)

	// === Connection Index ===

	IndexConnection(ctx context.Context, connectionID, code string, ttl time.Duration) error

	// LookupConnection 返回连接所属的房间码，不存在时返回 ErrNotFound。
	LookupConnection(ctx context.Context, connectionID string) (string, error)

	RemoveConnection(ctx context.Context, connectionID string) error
}

// RateLimiter 固定窗口计数限流。
type RateLimiter interface {
	// CheckRateLimit 递增计数，超限时返回 true。
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventBus 跨进程的房间事件通道。
type EventBus interface {
	PublishRoomEvent(ctx context.Context, code string, payload []byte) error
	// SubscribeRoomEvents 订阅房间事件，ctx 结束或调用返回的 close 函数时停止。
	SubscribeRoomEvents(ctx context.Context, code string) (<-chan []byte, func() error, error)
}
