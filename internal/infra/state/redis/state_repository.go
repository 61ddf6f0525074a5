package redisstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

// RedisStateRepository 是 RoomStore、RateLimiter 和 EventBus 的 Redis 实现
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository 创建 RedisStateRepository 实例
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "sg:" // 默认前缀 "sg:" (stop game)
	}
	return &RedisStateRepository{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// --- Key Generation Helpers ---
func (r *RedisStateRepository) roomKey(code string) string {
	return fmt.Sprintf("%sroom:%s", r.keyPrefix, code)
}

func (r *RedisStateRepository) connectionKey(connectionID string) string {
	return fmt.Sprintf("%sconnection:%s", r.keyPrefix, connectionID)
}

func (r *RedisStateRepository) activeRoomsKey() string {
	return r.keyPrefix + "active_rooms"
}

func (r *RedisStateRepository) roomEventsChannel(code string) string {
	return fmt.Sprintf("%sroom:%s:events", r.keyPrefix, code)
}

// --- RoomStore Implementation ---

// GetRoom 读取并反序列化房间记录
func (r *RedisStateRepository) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	key := r.roomKey(code)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("redis: failed to get room %s from %s: %w", code, key, err)
	}
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("redis: failed to unmarshal room %s: %w", code, err)
	}
	return &room, nil
}

// SaveRoom 在一个事务中覆盖房间记录并刷新活跃集合
func (r *RedisStateRepository) SaveRoom(ctx context.Context, room *domain.Room, ttl time.Duration) error {
	payload, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: failed to marshal room %s: %w", room.Code, err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.roomKey(room.Code), payload, ttl)
		pipe.SAdd(ctx, r.activeRoomsKey(), room.Code)
		pipe.Expire(ctx, r.activeRoomsKey(), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to save room %s: %w", room.Code, err)
	}
	return nil
}

// DeleteRoom 删除房间记录和活跃集合成员
func (r *RedisStateRepository) DeleteRoom(ctx context.Context, code string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.roomKey(code))
		pipe.SRem(ctx, r.activeRoomsKey(), code)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: failed to delete room %s: %w", code, err)
	}
	return nil
}

func (r *RedisStateRepository) RoomExists(ctx context.Context, code string) (bool, error) {
	n, err := r.client.Exists(ctx, r.roomKey(code)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to check room %s: %w", code, err)
	}
	return n > 0, nil
}

// ListActiveRooms 批量读取活跃房间；记录已过期的成员会从集合中移除
func (r *RedisStateRepository) ListActiveRooms(ctx context.Context) ([]*domain.Room, error) {
	codes, err := r.client.SMembers(ctx, r.activeRoomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to list active rooms: %w", err)
	}
	rooms := make([]*domain.Room, 0, len(codes))
	if len(codes) == 0 {
		return rooms, nil
	}

	keys := make([]string, len(codes))
	for i, code := range codes {
		keys[i] = r.roomKey(code)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: failed to load active rooms: %w", err)
	}

	var stale []interface{}
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, codes[i])
			continue
		}
		var room domain.Room
		if err := json.Unmarshal([]byte(raw), &room); err != nil {
			logrus.WithField("room_code", codes[i]).WithError(err).Warn("redis: skipping unreadable room record")
			continue
		}
		rooms = append(rooms, &room)
	}
	if len(stale) > 0 {
		if err := r.client.SRem(ctx, r.activeRoomsKey(), stale...).Err(); err != nil {
			logrus.WithError(err).Warn("redis: failed to prune stale active room codes")
		}
	}
	return rooms, nil
}

// --- Connection Index ---

func (r *RedisStateRepository) IndexConnection(ctx context.Context, connectionID, code string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.connectionKey(connectionID), code, ttl).Err(); err != nil {
		return fmt.Errorf("redis: failed to index connection %s: %w", connectionID, err)
	}
	return nil
}

func (r *RedisStateRepository) LookupConnection(ctx context.Context, connectionID string) (string, error) {
	code, err := r.client.Get(ctx, r.connectionKey(connectionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis: failed to look up connection %s: %w", connectionID, err)
	}
	return code, nil
}

func (r *RedisStateRepository) RemoveConnection(ctx context.Context, connectionID string) error {
	if err := r.client.Del(ctx, r.connectionKey(connectionID)).Err(); err != nil {
		return fmt.Errorf("redis: failed to remove connection %s: %w", connectionID, err)
	}
	return nil
}

// --- Rate Limiting ---

// CheckRateLimit 检查给定 key 的请求频率是否超限，并递增计数。
func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = r.keyPrefix + "ratelimit:" + key
	pipe := r.client.Pipeline()
	incrCmd := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: pipeline failed for rate limit check on key %s: %w", key, err)
	}
	count, err := incrCmd.Result()
	if err != nil {
		return false, fmt.Errorf("redis: failed to get incr result for rate limit on key %s: %w", key, err)
	}
	return count > int64(limit), nil
}

// --- PubSub ---

// PublishRoomEvent 把已编码的事件发布到房间频道
func (r *RedisStateRepository) PublishRoomEvent(ctx context.Context, code string, payload []byte) error {
	channel := r.roomEventsChannel(code)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"channel":      channel,
			"payload_size": len(payload),
			"room_code":    code,
		}).WithError(err).Error("Redis Publish failed")
		return fmt.Errorf("redis: failed to publish event to channel %s: %w", channel, err)
	}
	return nil
}

// SubscribeRoomEvents 订阅房间频道。返回的 channel 在订阅关闭后关闭。
func (r *RedisStateRepository) SubscribeRoomEvents(ctx context.Context, code string) (<-chan []byte, func() error, error) {
	channel := r.roomEventsChannel(code)
	pubsub := r.client.Subscribe(ctx, channel)
	// 等待订阅确认，确保之后发布的消息不会丢失
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis: failed to subscribe to %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = pubsub.Close()
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					_ = pubsub.Close()
					return
				}
			}
		}
	}()
	return out, pubsub.Close, nil
}
