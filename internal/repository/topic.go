package repository

import (
	"context"

	"github.com/google/uuid"

	"stop-game/internal/domain"
)

// TopicRepository 话题目录的持久化操作。
type TopicRepository interface {
	// FindDefaults 返回全部默认话题，按名称排序。
	FindDefaults(ctx context.Context) ([]domain.Topic, error)

	// FindByCreator 返回某用户创建的自定义话题。
	FindByCreator(ctx context.Context, userID uuid.UUID) ([]domain.Topic, error)

	// FindByID 不存在时返回 ErrTopicNotFound。
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error)

	// Save 创建话题，违反唯一约束时返回 ErrDuplicateEntry。
	Save(ctx context.Context, topic *domain.Topic) error

	// Delete 删除话题，不存在时返回 ErrTopicNotFound。
	Delete(ctx context.Context, id uuid.UUID) error

	// CountDefaults 用于迁移时判断是否需要写入默认话题。
	CountDefaults(ctx context.Context) (int64, error)
}
