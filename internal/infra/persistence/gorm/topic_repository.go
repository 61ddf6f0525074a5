package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

// GormTopicRepository 是 TopicRepository 接口的 GORM 实现
type GormTopicRepository struct {
	db *gorm.DB
}

// NewGormTopicRepository 创建 GormTopicRepository 实例
func NewGormTopicRepository(db *gorm.DB) *GormTopicRepository {
	if db == nil {
		panic("database connection cannot be nil for GormTopicRepository")
	}
	return &GormTopicRepository{db: db}
}

// FindDefaults 查询全部默认话题
func (r *GormTopicRepository) FindDefaults(ctx context.Context) ([]domain.Topic, error) {
	var topics []domain.Topic
	err := r.db.WithContext(ctx).Where("is_default = ?", true).Order("name").Find(&topics).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find default topics: %w", err)
	}
	return topics, nil
}

// FindByCreator 查询某用户创建的自定义话题
func (r *GormTopicRepository) FindByCreator(ctx context.Context, userID uuid.UUID) ([]domain.Topic, error) {
	var topics []domain.Topic
	err := r.db.WithContext(ctx).
		Where("created_by_user_id = ? AND is_default = ?", userID, false).
		Order("created_at").
		Find(&topics).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find topics created by %s: %w", userID, err)
	}
	return topics, nil
}

func (r *GormTopicRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error) {
	var topic domain.Topic
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&topic).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrTopicNotFound
		}
		return nil, fmt.Errorf("gorm: find topic by id %s: %w", id, err)
	}
	return &topic, nil
}

// Save 创建话题
func (r *GormTopicRepository) Save(ctx context.Context, topic *domain.Topic) error {
	if topic.ID == uuid.Nil {
		topic.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(topic).Error; err != nil {
		if isDuplicateEntryError(err) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save topic (id: %s, name: %s): %w", topic.ID, topic.Name, err)
	}
	return nil
}

func (r *GormTopicRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Topic{})
	if result.Error != nil {
		return fmt.Errorf("gorm: delete topic %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrTopicNotFound
	}
	return nil
}

func (r *GormTopicRepository) CountDefaults(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Topic{}).Where("is_default = ?", true).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("gorm: count default topics: %w", err)
	}
	return count, nil
}
