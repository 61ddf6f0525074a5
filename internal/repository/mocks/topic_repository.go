package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

// TopicRepository 是 repository.TopicRepository 的 Mock 实现
type TopicRepository struct {
	mock.Mock
}

var _ repository.TopicRepository = (*TopicRepository)(nil)

func (m *TopicRepository) FindDefaults(ctx context.Context) ([]domain.Topic, error) {
	args := m.Called(ctx)
	topics, _ := args.Get(0).([]domain.Topic)
	return topics, args.Error(1)
}

func (m *TopicRepository) FindByCreator(ctx context.Context, userID uuid.UUID) ([]domain.Topic, error) {
	args := m.Called(ctx, userID)
	topics, _ := args.Get(0).([]domain.Topic)
	return topics, args.Error(1)
}

func (m *TopicRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Topic, error) {
	args := m.Called(ctx, id)
	topic, _ := args.Get(0).(*domain.Topic)
	return topic, args.Error(1)
}

func (m *TopicRepository) Save(ctx context.Context, topic *domain.Topic) error {
	return m.Called(ctx, topic).Error(0)
}

func (m *TopicRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *TopicRepository) CountDefaults(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
