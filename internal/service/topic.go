package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

const maxTopicNameLength = 50

// TopicService 管理话题目录：默认话题和用户自定义话题
type TopicService struct {
	topics repository.TopicRepository
}

func NewTopicService(topics repository.TopicRepository) *TopicService {
	if topics == nil {
		panic("TopicRepository cannot be nil for TopicService")
	}
	return &TopicService{topics: topics}
}

func (s *TopicService) ListDefaults(ctx context.Context) ([]domain.Topic, error) {
	topics, err := s.topics.FindDefaults(ctx)
	if err != nil {
		return nil, mapRepoError(err, domain.ErrTopicNotFound, "list default topics")
	}
	return topics, nil
}

func (s *TopicService) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Topic, error) {
	topics, err := s.topics.FindByCreator(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, domain.ErrTopicNotFound, "list user topics")
	}
	return topics, nil
}

func (s *TopicService) Get(ctx context.Context, id uuid.UUID) (*domain.Topic, error) {
	topic, err := s.topics.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, domain.ErrTopicNotFound, "get topic")
	}
	return topic, nil
}

// CreateCustom 为用户创建自定义话题，同名话题返回 ErrTopicTaken
func (s *TopicService) CreateCustom(ctx context.Context, userID uuid.UUID, name string) (*domain.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxTopicNameLength {
		return nil, validationError("topic name must be 1-%d characters", maxTopicNameLength)
	}
	owner := userID
	topic := domain.NewTopic(name, false, &owner)
	if err := s.topics.Save(ctx, &topic); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, ErrTopicTaken
		}
		return nil, mapRepoError(err, domain.ErrTopicNotFound, "create topic")
	}
	logrus.WithFields(logrus.Fields{"topic_id": topic.ID, "user_id": userID}).Info("Custom topic created")
	return &topic, nil
}

// DeleteCustom 只允许创建者删除自己的自定义话题
func (s *TopicService) DeleteCustom(ctx context.Context, userID, topicID uuid.UUID) error {
	topic, err := s.Get(ctx, topicID)
	if err != nil {
		return err
	}
	if topic.IsDefault || topic.CreatedByUserID == nil || *topic.CreatedByUserID != userID {
		return domain.ErrUnauthorized
	}
	if err := s.topics.Delete(ctx, topicID); err != nil {
		return mapRepoError(err, domain.ErrTopicNotFound, "delete topic")
	}
	logrus.WithFields(logrus.Fields{"topic_id": topicID, "user_id": userID}).Info("Custom topic deleted")
	return nil
}
