package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
	"stop-game/internal/repository/mocks"
	"stop-game/internal/service"
)

func TestTopicService_CreateCustom(t *testing.T) {
	repo := new(mocks.TopicRepository)
	svc := service.NewTopicService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("Save", ctx, mock.MatchedBy(func(topic *domain.Topic) bool {
		return topic.Name == "Rivers" && !topic.IsDefault && *topic.CreatedByUserID == userID
	})).Return(nil).Once()

	topic, err := svc.CreateCustom(ctx, userID, "  Rivers ")

	require.NoError(t, err)
	assert.Equal(t, "Rivers", topic.Name)
	repo.AssertExpectations(t)
}

func TestTopicService_CreateCustom_Duplicate(t *testing.T) {
	repo := new(mocks.TopicRepository)
	svc := service.NewTopicService(repo)
	ctx := context.Background()
	repo.On("Save", ctx, mock.Anything).Return(repository.ErrDuplicateEntry).Once()

	_, err := svc.CreateCustom(ctx, uuid.New(), "Rivers")

	assert.ErrorIs(t, err, service.ErrTopicTaken)
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestTopicService_CreateCustom_RejectsBlank(t *testing.T) {
	repo := new(mocks.TopicRepository)
	svc := service.NewTopicService(repo)

	_, err := svc.CreateCustom(context.Background(), uuid.New(), " ")

	assert.ErrorIs(t, err, service.ErrValidation)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestTopicService_DeleteCustom_OwnerOnly(t *testing.T) {
	repo := new(mocks.TopicRepository)
	svc := service.NewTopicService(repo)
	ctx := context.Background()
	owner := uuid.New()
	topic := domain.NewTopic("Rivers", false, &owner)
	defaultTopic := domain.NewTopic("Animal", true, nil)

	repo.On("FindByID", ctx, topic.ID).Return(&topic, nil)
	repo.On("FindByID", ctx, defaultTopic.ID).Return(&defaultTopic, nil)
	repo.On("Delete", ctx, topic.ID).Return(nil).Once()

	assert.ErrorIs(t, svc.DeleteCustom(ctx, uuid.New(), topic.ID), domain.ErrUnauthorized, "只有创建者能删除")
	assert.ErrorIs(t, svc.DeleteCustom(ctx, owner, defaultTopic.ID), domain.ErrUnauthorized, "默认话题不能删除")
	assert.NoError(t, svc.DeleteCustom(ctx, owner, topic.ID))
	repo.AssertExpectations(t)
}

func TestTopicService_Get_NotFound(t *testing.T) {
	repo := new(mocks.TopicRepository)
	svc := service.NewTopicService(repo)
	ctx := context.Background()
	id := uuid.New()
	repo.On("FindByID", ctx, id).Return(nil, repository.ErrTopicNotFound).Once()

	_, err := svc.Get(ctx, id)

	assert.ErrorIs(t, err, domain.ErrTopicNotFound)
}
