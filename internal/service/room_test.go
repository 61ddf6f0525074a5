package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
	"stop-game/internal/repository/mocks"
	"stop-game/internal/service"
)

func newMockedRoomService(store *mocks.RoomStore, locker *mocks.Locker, topics repository.TopicRepository) (*service.RoomService, *recordingNotifier) {
	notifier := &recordingNotifier{}
	svc := service.NewRoomService(store, locker, topics, notifier, &inlineDispatcher{}, service.DefaultOptions())
	return svc, notifier
}

func waitingRoom(names ...string) *domain.Room {
	room := domain.NewRoom("ROOM01", domain.DefaultSettings(), time.Hour, time.Now())
	for _, n := range names {
		room.AddPlayer(domain.NewPlayer(n, "conn-"+n, time.Now()))
	}
	room.ReplaceTopics(domain.DefaultTopics())
	return room
}

func TestRoomService_CreateRoom_RetriesOnCodeCollision(t *testing.T) {
	// Arrange
	store := new(mocks.RoomStore)
	topics := new(mocks.TopicRepository)
	svc, _ := newMockedRoomService(store, new(mocks.Locker), topics)
	ctx := context.Background()

	store.On("RoomExists", ctx, mock.AnythingOfType("string")).Return(true, nil).Once()
	store.On("RoomExists", ctx, mock.AnythingOfType("string")).Return(false, nil).Once()
	topics.On("FindDefaults", ctx).Return([]domain.Topic{domain.NewTopic("Animal", true, nil)}, nil).Once()
	store.On("SaveRoom", ctx, mock.MatchedBy(func(r *domain.Room) bool {
		return len(r.Players) == 1 && r.State == domain.StateWaiting && len(r.Topics) == 2
	}), mock.AnythingOfType("time.Duration")).Return(nil).Once()
	store.On("IndexConnection", ctx, "conn-1", mock.AnythingOfType("string"), 2*time.Hour).Return(nil).Once()

	// Act
	room, host, err := svc.CreateRoom(ctx, service.CreateRoomInput{
		HostName:         "Alice",
		ConnectionID:     "conn-1",
		UseDefaultTopics: true,
		CustomTopics:     []string{"Planets", "animal"},
	})

	// Assert
	require.NoError(t, err)
	assert.Regexp(t, `^[A-Z0-9]{6}$`, room.Code)
	assert.Equal(t, host.ID, room.HostUserID)
	assert.Equal(t, "Alice", host.Name)
	assert.Equal(t, "Animal", room.Topics[0].Name, "同名自定义话题应被去重")
	assert.Equal(t, "Planets", room.Topics[1].Name)
	store.AssertExpectations(t)
	topics.AssertExpectations(t)
}

func TestRoomService_CreateRoom_GivesUpAfterTooManyCollisions(t *testing.T) {
	store := new(mocks.RoomStore)
	svc, _ := newMockedRoomService(store, new(mocks.Locker), nil)
	ctx := context.Background()
	store.On("RoomExists", ctx, mock.AnythingOfType("string")).Return(true, nil).Times(10)

	_, _, err := svc.CreateRoom(ctx, service.CreateRoomInput{HostName: "Alice"})

	assert.ErrorIs(t, err, service.ErrCodeGenerationFail)
	store.AssertNotCalled(t, "SaveRoom", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestRoomService_CreateRoom_RejectsBlankName(t *testing.T) {
	store := new(mocks.RoomStore)
	svc, _ := newMockedRoomService(store, new(mocks.Locker), nil)

	_, _, err := svc.CreateRoom(context.Background(), service.CreateRoomInput{HostName: "   "})

	assert.ErrorIs(t, err, service.ErrValidation)
	store.AssertNotCalled(t, "RoomExists", mock.Anything, mock.Anything)
}

func TestRoomService_JoinRoom_NotFound(t *testing.T) {
	store := new(mocks.RoomStore)
	svc, _ := newMockedRoomService(store, new(mocks.Locker), nil)
	ctx := context.Background()
	store.On("GetRoom", ctx, "NOPE00").Return(nil, repository.ErrRoomNotFound).Once()

	_, _, err := svc.JoinRoom(ctx, "NOPE00", "Bob", "c2")

	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	store.AssertExpectations(t)
}

func TestRoomService_JoinRoom_PropagatesStoreError(t *testing.T) {
	store := new(mocks.RoomStore)
	svc, _ := newMockedRoomService(store, new(mocks.Locker), nil)
	ctx := context.Background()
	boom := errors.New("connection refused")
	store.On("GetRoom", ctx, "ROOM01").Return(nil, boom).Once()

	_, _, err := svc.JoinRoom(ctx, "ROOM01", "Bob", "c2")

	assert.ErrorIs(t, err, boom, "存储错误应原样向上传递")
	assert.False(t, service.IsClientError(err))
}

func TestRoomService_UpdateSettings_HostOnly(t *testing.T) {
	store := new(mocks.RoomStore)
	svc, _ := newMockedRoomService(store, new(mocks.Locker), nil)
	ctx := context.Background()
	room := waitingRoom("Alice", "Bob")
	store.On("GetRoom", ctx, "ROOM01").Return(room, nil)

	_, err := svc.UpdateSettings(ctx, "ROOM01", room.Players[1].ID, service.SettingsInput{MaxRounds: intPtr(3)})

	assert.ErrorIs(t, err, domain.ErrNotHost)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	store.AssertNotCalled(t, "SaveRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_UpdateSettings_ValidatesAndReplacesTopics(t *testing.T) {
	store := new(mocks.RoomStore)
	svc, notifier := newMockedRoomService(store, new(mocks.Locker), nil)
	ctx := context.Background()
	room := waitingRoom("Alice", "Bob")
	host := room.Players[0].ID
	store.On("GetRoom", ctx, "ROOM01").Return(room, nil)
	store.On("SaveRoom", ctx, room, mock.AnythingOfType("time.Duration")).Return(nil).Once()

	_, err := svc.UpdateSettings(ctx, "ROOM01", host, service.SettingsInput{MaxPlayers: intPtr(1)})
	assert.ErrorIs(t, err, service.ErrValidation, "上限不能小于当前人数")

	_, err = svc.UpdateSettings(ctx, "ROOM01", host, service.SettingsInput{RoundDurationSeconds: intPtr(5), MaxRounds: intPtr(2)})
	assert.ErrorIs(t, err, service.ErrValidation)
	assert.Equal(t, 5, room.Settings.MaxRounds, "校验失败时不应部分修改配置")

	updated, err := svc.UpdateSettings(ctx, "ROOM01", host, service.SettingsInput{
		MaxRounds: intPtr(3),
		Topics:    []string{"Fruit", "fruit", "River"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Settings.MaxRounds)
	require.Len(t, updated.Topics, 2)
	assert.Equal(t, "Fruit", updated.Topics[0].Name)
	assert.Equal(t, 1, notifier.count(service.EventRoomUpdated))
	store.AssertExpectations(t)
}

func TestRoomService_StartRound_ReleasesLockOnError(t *testing.T) {
	// Arrange: 只有一名玩家，开始回合会失败
	store := new(mocks.RoomStore)
	locker := new(mocks.Locker)
	lock := new(mocks.Lock)
	svc, _ := newMockedRoomService(store, locker, nil)
	ctx := context.Background()
	room := waitingRoom("Alice")

	locker.On("Acquire", ctx, "room:lock:ROOM01", service.DefaultOptions().Lock).Return(lock, nil).Once()
	lock.On("Release", mock.Anything).Return(nil).Once()
	store.On("GetRoom", ctx, "ROOM01").Return(room, nil).Once()

	// Act
	_, err := svc.StartRound(ctx, "ROOM01", room.Players[0].ID)

	// Assert
	assert.ErrorIs(t, err, domain.ErrNotEnoughPlayers)
	locker.AssertExpectations(t)
	lock.AssertExpectations(t)
	store.AssertNotCalled(t, "SaveRoom", mock.Anything, mock.Anything, mock.Anything)
}

func TestRoomService_StopRound_LockUnavailable(t *testing.T) {
	store := new(mocks.RoomStore)
	locker := new(mocks.Locker)
	svc, _ := newMockedRoomService(store, locker, nil)
	ctx := context.Background()
	locker.On("Acquire", ctx, "room:lock:ROOM01", mock.Anything).Return(nil, repository.ErrLockNotAcquired).Once()

	_, err := svc.StopRound(ctx, "ROOM01", uuid.New())

	assert.ErrorIs(t, err, domain.ErrLockUnavailable)
	store.AssertNotCalled(t, "GetRoom", mock.Anything, mock.Anything)
}

func TestRoomService_SubmitAnswers_Prechecks(t *testing.T) {
	store := new(mocks.RoomStore)
	svc, _ := newMockedRoomService(store, new(mocks.Locker), nil)
	ctx := context.Background()
	room := waitingRoom("Alice", "Bob")
	store.On("GetRoom", ctx, "ROOM01").Return(room, nil)

	err := svc.SubmitAnswers(ctx, "ROOM01", uuid.New(), nil)
	assert.ErrorIs(t, err, domain.ErrNotInRoom)

	err = svc.SubmitAnswers(ctx, "ROOM01", room.Players[0].ID, nil)
	assert.ErrorIs(t, err, domain.ErrRoundNotActive, "等待状态不能提交答案")
}

func TestRoomService_CastVotes_RequiresVotes(t *testing.T) {
	store := new(mocks.RoomStore)
	svc, _ := newMockedRoomService(store, new(mocks.Locker), nil)

	_, err := svc.CastVotes(context.Background(), "ROOM01", uuid.New(), nil)

	assert.ErrorIs(t, err, service.ErrValidation)
	store.AssertNotCalled(t, "GetRoom", mock.Anything, mock.Anything)
}

func TestRoomService_VotingData_RequiresVotingState(t *testing.T) {
	store := new(mocks.RoomStore)
	svc, _ := newMockedRoomService(store, new(mocks.Locker), nil)
	ctx := context.Background()
	store.On("GetRoom", ctx, "ROOM01").Return(waitingRoom("Alice"), nil)

	_, err := svc.VotingData(ctx, "ROOM01")

	var mismatch *domain.StateMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, domain.StateVoting, mismatch.Want)
}
