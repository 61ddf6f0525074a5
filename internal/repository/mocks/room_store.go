package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

// RoomStore 是 repository.RoomStore 的 Mock 实现
type RoomStore struct {
	mock.Mock
}

var _ repository.RoomStore = (*RoomStore)(nil)

func (m *RoomStore) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	args := m.Called(ctx, code)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *RoomStore) SaveRoom(ctx context.Context, room *domain.Room, ttl time.Duration) error {
	return m.Called(ctx, room, ttl).Error(0)
}

func (m *RoomStore) DeleteRoom(ctx context.Context, code string) error {
	return m.Called(ctx, code).Error(0)
}

func (m *RoomStore) RoomExists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *RoomStore) ListActiveRooms(ctx context.Context) ([]*domain.Room, error) {
	args := m.Called(ctx)
	rooms, _ := args.Get(0).([]*domain.Room)
	return rooms, args.Error(1)
}

func (m *RoomStore) IndexConnection(ctx context.Context, connectionID, code string, ttl time.Duration) error {
	return m.Called(ctx, connectionID, code, ttl).Error(0)
}

func (m *RoomStore) LookupConnection(ctx context.Context, connectionID string) (string, error) {
	args := m.Called(ctx, connectionID)
	return args.String(0), args.Error(1)
}

func (m *RoomStore) RemoveConnection(ctx context.Context, connectionID string) error {
	return m.Called(ctx, connectionID).Error(0)
}
