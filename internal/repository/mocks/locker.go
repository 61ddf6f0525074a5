package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"stop-game/internal/repository"
)

// Locker 是 repository.Locker 的 Mock 实现
type Locker struct {
	mock.Mock
}

var _ repository.Locker = (*Locker)(nil)

func (m *Locker) Acquire(ctx context.Context, key string, opts repository.LockOptions) (repository.Lock, error) {
	args := m.Called(ctx, key, opts)
	lock, _ := args.Get(0).(repository.Lock)
	return lock, args.Error(1)
}

// Lock 是 repository.Lock 的 Mock 实现
type Lock struct {
	mock.Mock
}

var _ repository.Lock = (*Lock)(nil)

func (m *Lock) Key() string {
	return m.Called().String(0)
}

func (m *Lock) Release(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
