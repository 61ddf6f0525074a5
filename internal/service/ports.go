package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stop-game/internal/repository"
)

// Notifier 向房间内所有连接广播事件，尽力而为。
type Notifier interface {
	Broadcast(ctx context.Context, roomCode, event string, payload interface{}) error
}

// SubmitAnswersCommand 是一次答案提交，由后台任务执行
type SubmitAnswersCommand struct {
	RoomCode string               `json:"room_code"`
	PlayerID uuid.UUID            `json:"player_id"`
	Answers  map[uuid.UUID]string `json:"answers"`
}

// Dispatcher 把动作交给后台任务执行，至少执行一次。
type Dispatcher interface {
	EnqueueAnswerSubmission(ctx context.Context, cmd SubmitAnswersCommand) error
	ScheduleRoundDeadline(ctx context.Context, roomCode string, roundID uuid.UUID, delay time.Duration) error
	ScheduleVotingDeadline(ctx context.Context, roomCode string, roundID uuid.UUID, delay time.Duration) error
}

// Options 房间会话的时间参数
type Options struct {
	RoomTTL time.Duration
	Lock    repository.LockOptions
}

// DefaultOptions 房间存活 2 小时；锁持有 10s，最多等待 5s，每 1s 重试
func DefaultOptions() Options {
	return Options{
		RoomTTL: 2 * time.Hour,
		Lock: repository.LockOptions{
			Hold:    10 * time.Second,
			MaxWait: 5 * time.Second,
			Retry:   time.Second,
		},
	}
}
