package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"stop-game/internal/service"
)

// Enqueuer 是 *asynq.Client 中用到的部分
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher 通过 asynq 实现 service.Dispatcher
type Dispatcher struct {
	client Enqueuer
}

var _ service.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(client Enqueuer) *Dispatcher {
	if client == nil {
		panic("asynq client cannot be nil for Dispatcher")
	}
	return &Dispatcher{client: client}
}

// EnqueueAnswerSubmission 答案提交进入 critical 队列，失败时最多重试 3 次
func (d *Dispatcher) EnqueueAnswerSubmission(ctx context.Context, cmd service.SubmitAnswersCommand) error {
	payload, err := NewAnswerSubmissionTask(cmd)
	if err != nil {
		return fmt.Errorf("marshal answer submission task: %w", err)
	}
	task := asynq.NewTask(TypeAnswerSubmission, payload)
	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(3),
		asynq.Timeout(30*time.Second),
	)
	if err != nil {
		return fmt.Errorf("enqueue answer submission: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"task_id":   info.ID,
		"room_code": cmd.RoomCode,
		"player_id": cmd.PlayerID,
	}).Debug("Answer submission enqueued")
	return nil
}

func (d *Dispatcher) ScheduleRoundDeadline(ctx context.Context, roomCode string, roundID uuid.UUID, delay time.Duration) error {
	return d.scheduleDeadline(ctx, TypeRoundDeadline, roomCode, roundID, delay)
}

func (d *Dispatcher) ScheduleVotingDeadline(ctx context.Context, roomCode string, roundID uuid.UUID, delay time.Duration) error {
	return d.scheduleDeadline(ctx, TypeVotingDeadline, roomCode, roundID, delay)
}

// scheduleDeadline 以 (类型, 回合) 作为任务 id，同一截止任务只会入队一次
func (d *Dispatcher) scheduleDeadline(ctx context.Context, taskType, roomCode string, roundID uuid.UUID, delay time.Duration) error {
	payload, err := NewDeadlineTask(roomCode, roundID)
	if err != nil {
		return fmt.Errorf("marshal %s task: %w", taskType, err)
	}
	task := asynq.NewTask(taskType, payload)
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.ProcessIn(delay),
		asynq.TaskID(DeadlineTaskID(taskType, roundID)),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

func DeadlineTaskID(taskType string, roundID uuid.UUID) string {
	return taskType + ":" + roundID.String()
}
