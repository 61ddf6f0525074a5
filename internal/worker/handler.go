package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"stop-game/internal/service"
	"stop-game/internal/tasks"
)

// AnswerProcessor 串行化的答案提交流水线
type AnswerProcessor interface {
	ProcessAnswers(ctx context.Context, cmd service.SubmitAnswersCommand) error
}

// DeadlineRunner 回合与投票的截止动作，按回合 id 幂等
type DeadlineRunner interface {
	ExpireRound(ctx context.Context, code string, roundID uuid.UUID) error
	ExpireVoting(ctx context.Context, code string, roundID uuid.UUID) error
}

// RoomPurger 清理过期房间
type RoomPurger interface {
	PurgeExpiredRooms(ctx context.Context) (int, error)
}

// taskLogger 为任务构造带上下文的日志条目
func taskLogger(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
}

// taskError 业务错误（房间不存在、状态不符、无权限）不再重试，其他错误交给 asynq 重试
func taskError(err error) error {
	if err == nil {
		return nil
	}
	if service.IsClientError(err) {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

// AnswerSubmissionHandler 处理答案提交任务
type AnswerSubmissionHandler struct {
	processor AnswerProcessor
}

func NewAnswerSubmissionHandler(processor AnswerProcessor) *AnswerSubmissionHandler {
	if processor == nil {
		panic("AnswerProcessor cannot be nil for AnswerSubmissionHandler")
	}
	return &AnswerSubmissionHandler{processor: processor}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *AnswerSubmissionHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var payload tasks.AnswerSubmissionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{
		"room_code": payload.Command.RoomCode,
		"player_id": payload.Command.PlayerID,
	})

	if err := h.processor.ProcessAnswers(ctx, payload.Command); err != nil {
		logCtx.WithError(err).Warn("Answer submission task failed")
		return taskError(err)
	}
	logCtx.Debug("Answer submission task processed")
	return nil
}

// DeadlineHandler 处理回合与投票截止任务
type DeadlineHandler struct {
	runner DeadlineRunner
}

func NewDeadlineHandler(runner DeadlineRunner) *DeadlineHandler {
	if runner == nil {
		panic("DeadlineRunner cannot be nil for DeadlineHandler")
	}
	return &DeadlineHandler{runner: runner}
}

// ProcessTask 根据任务类型结束回合或投票
func (h *DeadlineHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)

	var payload tasks.DeadlinePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	logCtx = logCtx.WithFields(logrus.Fields{"room_code": payload.RoomCode, "round_id": payload.RoundID})

	var err error
	switch t.Type() {
	case tasks.TypeRoundDeadline:
		err = h.runner.ExpireRound(ctx, payload.RoomCode, payload.RoundID)
	case tasks.TypeVotingDeadline:
		err = h.runner.ExpireVoting(ctx, payload.RoomCode, payload.RoundID)
	default:
		return fmt.Errorf("unexpected task type %q: %w", t.Type(), asynq.SkipRetry)
	}
	if err != nil {
		logCtx.WithError(err).Warn("Deadline task failed")
		return taskError(err)
	}
	logCtx.Info("Deadline task processed")
	return nil
}

// RoomCleanupHandler 处理周期清理任务
type RoomCleanupHandler struct {
	purger RoomPurger
}

func NewRoomCleanupHandler(purger RoomPurger) *RoomCleanupHandler {
	if purger == nil {
		panic("RoomPurger cannot be nil for RoomCleanupHandler")
	}
	return &RoomCleanupHandler{purger: purger}
}

func (h *RoomCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogger(ctx, t)
	purged, err := h.purger.PurgeExpiredRooms(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Room cleanup failed")
		return err
	}
	logCtx.WithField("purged", purged).Info("Room cleanup task processed")
	return nil
}
