package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

// AnswerSubmissionService 串行化同一房间的答案提交，并在最后一名玩家提交时结束回合。
type AnswerSubmissionService struct {
	session
}

func NewAnswerSubmissionService(
	store repository.RoomStore,
	locker repository.Locker,
	notifier Notifier,
	dispatcher Dispatcher,
	opts Options,
) *AnswerSubmissionService {
	return &AnswerSubmissionService{session: newSession(store, locker, notifier, dispatcher, opts)}
}

// ProcessAnswers 在房间锁内合并答案。
// 拿不到锁时记录警告并放弃本次提交，返回 nil；业务错误原样返回，由调用方决定不重试。
func (s *AnswerSubmissionService) ProcessAnswers(ctx context.Context, cmd SubmitAnswersCommand) error {
	logCtx := logrus.WithFields(logrus.Fields{
		"room_code": cmd.RoomCode,
		"player_id": cmd.PlayerID,
		"answers":   len(cmd.Answers),
	})

	err := s.withRoomLock(ctx, cmd.RoomCode, func(room *domain.Room) error {
		if err := room.SubmitAnswers(cmd.PlayerID, cmd.Answers, s.now()); err != nil {
			return err
		}

		if room.AllPlayersSubmitted() {
			logCtx.Info("All players submitted, closing round")
			return s.closeRound(ctx, room, StopReasonAllSubmitted)
		}

		if err := s.saveRoom(ctx, room); err != nil {
			return err
		}
		s.broadcastRoom(ctx, room)
		return nil
	})

	if errors.Is(err, domain.ErrLockUnavailable) {
		logCtx.Warn("Room lock unavailable, answer submission skipped")
		return nil
	}
	if err != nil {
		logCtx.WithError(err).Warn("Answer submission failed")
		return err
	}
	logCtx.Debug("Answer submission processed")
	return nil
}
