package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

// session 是 RoomService 与 AnswerSubmissionService 共用的读写、加锁与广播逻辑。
// 房间不在调用之间缓存，每次都从存储重新读取。
type session struct {
	store      repository.RoomStore
	locker     repository.Locker
	notifier   Notifier
	dispatcher Dispatcher
	opts       Options
	now        func() time.Time
}

func newSession(store repository.RoomStore, locker repository.Locker, notifier Notifier, dispatcher Dispatcher, opts Options) session {
	if store == nil || locker == nil || notifier == nil || dispatcher == nil {
		panic("store, locker, notifier and dispatcher must be non-nil")
	}
	if opts.RoomTTL <= 0 {
		opts.RoomTTL = DefaultOptions().RoomTTL
	}
	if opts.Lock.Hold <= 0 {
		opts.Lock = DefaultOptions().Lock
	}
	return session{
		store:      store,
		locker:     locker,
		notifier:   notifier,
		dispatcher: dispatcher,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func lockKey(code string) string { return "room:lock:" + code }

// loadRoom 读取房间；已过期的房间视为不存在
func (s *session) loadRoom(ctx context.Context, code string) (*domain.Room, error) {
	room, err := s.store.GetRoom(ctx, code)
	if err != nil {
		return nil, mapRepoError(err, domain.ErrRoomNotFound, "load room "+code)
	}
	if room.IsExpired(s.now()) {
		return nil, domain.ErrRoomNotFound
	}
	return room, nil
}

// saveRoom 覆盖房间记录，TTL 取房间剩余存活时间
func (s *session) saveRoom(ctx context.Context, room *domain.Room) error {
	ttl := s.opts.RoomTTL
	if room.ExpiresAt != nil {
		if left := room.ExpiresAt.Sub(s.now()); left > 0 && left < ttl {
			ttl = left
		}
	}
	if err := s.store.SaveRoom(ctx, room, ttl); err != nil {
		return fmt.Errorf("save room %s: %w", room.Code, err)
	}
	return nil
}

// withRoomLock 持有房间锁执行 fn，fn 收到的是加锁后重新读取的房间。
// 等锁超时返回 domain.ErrLockUnavailable。锁总会被释放。
func (s *session) withRoomLock(ctx context.Context, code string, fn func(room *domain.Room) error) error {
	lock, err := s.locker.Acquire(ctx, lockKey(code), s.opts.Lock)
	if err != nil {
		if errors.Is(err, repository.ErrLockNotAcquired) {
			return fmt.Errorf("room %s: %w", code, domain.ErrLockUnavailable)
		}
		return fmt.Errorf("acquire lock for room %s: %w", code, err)
	}
	defer func() {
		// 使用独立的 context，调用方取消后仍然释放锁
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			logrus.WithField("room_code", code).WithError(err).Error("Failed to release room lock")
		}
	}()

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	return fn(room)
}

// broadcast 推送失败只记录日志
func (s *session) broadcast(ctx context.Context, code, event string, payload interface{}) {
	if err := s.notifier.Broadcast(ctx, code, event, payload); err != nil {
		logrus.WithFields(logrus.Fields{"room_code": code, "event": event}).
			WithError(err).Warn("Failed to broadcast room event")
	}
}

func (s *session) broadcastRoom(ctx context.Context, room *domain.Room) {
	s.broadcast(ctx, room.Code, EventRoomUpdated, NewRoomView(room, s.now()))
}

func (s *session) notifyChat(ctx context.Context, code, message string) {
	s.broadcast(ctx, code, EventChatNotification, ChatPayload{Message: message, SentAt: s.now()})
}

// closeRound 结束当前回合进入投票，保存并推送投票数据，然后安排投票截止任务。
// 调用方必须持有房间锁。
func (s *session) closeRound(ctx context.Context, room *domain.Room, reason string) error {
	round := room.CurrentRound()
	if err := room.EndCurrentRound(s.now()); err != nil {
		return err
	}
	if err := s.saveRoom(ctx, room); err != nil {
		return err
	}

	s.broadcastRoom(ctx, room)
	s.broadcast(ctx, room.Code, EventRoundStopped, RoundStoppedPayload{RoundID: round.ID, Reason: reason})
	s.broadcast(ctx, room.Code, EventVoteStarted, VoteStartedPayload{
		RoundID:         round.ID,
		Letter:          round.Letter,
		DurationSeconds: room.Settings.VotingDurationSeconds,
		Groups:          room.VoteGroups(),
	})
	s.notifyChat(ctx, room.Code, "Voting started!")

	if err := s.dispatcher.ScheduleVotingDeadline(ctx, room.Code, round.ID, room.Settings.VotingDuration()); err != nil {
		logrus.WithFields(logrus.Fields{"room_code": room.Code, "round_id": round.ID}).
			WithError(err).Warn("Failed to schedule voting deadline")
	}
	return nil
}

// finishVoting 结算分数并结束投票阶段。调用方必须持有房间锁。
func (s *session) finishVoting(ctx context.Context, room *domain.Room) error {
	if _, err := room.FinishVoting(); err != nil {
		return err
	}
	if err := s.saveRoom(ctx, room); err != nil {
		return err
	}

	s.broadcastRoom(ctx, room)
	if room.State == domain.StateFinished {
		s.broadcast(ctx, room.Code, EventGameFinished, GameFinishedPayload{Leaderboard: room.Leaderboard()})
		s.notifyChat(ctx, room.Code, "Game over!")
	}
	return nil
}
