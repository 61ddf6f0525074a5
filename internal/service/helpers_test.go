package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	redisstate "stop-game/internal/infra/state/redis"
	"stop-game/internal/repository"
	"stop-game/internal/service"
)

// recordingNotifier 记录所有广播的事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	Room    string
	Event   string
	Payload interface{}
}

func (n *recordingNotifier) Broadcast(_ context.Context, roomCode, event string, payload interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, recordedEvent{Room: roomCode, Event: event, Payload: payload})
	return nil
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e.Event == event {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) last(event string) (recordedEvent, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.events) - 1; i >= 0; i-- {
		if n.events[i].Event == event {
			return n.events[i], true
		}
	}
	return recordedEvent{}, false
}

// inlineDispatcher 同步执行答案提交，记录截止任务
type inlineDispatcher struct {
	mu         sync.Mutex
	submission *service.AnswerSubmissionService
	rounds     []uuid.UUID
	votings    []uuid.UUID
	submitErrs []error
}

func (d *inlineDispatcher) EnqueueAnswerSubmission(ctx context.Context, cmd service.SubmitAnswersCommand) error {
	err := d.submission.ProcessAnswers(ctx, cmd)
	d.mu.Lock()
	d.submitErrs = append(d.submitErrs, err)
	d.mu.Unlock()
	return nil
}

func (d *inlineDispatcher) ScheduleRoundDeadline(_ context.Context, _ string, roundID uuid.UUID, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rounds = append(d.rounds, roundID)
	return nil
}

func (d *inlineDispatcher) ScheduleVotingDeadline(_ context.Context, _ string, roundID uuid.UUID, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.votings = append(d.votings, roundID)
	return nil
}

// engine 是基于 miniredis 的完整会话引擎
type engine struct {
	mr         *miniredis.Miniredis
	store      *redisstate.RedisStateRepository
	rooms      *service.RoomService
	submission *service.AnswerSubmissionService
	notifier   *recordingNotifier
	dispatcher *inlineDispatcher
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := redisstate.NewRedisStateRepository(client, "test:")
	locker := redisstate.NewRedisLocker(client, "test:")
	opts := service.Options{
		RoomTTL: time.Hour,
		Lock:    repository.LockOptions{Hold: 5 * time.Second, MaxWait: 5 * time.Second, Retry: 5 * time.Millisecond},
	}
	notifier := &recordingNotifier{}
	dispatcher := &inlineDispatcher{}
	submission := service.NewAnswerSubmissionService(store, locker, notifier, dispatcher, opts)
	dispatcher.submission = submission
	rooms := service.NewRoomService(store, locker, nil, notifier, dispatcher, opts)

	return &engine{
		mr:         mr,
		store:      store,
		rooms:      rooms,
		submission: submission,
		notifier:   notifier,
		dispatcher: dispatcher,
	}
}

func intPtr(v int) *int { return &v }
