package worker

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"stop-game/internal/tasks"
)

// Scheduler 周期性地投递过期房间清理任务
type Scheduler struct {
	scheduler *asynq.Scheduler
	log       *logrus.Entry
}

// NewScheduler schedule 使用 cron 语法或 "@every 10m"
func NewScheduler(redisOpt asynq.RedisClientOpt, schedule string, logger *logrus.Logger) (*Scheduler, error) {
	logEntry := logger.WithField("component", "scheduler")
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{Logger: logEntry})

	payload, err := tasks.NewRoomCleanupTask()
	if err != nil {
		return nil, fmt.Errorf("failed to create room cleanup task payload: %w", err)
	}
	task := asynq.NewTask(tasks.TypeRoomCleanup, payload)
	entryID, err := scheduler.Register(schedule, task, asynq.Queue(tasks.QueueLow))
	if err != nil {
		return nil, fmt.Errorf("could not register room cleanup task: %w", err)
	}
	logEntry.Infof("Room cleanup task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	return &Scheduler{scheduler: scheduler, log: logEntry}, nil
}

// Start 运行调度器，应在单独的 goroutine 中调用
func (s *Scheduler) Start() {
	s.log.Info("Asynq scheduler starting...")
	if err := s.scheduler.Run(); err != nil {
		if !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, asynq.ErrServerClosed) {
			s.log.Errorf("Asynq scheduler Run() failed: %v", err)
		} else {
			s.log.Info("Asynq scheduler stopped.")
		}
	}
}

func (s *Scheduler) Shutdown() {
	s.scheduler.Shutdown()
	s.log.Info("Asynq scheduler shut down.")
}
