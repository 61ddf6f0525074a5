package tasks

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"stop-game/internal/service"
)

// 定义任务类型常量
const (
	TypeAnswerSubmission = "answer:submit"   // 串行化的答案提交
	TypeRoundDeadline    = "round:deadline"  // 回合到时强制结束
	TypeVotingDeadline   = "voting:deadline" // 投票到时自动结算
	TypeRoomCleanup      = "rooms:cleanup"   // 周期清理过期房间
)

// 队列名称
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// AnswerSubmissionPayload 答案提交任务的数据
type AnswerSubmissionPayload struct {
	Command service.SubmitAnswersCommand `json:"command"`
}

// DeadlinePayload 回合或投票截止任务的数据，按回合 id 保证幂等
type DeadlinePayload struct {
	RoomCode string    `json:"room_code"`
	RoundID  uuid.UUID `json:"round_id"`
}

// RoomCleanupPayload 周期清理任务，记录调度时间便于排查
type RoomCleanupPayload struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}

func NewAnswerSubmissionTask(cmd service.SubmitAnswersCommand) ([]byte, error) {
	return json.Marshal(AnswerSubmissionPayload{Command: cmd})
}

func NewDeadlineTask(roomCode string, roundID uuid.UUID) ([]byte, error) {
	return json.Marshal(DeadlinePayload{RoomCode: roomCode, RoundID: roundID})
}

func NewRoomCleanupTask() ([]byte, error) {
	return json.Marshal(RoomCleanupPayload{ScheduledAt: time.Now().UTC()})
}
