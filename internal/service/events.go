package service

import (
	"time"

	"github.com/google/uuid"

	"stop-game/internal/domain"
)

// 推送给房间订阅者的事件名
const (
	EventRoomUpdated      = "RoomUpdated"
	EventRoundStarted     = "RoundStarted"
	EventRoundStopped     = "RoundStopped"
	EventVoteStarted      = "VoteStarted"
	EventVoteUpdate       = "VoteUpdate"
	EventGameFinished     = "GameFinished"
	EventChatNotification = "ChatNotification"
	EventChatMessage      = "ChatMessage"
)

// RoomView 是对外返回的房间快照，附带派生的剩余时间
type RoomView struct {
	*domain.Room
	RoundTimeRemainingSeconds  int `json:"round_time_remaining_seconds"`
	VotingTimeRemainingSeconds int `json:"voting_time_remaining_seconds"`
}

func NewRoomView(room *domain.Room, now time.Time) RoomView {
	return RoomView{
		Room:                       room,
		RoundTimeRemainingSeconds:  int(room.RoundTimeRemaining(now).Seconds()),
		VotingTimeRemainingSeconds: int(room.VotingTimeRemaining(now).Seconds()),
	}
}

type RoundStartedPayload struct {
	RoundID         uuid.UUID `json:"round_id"`
	Letter          string    `json:"letter"`
	StartedAt       time.Time `json:"started_at"`
	DurationSeconds int       `json:"duration_seconds"`
}

type RoundStoppedPayload struct {
	RoundID uuid.UUID `json:"round_id"`
	Reason  string    `json:"reason"`
}

// 回合结束原因
const (
	StopReasonAllSubmitted = "all_submitted"
	StopReasonHost         = "host"
	StopReasonTimeout      = "timeout"
)

type VoteStartedPayload struct {
	RoundID         uuid.UUID          `json:"round_id"`
	Letter          string             `json:"letter"`
	DurationSeconds int                `json:"duration_seconds"`
	Groups          []domain.VoteGroup `json:"groups"`
}

type VoteUpdatePayload struct {
	VoterID      uuid.UUID `json:"voter_id"`
	AnswerID     uuid.UUID `json:"answer_id"`
	ValidVotes   int       `json:"valid_votes"`
	InvalidVotes int       `json:"invalid_votes"`
}

type GameFinishedPayload struct {
	Leaderboard []domain.Player `json:"leaderboard"`
}

type ChatPayload struct {
	PlayerID   *uuid.UUID `json:"player_id,omitempty"`
	PlayerName string     `json:"player_name,omitempty"`
	Message    string     `json:"message"`
	SentAt     time.Time  `json:"sent_at"`
}
