package dto

import (
	"encoding/json"

	"github.com/google/uuid"

	"stop-game/internal/service"
)

// 客户端经 WebSocket 发来的消息类型
const (
	MessageChat          = "chat"
	MessageStartRound    = "start_round"
	MessageSubmitAnswers = "submit_answers"
	MessageStopRound     = "stop_round"
	MessageCastVotes     = "cast_votes"
	MessageFinishVoting  = "finish_voting"
	MessageLeave         = "leave"
)

// ClientMessage 表示客户端 WebSocket 消息的外层结构
type ClientMessage struct {
	Type    string          `json:"type" binding:"required,oneof=chat start_round submit_answers stop_round cast_votes finish_voting leave"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ChatMessage struct {
	Message string `json:"message" binding:"required,max=500"`
}

// SubmitAnswersMessage 键为话题 ID
type SubmitAnswersMessage struct {
	Answers map[uuid.UUID]string `json:"answers" binding:"required"`
}

type CastVotesMessage struct {
	Votes []VoteItem `json:"votes" binding:"required,min=1,dive"`
}

type VoteItem struct {
	AnswerID uuid.UUID `json:"answer_id" binding:"required"`
	IsValid  bool      `json:"is_valid"`
}

// ServerEvent 表示推送给客户端的事件
type ServerEvent struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

// ErrorDTO 表示只发给出错客户端的错误消息
type ErrorDTO struct {
	Event   string `json:"event"`
	Request string `json:"request,omitempty"`
	Message string `json:"message"`
}

// EventError 错误消息的事件名
const EventError = "error"

// ToVoteInputs 把传输层的选票转换为服务层输入
func ToVoteInputs(items []VoteItem) []service.VoteInput {
	votes := make([]service.VoteInput, 0, len(items))
	for _, v := range items {
		votes = append(votes, service.VoteInput{AnswerID: v.AnswerID, IsValid: v.IsValid})
	}
	return votes
}
