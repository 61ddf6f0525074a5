package dto

import "github.com/google/uuid"

// SettingsRequest 为空的字段保持原值
type SettingsRequest struct {
	MaxPlayers            *int     `json:"max_players" binding:"omitempty,min=2,max=20"`
	RoundDurationSeconds  *int     `json:"round_duration_seconds" binding:"omitempty,min=10,max=600"`
	VotingDurationSeconds *int     `json:"voting_duration_seconds" binding:"omitempty,min=10,max=600"`
	MaxRounds             *int     `json:"max_rounds" binding:"omitempty,min=1,max=20"`
	Topics                []string `json:"topics" binding:"omitempty,dive,topicname"`
}

type CreateRoomRequest struct {
	HostName         string          `json:"host_name" binding:"required,playername"`
	UseDefaultTopics bool            `json:"use_default_topics"`
	CustomTopics     []string        `json:"custom_topics" binding:"omitempty,dive,topicname"`
	TopicIDs         []uuid.UUID     `json:"topic_ids"`
	Settings         SettingsRequest `json:"settings"`
}

type JoinRoomRequest struct {
	PlayerName string `json:"player_name" binding:"required,playername"`
}

type SubmitAnswersRequest struct {
	Answers map[uuid.UUID]string `json:"answers" binding:"required"`
}

type CastVotesRequest struct {
	Votes []VoteItem `json:"votes" binding:"required,min=1,dive"`
}

type CreateTopicRequest struct {
	Name string `json:"name" binding:"required,topicname"`
}

// RoomSessionResponse 创建或加入房间后返回给玩家的会话信息
type RoomSessionResponse struct {
	Room     interface{} `json:"room"`
	PlayerID uuid.UUID   `json:"player_id"`
	Token    string      `json:"token"`
}
