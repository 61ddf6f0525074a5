package domain

import (
	"time"

	"github.com/google/uuid"
)

// Player 是房间内的一名玩家。ConnectionID 在重连时会被改写。
// 新玩家视为在线，直到其连接关闭。
type Player struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	ConnectionID    string    `json:"connection_id"`
	Score           int       `json:"score"`
	IsConnected     bool      `json:"is_connected"`
	JoinedAt        time.Time `json:"joined_at"`
	AnswerSubmitted bool      `json:"answer_submitted"`
}

func NewPlayer(name, connectionID string, now time.Time) Player {
	return Player{
		ID:           uuid.New(),
		Name:         name,
		ConnectionID: connectionID,
		IsConnected:  true,
		JoinedAt:     now.UTC(),
	}
}

// Connect 绑定新的连接标识并标记为在线
func (p *Player) Connect(connectionID string) {
	p.ConnectionID = connectionID
	p.IsConnected = true
}

// Disconnect 只清除在线标记，保留玩家和分数
func (p *Player) Disconnect() {
	p.IsConnected = false
}
