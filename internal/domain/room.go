package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoomState 房间生命周期状态
type RoomState string

const (
	StateWaiting  RoomState = "waiting"
	StatePlaying  RoomState = "playing"
	StateVoting   RoomState = "voting"
	StateFinished RoomState = "finished"
)

const (
	// RoomCodeLength 房间码长度，字符集见 RoomCodeAlphabet
	RoomCodeLength   = 6
	RoomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// DefaultRoomTTL 房间从创建开始的固定存活时间
	DefaultRoomTTL = 2 * time.Hour

	MinPlayersToStart = 2
)

// Settings 是房间的游戏配置。
type Settings struct {
	MaxPlayers            int `json:"max_players"`
	RoundDurationSeconds  int `json:"round_duration_seconds"`
	VotingDurationSeconds int `json:"voting_duration_seconds"`
	MaxRounds             int `json:"max_rounds"`
}

// DefaultSettings 返回默认游戏配置。
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:            8,
		RoundDurationSeconds:  60,
		VotingDurationSeconds: 30,
		MaxRounds:             5,
	}
}

// RoundDuration / VotingDuration 把秒数转换为 time.Duration
func (s Settings) RoundDuration() time.Duration {
	return time.Duration(s.RoundDurationSeconds) * time.Second
}

func (s Settings) VotingDuration() time.Duration {
	return time.Duration(s.VotingDurationSeconds) * time.Second
}

// Room 是一局游戏会话的聚合根。
// Room 独占 Players、Topics、Rounds；Rounds 只追加，最后一个元素即当前回合。
type Room struct {
	ID         uuid.UUID  `json:"id"`
	Code       string     `json:"code"`
	HostUserID uuid.UUID  `json:"host_user_id"`
	Topics     []Topic    `json:"topics"`
	Players    []Player   `json:"players"`
	State      RoomState  `json:"state"`
	Rounds     []Round    `json:"rounds"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	Settings   Settings   `json:"settings"`
}

// NewRoom 创建处于 Waiting 状态的空房间。房间码由调用方在检查唯一性后赋值。
func NewRoom(code string, settings Settings, ttl time.Duration, now time.Time) *Room {
	room := &Room{
		ID:        uuid.New(),
		Code:      code,
		State:     StateWaiting,
		CreatedAt: now.UTC(),
		Settings:  settings,
		Topics:    []Topic{},
		Players:   []Player{},
		Rounds:    []Round{},
	}
	if ttl > 0 {
		expiresAt := room.CreatedAt.Add(ttl)
		room.ExpiresAt = &expiresAt
	}
	return room
}

// CanJoin 只有 Waiting 状态且未满员时允许加入
func (r *Room) CanJoin() bool {
	return r.State == StateWaiting && len(r.Players) < r.Settings.MaxPlayers
}

func (r *Room) IsHost(playerID uuid.UUID) bool { return r.HostUserID == playerID }

// GetPlayer 按 id 查找玩家，返回指向切片元素的指针以便原地修改。
func (r *Room) GetPlayer(playerID uuid.UUID) *Player {
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) GetPlayerByConnectionID(connectionID string) *Player {
	if connectionID == "" {
		return nil
	}
	for i := range r.Players {
		if r.Players[i].ConnectionID == connectionID {
			return &r.Players[i]
		}
	}
	return nil
}

func (r *Room) GetTopic(topicID uuid.UUID) *Topic {
	for i := range r.Topics {
		if r.Topics[i].ID == topicID {
			return &r.Topics[i]
		}
	}
	return nil
}

// AddPlayer 仅在 CanJoin 时追加玩家，否则不做任何修改。
// 第一个加入的玩家自动成为房主。
func (r *Room) AddPlayer(player Player) bool {
	if !r.CanJoin() {
		return false
	}
	r.Players = append(r.Players, player)
	if r.HostUserID == uuid.Nil {
		r.HostUserID = player.ID
	}
	return true
}

// RemovePlayer 移除玩家；房主离开时按加入顺序转移房主。
// 最后一名玩家离开后房间为空，由调用方删除。
func (r *Room) RemovePlayer(playerID uuid.UUID) bool {
	idx := -1
	for i := range r.Players {
		if r.Players[i].ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	r.HostUserID = NextHost(r.Players, r.HostUserID)
	return true
}

// NextHost 计算房主：当前房主仍在列表中则保持不变，否则取最早加入的玩家。
// 列表为空时返回 uuid.Nil。
func NextHost(players []Player, currentHost uuid.UUID) uuid.UUID {
	if len(players) == 0 {
		return uuid.Nil
	}
	for _, p := range players {
		if p.ID == currentHost {
			return currentHost
		}
	}
	return players[0].ID
}

// IsEmpty 房间没有玩家时应被删除
func (r *Room) IsEmpty() bool { return len(r.Players) == 0 }

// CurrentRound 返回最后一个回合，没有回合时返回 nil。
func (r *Room) CurrentRound() *Round {
	if len(r.Rounds) == 0 {
		return nil
	}
	return &r.Rounds[len(r.Rounds)-1]
}

// ActiveRound 返回仍在进行中的当前回合。
func (r *Room) ActiveRound() *Round {
	round := r.CurrentRound()
	if round == nil || !round.IsActive {
		return nil
	}
	return round
}

func (r *Room) CanStartNewRound() bool {
	return r.State == StateWaiting && len(r.Players) >= MinPlayersToStart
}

// StartNewRound 追加一个新回合并进入 Playing 状态，同时清空所有玩家的提交标记。
func (r *Room) StartNewRound(letter rune, now time.Time) (*Round, error) {
	if err := requireState("start a round", StateWaiting, r.State); err != nil {
		return nil, err
	}
	if len(r.Players) < MinPlayersToStart {
		return nil, ErrNotEnoughPlayers
	}
	r.Rounds = append(r.Rounds, NewRound(letter, now))
	r.ResetPlayerSubmissions()
	r.State = StatePlaying
	return r.CurrentRound(), nil
}

// EndCurrentRound 结束当前回合并进入 Voting 状态。
func (r *Room) EndCurrentRound(now time.Time) error {
	if err := requireState("end the round", StatePlaying, r.State); err != nil {
		return err
	}
	round := r.ActiveRound()
	if round == nil {
		return ErrRoundNotActive
	}
	round.End(now)
	r.State = StateVoting
	return nil
}

// EndVoting 达到回合上限则结束游戏，否则回到 Waiting 等待下一回合。
func (r *Room) EndVoting() error {
	if err := requireState("end voting", StateVoting, r.State); err != nil {
		return err
	}
	if len(r.Rounds) >= r.Settings.MaxRounds {
		r.State = StateFinished
	} else {
		r.State = StateWaiting
	}
	return nil
}

// IsExpired 墙钟时间超过过期时间后为 true
func (r *Room) IsExpired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// ConnectedPlayers 返回当前在线的玩家
func (r *Room) ConnectedPlayers() []Player {
	connected := make([]Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsConnected {
			connected = append(connected, p)
		}
	}
	return connected
}

// AllPlayersSubmitted 所有在线玩家都已提交时为 true。
// 没有在线玩家时返回 false，回合只能由房主或截止任务结束。
func (r *Room) AllPlayersSubmitted() bool {
	connected := 0
	for _, p := range r.Players {
		if !p.IsConnected {
			continue
		}
		connected++
		if !p.AnswerSubmitted {
			return false
		}
	}
	return connected > 0
}

func (r *Room) ResetPlayerSubmissions() {
	for i := range r.Players {
		r.Players[i].AnswerSubmitted = false
	}
}

// ReplaceTopics 用新的话题列表整体替换，按名称去重（忽略大小写）。
func (r *Room) ReplaceTopics(topics []Topic) {
	r.Topics = UniqueTopics(topics)
}

// AddTopics 追加话题，跳过同名话题。
func (r *Room) AddTopics(topics ...Topic) {
	r.Topics = UniqueTopics(append(r.Topics, topics...))
}

// RoundTimeRemaining 当前回合剩余时间，不在 Playing 状态时为 0
func (r *Room) RoundTimeRemaining(now time.Time) time.Duration {
	round := r.ActiveRound()
	if round == nil || r.State != StatePlaying {
		return 0
	}
	return remaining(round.StartedAt.Add(r.Settings.RoundDuration()), now)
}

// VotingTimeRemaining 投票阶段剩余时间，不在 Voting 状态时为 0
func (r *Room) VotingTimeRemaining(now time.Time) time.Duration {
	round := r.CurrentRound()
	if round == nil || r.State != StateVoting || round.EndedAt == nil {
		return 0
	}
	return remaining(round.EndedAt.Add(r.Settings.VotingDuration()), now)
}

func remaining(deadline, now time.Time) time.Duration {
	if left := deadline.Sub(now); left > 0 {
		return left
	}
	return 0
}
