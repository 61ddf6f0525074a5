package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

const (
	// BaseScore 每个有效答案的基础分
	BaseScore = 10
	// UniqueBonus 该话题下唯一有效答案的额外加分
	UniqueBonus = 5
)

// SubmitAnswers 合并玩家本回合的答案（topicID -> 文本）并标记已提交。
// 先校验全部话题再写入，失败时房间不会被部分修改。
func (r *Room) SubmitAnswers(playerID uuid.UUID, answers map[uuid.UUID]string, now time.Time) error {
	if err := requireState("submit answers", StatePlaying, r.State); err != nil {
		return err
	}
	round := r.ActiveRound()
	if round == nil {
		return ErrRoundNotActive
	}
	player := r.GetPlayer(playerID)
	if player == nil {
		return ErrPlayerNotFound
	}
	for topicID := range answers {
		if r.GetTopic(topicID) == nil {
			return ErrTopicNotFound
		}
	}
	for topicID, text := range answers {
		if _, err := round.SubmitAnswer(playerID, topicID, text, now); err != nil {
			return err
		}
	}
	player.AnswerSubmitted = true
	return nil
}

// CastVote 记录一票。必须处于投票阶段，投票者需在房间内且不能给自己的答案投票。
func (r *Room) CastVote(voterID, answerID uuid.UUID, isValid bool, now time.Time) error {
	if err := requireState("cast a vote", StateVoting, r.State); err != nil {
		return err
	}
	if r.GetPlayer(voterID) == nil {
		return ErrNotInRoom
	}
	round := r.CurrentRound()
	if round == nil {
		return ErrAnswerNotFound
	}
	answer := round.GetAnswer(answerID)
	if answer == nil {
		return ErrAnswerNotFound
	}
	if answer.PlayerID == voterID {
		return ErrSelfVote
	}
	answer.AddVote(voterID, isValid, now)
	return nil
}

// AllVotesCast 每个在线玩家都已对所有他人答案投票时为 true。
// 本回合没有答案时返回 false，由房主或截止任务结束投票。
func (r *Room) AllVotesCast() bool {
	if r.State != StateVoting {
		return false
	}
	round := r.CurrentRound()
	if round == nil || len(round.Answers) == 0 {
		return false
	}
	voters := 0
	for _, p := range r.Players {
		if !p.IsConnected {
			continue
		}
		voters++
		for i := range round.Answers {
			a := &round.Answers[i]
			if a.PlayerID != p.ID && !a.HasVoteFrom(p.ID) {
				return false
			}
		}
	}
	return voters > 0
}

// AnswerView 是投票界面中的一条答案及其计票。
type AnswerView struct {
	AnswerID     uuid.UUID `json:"answer_id"`
	PlayerID     uuid.UUID `json:"player_id"`
	PlayerName   string    `json:"player_name"`
	Text         string    `json:"text"`
	ValidVotes   int       `json:"valid_votes"`
	InvalidVotes int       `json:"invalid_votes"`
	IsValid      bool      `json:"is_valid"`
}

// VoteGroup 是同一话题下的所有答案。
type VoteGroup struct {
	TopicID   uuid.UUID    `json:"topic_id"`
	TopicName string       `json:"topic_name"`
	Answers   []AnswerView `json:"answers"`
}

// VoteGroups 按房间话题顺序分组当前回合的答案，没有答案的话题也会出现。
func (r *Room) VoteGroups() []VoteGroup {
	round := r.CurrentRound()
	groups := make([]VoteGroup, 0, len(r.Topics))
	for _, t := range r.Topics {
		group := VoteGroup{TopicID: t.ID, TopicName: t.Name, Answers: []AnswerView{}}
		if round != nil {
			for i := range round.Answers {
				a := &round.Answers[i]
				if a.TopicID != t.ID {
					continue
				}
				valid, invalid := a.VoteCounts()
				view := AnswerView{
					AnswerID:     a.ID,
					PlayerID:     a.PlayerID,
					Text:         a.Text,
					ValidVotes:   valid,
					InvalidVotes: invalid,
					IsValid:      a.IsVotedValid(),
				}
				if p := r.GetPlayer(a.PlayerID); p != nil {
					view.PlayerName = p.Name
				}
				group.Answers = append(group.Answers, view)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

// CalculateScores 计算当前回合每名玩家的得分，不修改房间。
// 答案需多数票有效且以回合字母开头才计分；同一话题下文本唯一（忽略大小写和首尾空白）的有效答案额外加分。
func (r *Room) CalculateScores() map[uuid.UUID]int {
	scores := make(map[uuid.UUID]int, len(r.Players))
	round := r.CurrentRound()
	if round == nil {
		return scores
	}

	counted := make([]*Answer, 0, len(round.Answers))
	occurrences := make(map[uuid.UUID]map[string]int)
	for i := range round.Answers {
		a := &round.Answers[i]
		if !a.IsVotedValid() || !a.MatchesLetter(round.Letter) {
			continue
		}
		counted = append(counted, a)
		byText, ok := occurrences[a.TopicID]
		if !ok {
			byText = make(map[string]int)
			occurrences[a.TopicID] = byText
		}
		byText[normalize(a.Text)]++
	}

	for _, a := range counted {
		points := BaseScore
		if occurrences[a.TopicID][normalize(a.Text)] == 1 {
			points += UniqueBonus
		}
		scores[a.PlayerID] += points
	}
	return scores
}

// FinishVoting 结算当前回合分数并结束投票阶段，返回本回合得分。
func (r *Room) FinishVoting() (map[uuid.UUID]int, error) {
	if err := requireState("finish voting", StateVoting, r.State); err != nil {
		return nil, err
	}
	scores := r.CalculateScores()
	for i := range r.Players {
		r.Players[i].Score += scores[r.Players[i].ID]
	}
	if err := r.EndVoting(); err != nil {
		return nil, err
	}
	return scores, nil
}

// Leaderboard 按分数降序返回玩家，同分按加入顺序
func (r *Room) Leaderboard() []Player {
	out := make([]Player, len(r.Players))
	copy(out, r.Players)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
