package domain

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Round 是一个按字母计时的作答阶段，独占本回合的所有答案。
type Round struct {
	ID        uuid.UUID  `json:"id"`
	Letter    string     `json:"letter"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	IsActive  bool       `json:"is_active"`
	Answers   []Answer   `json:"answers"`
}

// Answer 是玩家在某个话题下提交的文本，独占针对它的投票。
type Answer struct {
	ID        uuid.UUID `json:"id"`
	PlayerID  uuid.UUID `json:"player_id"`
	TopicID   uuid.UUID `json:"topic_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Votes     []Vote    `json:"votes"`
}

// Vote 是投票者对一个答案有效性的判断。
type Vote struct {
	VoterID       uuid.UUID `json:"voter_id"`
	AnswerOwnerID uuid.UUID `json:"answer_owner_id"`
	TopicID       uuid.UUID `json:"topic_id"`
	IsValid       bool      `json:"is_valid"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewRound(letter rune, now time.Time) Round {
	return Round{
		ID:        uuid.New(),
		Letter:    string(unicode.ToUpper(letter)),
		StartedAt: now.UTC(),
		IsActive:  true,
		Answers:   []Answer{},
	}
}

// End 关闭回合并记录结束时间
func (r *Round) End(now time.Time) {
	ended := now.UTC()
	r.IsActive = false
	r.EndedAt = &ended
}

// SubmitAnswer 写入 (玩家, 话题) 的答案；已存在则替换文本，回合结束后拒绝。
// 替换时保留原答案 id，重复投递同一提交是幂等的。
func (r *Round) SubmitAnswer(playerID, topicID uuid.UUID, text string, now time.Time) (*Answer, error) {
	if !r.IsActive {
		return nil, ErrRoundNotActive
	}
	if existing := r.AnswerFor(playerID, topicID); existing != nil {
		existing.Text = text
		existing.CreatedAt = now.UTC()
		return existing, nil
	}
	r.Answers = append(r.Answers, Answer{
		ID:        uuid.New(),
		PlayerID:  playerID,
		TopicID:   topicID,
		Text:      text,
		CreatedAt: now.UTC(),
		Votes:     []Vote{},
	})
	return &r.Answers[len(r.Answers)-1], nil
}

func (r *Round) AnswerFor(playerID, topicID uuid.UUID) *Answer {
	for i := range r.Answers {
		if r.Answers[i].PlayerID == playerID && r.Answers[i].TopicID == topicID {
			return &r.Answers[i]
		}
	}
	return nil
}

func (r *Round) GetAnswer(answerID uuid.UUID) *Answer {
	for i := range r.Answers {
		if r.Answers[i].ID == answerID {
			return &r.Answers[i]
		}
	}
	return nil
}

// AnswersByPlayer 返回某玩家本回合的全部答案
func (r *Round) AnswersByPlayer(playerID uuid.UUID) []Answer {
	var out []Answer
	for _, a := range r.Answers {
		if a.PlayerID == playerID {
			out = append(out, a)
		}
	}
	return out
}

// MatchesLetter 非空且首字母（忽略大小写）与回合字母一致
func (a *Answer) MatchesLetter(letter string) bool {
	text := strings.TrimSpace(a.Text)
	if text == "" || letter == "" {
		return false
	}
	first := []rune(text)[0]
	return unicode.ToUpper(first) == unicode.ToUpper([]rune(letter)[0])
}

// AddVote 同一投票者重复投票时覆盖之前的判断。
func (a *Answer) AddVote(voterID uuid.UUID, isValid bool, now time.Time) {
	for i := range a.Votes {
		if a.Votes[i].VoterID == voterID {
			a.Votes[i].IsValid = isValid
			a.Votes[i].CreatedAt = now.UTC()
			return
		}
	}
	a.Votes = append(a.Votes, Vote{
		VoterID:       voterID,
		AnswerOwnerID: a.PlayerID,
		TopicID:       a.TopicID,
		IsValid:       isValid,
		CreatedAt:     now.UTC(),
	})
}

// VoteCounts 返回有效票和无效票数
func (a *Answer) VoteCounts() (valid, invalid int) {
	for _, v := range a.Votes {
		if v.IsValid {
			valid++
		} else {
			invalid++
		}
	}
	return valid, invalid
}

// IsVotedValid 简单多数，平票和无票都视为有效
func (a *Answer) IsVotedValid() bool {
	valid, invalid := a.VoteCounts()
	return valid >= invalid
}

// HasVoteFrom 投票者是否已对该答案投过票
func (a *Answer) HasVoteFrom(voterID uuid.UUID) bool {
	for _, v := range a.Votes {
		if v.VoterID == voterID {
			return true
		}
	}
	return false
}
