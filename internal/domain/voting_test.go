package domain_test

import (
	"testing"
	"time"

	"stop-game/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// playingRoom 两个话题、两名玩家，回合字母为 letter
func playingRoom(t *testing.T, letter rune, names ...string) *domain.Room {
	t.Helper()
	room := newRoomWithPlayers(t, names...)
	room.ReplaceTopics([]domain.Topic{
		domain.NewTopic("Animal", true, nil),
		domain.NewTopic("Color", true, nil),
	})
	_, err := room.StartNewRound(letter, now)
	require.NoError(t, err)
	return room
}

func TestSubmitAnswers_ReplacesSamePair(t *testing.T) {
	room := playingRoom(t, 'C', "Alice", "Bob")
	alice := room.Players[0].ID
	animal := room.Topics[0].ID

	require.NoError(t, room.SubmitAnswers(alice, map[uuid.UUID]string{animal: "Cow"}, now))
	first := room.CurrentRound().AnswerFor(alice, animal).ID
	require.NoError(t, room.SubmitAnswers(alice, map[uuid.UUID]string{animal: "Cat"}, now))

	answers := room.CurrentRound().AnswersByPlayer(alice)
	require.Len(t, answers, 1, "同一 (玩家, 话题) 只能有一个答案")
	assert.Equal(t, "Cat", answers[0].Text)
	assert.Equal(t, first, answers[0].ID, "替换应保留答案 id")
	assert.True(t, room.Players[0].AnswerSubmitted)
}

func TestSubmitAnswers_RejectedAfterRoundEnds(t *testing.T) {
	room := playingRoom(t, 'C', "Alice", "Bob")
	alice := room.Players[0].ID
	animal := room.Topics[0].ID
	require.NoError(t, room.SubmitAnswers(alice, map[uuid.UUID]string{animal: "Cat"}, now))
	require.NoError(t, room.EndCurrentRound(now))

	err := room.SubmitAnswers(alice, map[uuid.UUID]string{animal: "Cow"}, now)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, "Cat", room.CurrentRound().AnswerFor(alice, animal).Text)

	_, err = room.CurrentRound().SubmitAnswer(alice, animal, "Cow", now)
	assert.ErrorIs(t, err, domain.ErrRoundNotActive)
}

func TestSubmitAnswers_UnknownTopicOrPlayer(t *testing.T) {
	room := playingRoom(t, 'C', "Alice", "Bob")
	alice := room.Players[0].ID

	err := room.SubmitAnswers(alice, map[uuid.UUID]string{
		room.Topics[0].ID: "Cat",
		uuid.New():        "Cow",
	}, now)
	assert.ErrorIs(t, err, domain.ErrTopicNotFound)
	assert.Empty(t, room.CurrentRound().Answers, "校验失败时不应写入任何答案")
	assert.False(t, room.Players[0].AnswerSubmitted)

	err = room.SubmitAnswers(uuid.New(), map[uuid.UUID]string{room.Topics[0].ID: "Cat"}, now)
	assert.ErrorIs(t, err, domain.ErrPlayerNotFound)
}

func TestAnswer_MajorityValidity(t *testing.T) {
	cases := []struct {
		name           string
		valid, invalid int
		want           bool
	}{
		{"2 有效 1 无效", 2, 1, true},
		{"1 有效 2 无效", 1, 2, false},
		{"无票默认有效", 0, 0, true},
		{"平票有效", 1, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			answer := domain.Answer{ID: uuid.New(), PlayerID: uuid.New()}
			for i := 0; i < tc.valid; i++ {
				answer.AddVote(uuid.New(), true, now)
			}
			for i := 0; i < tc.invalid; i++ {
				answer.AddVote(uuid.New(), false, now)
			}
			assert.Equal(t, tc.want, answer.IsVotedValid())
		})
	}
}

func TestAnswer_AddVoteOverwrites(t *testing.T) {
	answer := domain.Answer{ID: uuid.New(), PlayerID: uuid.New(), TopicID: uuid.New()}
	voter := uuid.New()

	answer.AddVote(voter, true, now)
	answer.AddVote(voter, false, now)

	require.Len(t, answer.Votes, 1, "同一投票者重复投票应覆盖")
	assert.False(t, answer.Votes[0].IsValid)
	assert.Equal(t, answer.PlayerID, answer.Votes[0].AnswerOwnerID)
	assert.Equal(t, answer.TopicID, answer.Votes[0].TopicID)
}

func TestAnswer_MatchesLetter(t *testing.T) {
	answer := domain.Answer{Text: "  cat "}
	assert.True(t, answer.MatchesLetter("C"))
	assert.False(t, answer.MatchesLetter("D"))
	assert.False(t, (&domain.Answer{Text: "   "}).MatchesLetter("C"))
}

func TestCastVote_Rules(t *testing.T) {
	room := playingRoom(t, 'C', "Alice", "Bob")
	alice, bob := room.Players[0].ID, room.Players[1].ID
	animal := room.Topics[0].ID
	require.NoError(t, room.SubmitAnswers(alice, map[uuid.UUID]string{animal: "Cat"}, now))
	answerID := room.CurrentRound().AnswerFor(alice, animal).ID

	assert.ErrorIs(t, room.CastVote(bob, answerID, true, now), domain.ErrInvalidState, "投票阶段之前不能投票")

	require.NoError(t, room.EndCurrentRound(now))
	assert.ErrorIs(t, room.CastVote(alice, answerID, true, now), domain.ErrSelfVote)
	assert.ErrorIs(t, room.CastVote(uuid.New(), answerID, true, now), domain.ErrNotInRoom)
	assert.ErrorIs(t, room.CastVote(bob, uuid.New(), true, now), domain.ErrAnswerNotFound)
	require.NoError(t, room.CastVote(bob, answerID, false, now))
	assert.False(t, room.CurrentRound().GetAnswer(answerID).IsVotedValid())
}

func TestAllVotesCast(t *testing.T) {
	room := playingRoom(t, 'C', "Alice", "Bob")
	alice, bob := room.Players[0].ID, room.Players[1].ID
	animal := room.Topics[0].ID
	require.NoError(t, room.SubmitAnswers(alice, map[uuid.UUID]string{animal: "Cat"}, now))
	require.NoError(t, room.SubmitAnswers(bob, map[uuid.UUID]string{animal: "Cow"}, now))
	require.NoError(t, room.EndCurrentRound(now))
	round := room.CurrentRound()

	assert.False(t, room.AllVotesCast())
	require.NoError(t, room.CastVote(bob, round.AnswerFor(alice, animal).ID, true, now))
	assert.False(t, room.AllVotesCast())
	require.NoError(t, room.CastVote(alice, round.AnswerFor(bob, animal).ID, true, now))
	assert.True(t, room.AllVotesCast())
}

func TestCalculateScores_DuplicateAndUniqueAnswers(t *testing.T) {
	room := playingRoom(t, 'C', "A", "B")
	a, b := room.Players[0].ID, room.Players[1].ID
	animal, color := room.Topics[0].ID, room.Topics[1].ID

	require.NoError(t, room.SubmitAnswers(a, map[uuid.UUID]string{animal: "Cat"}, now))
	require.NoError(t, room.SubmitAnswers(b, map[uuid.UUID]string{animal: " cat ", color: "Cyan"}, now))
	require.NoError(t, room.EndCurrentRound(now))

	scores, err := room.FinishVoting()
	require.NoError(t, err)

	assert.Equal(t, domain.BaseScore, scores[a], "重复答案只得基础分")
	assert.Equal(t, domain.BaseScore+domain.BaseScore+domain.UniqueBonus, scores[b])
	assert.Equal(t, 10, room.Players[0].Score)
	assert.Equal(t, 25, room.Players[1].Score)
	assert.Equal(t, domain.StateWaiting, room.State)
	assert.Equal(t, "B", room.Leaderboard()[0].Name)
}

func TestCalculateScores_InvalidAndWrongLetterEarnNothing(t *testing.T) {
	room := playingRoom(t, 'C', "A", "B", "C")
	a, b, c := room.Players[0].ID, room.Players[1].ID, room.Players[2].ID
	animal, color := room.Topics[0].ID, room.Topics[1].ID

	require.NoError(t, room.SubmitAnswers(a, map[uuid.UUID]string{animal: "Cat", color: "Blue"}, now))
	require.NoError(t, room.SubmitAnswers(b, map[uuid.UUID]string{animal: "Crab"}, now))
	require.NoError(t, room.EndCurrentRound(now))
	crab := room.CurrentRound().AnswerFor(b, animal).ID
	require.NoError(t, room.CastVote(a, crab, false, now))
	require.NoError(t, room.CastVote(c, crab, false, now))

	scores := room.CalculateScores()

	assert.Equal(t, domain.BaseScore+domain.UniqueBonus, scores[a], "Blue 不以 C 开头，不计分")
	assert.Zero(t, scores[b], "多数判定无效的答案不计分")
	assert.Zero(t, scores[c])
}

func TestFinishVoting_EndsGameAtMaxRounds(t *testing.T) {
	room := playingRoom(t, 'C', "A", "B")
	room.Settings.MaxRounds = 1
	require.NoError(t, room.EndCurrentRound(now))

	_, err := room.FinishVoting()
	require.NoError(t, err)
	assert.Equal(t, domain.StateFinished, room.State)

	_, err = room.FinishVoting()
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestVoteGroups_FollowTopicOrder(t *testing.T) {
	room := playingRoom(t, 'C', "Alice", "Bob")
	alice := room.Players[0].ID
	color := room.Topics[1].ID
	require.NoError(t, room.SubmitAnswers(alice, map[uuid.UUID]string{color: "Cyan"}, now))
	require.NoError(t, room.EndCurrentRound(now.Add(time.Second)))

	groups := room.VoteGroups()

	require.Len(t, groups, 2)
	assert.Equal(t, "Animal", groups[0].TopicName)
	assert.Empty(t, groups[0].Answers)
	require.Len(t, groups[1].Answers, 1)
	assert.Equal(t, "Alice", groups[1].Answers[0].PlayerName)
	assert.True(t, groups[1].Answers[0].IsValid)
}
