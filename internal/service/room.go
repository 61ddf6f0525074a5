package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stop-game/internal/domain"
	"stop-game/internal/repository"
)

const maxCodeAttempts = 10

// 可配置范围
const (
	minPlayersLimit = domain.MinPlayersToStart
	maxPlayersLimit = 20
	minDuration     = 10
	maxDuration     = 600
	maxRoundsLimit  = 20
)

// RoomService 房间会话对外的全部操作
type RoomService struct {
	session
	topics repository.TopicRepository
}

// NewRoomService topics 可以为 nil，此时使用内置默认话题
func NewRoomService(
	store repository.RoomStore,
	locker repository.Locker,
	topics repository.TopicRepository,
	notifier Notifier,
	dispatcher Dispatcher,
	opts Options,
) *RoomService {
	return &RoomService{
		session: newSession(store, locker, notifier, dispatcher, opts),
		topics:  topics,
	}
}

// SettingsInput 为 nil 的字段保持原值
type SettingsInput struct {
	MaxPlayers            *int     `json:"max_players"`
	RoundDurationSeconds  *int     `json:"round_duration_seconds"`
	VotingDurationSeconds *int     `json:"voting_duration_seconds"`
	MaxRounds             *int     `json:"max_rounds"`
	Topics                []string `json:"topics"` // 非 nil 时整体替换话题列表
}

// CreateRoomInput 创建房间参数
type CreateRoomInput struct {
	HostName         string
	ConnectionID     string
	UseDefaultTopics bool
	CustomTopics     []string
	CatalogTopicIDs  []uuid.UUID
	Settings         SettingsInput
}

// CreateRoom 创建房间并让创建者作为房主加入
func (s *RoomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*domain.Room, *domain.Player, error) {
	logCtx := logrus.WithField("host_name", in.HostName)
	if err := validatePlayerName(in.HostName); err != nil {
		return nil, nil, err
	}

	code, err := s.generateUniqueRoomCode(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate room code")
		return nil, nil, err
	}

	now := s.now()
	room := domain.NewRoom(code, domain.DefaultSettings(), s.opts.RoomTTL, now)
	if err := applySettings(room, in.Settings, 1); err != nil {
		return nil, nil, err
	}

	host := domain.NewPlayer(strings.TrimSpace(in.HostName), in.ConnectionID, now)
	room.AddPlayer(host)

	topics, err := s.resolveTopics(ctx, host.ID, in)
	if err != nil {
		return nil, nil, err
	}
	room.ReplaceTopics(topics)

	if err := s.saveRoom(ctx, room); err != nil {
		logCtx.WithError(err).Error("Failed to save new room")
		return nil, nil, err
	}
	s.indexConnection(ctx, in.ConnectionID, code)

	logCtx.WithFields(logrus.Fields{"room_code": code, "player_id": host.ID}).Info("Room created")
	return room, room.GetPlayer(host.ID), nil
}

func (s *RoomService) resolveTopics(ctx context.Context, hostID uuid.UUID, in CreateRoomInput) ([]domain.Topic, error) {
	var topics []domain.Topic
	useDefaults := in.UseDefaultTopics || (len(in.CustomTopics) == 0 && len(in.CatalogTopicIDs) == 0)
	if useDefaults {
		defaults, err := s.defaultTopics(ctx)
		if err != nil {
			return nil, err
		}
		topics = append(topics, defaults...)
	}
	for _, id := range in.CatalogTopicIDs {
		if s.topics == nil {
			return nil, domain.ErrTopicNotFound
		}
		topic, err := s.topics.FindByID(ctx, id)
		if err != nil {
			return nil, mapRepoError(err, domain.ErrTopicNotFound, "find topic")
		}
		topics = append(topics, *topic)
	}
	for _, name := range in.CustomTopics {
		host := hostID
		topics = append(topics, domain.NewTopic(name, false, &host))
	}
	topics = domain.UniqueTopics(topics)
	if len(topics) == 0 {
		return nil, validationError("a room needs at least one topic")
	}
	return topics, nil
}

func (s *RoomService) defaultTopics(ctx context.Context) ([]domain.Topic, error) {
	if s.topics == nil {
		return domain.DefaultTopics(), nil
	}
	topics, err := s.topics.FindDefaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default topics: %w", err)
	}
	if len(topics) == 0 {
		return domain.DefaultTopics(), nil
	}
	return topics, nil
}

// generateUniqueRoomCode 生成房间码并对照存储检查冲突
func (s *RoomService) generateUniqueRoomCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := domain.RandomRoomCode()
		if err != nil {
			return "", err
		}
		exists, err := s.store.RoomExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
		if !exists {
			return code, nil
		}
		logrus.WithField("room_code", code).Debug("Room code collision, retrying")
	}
	return "", ErrCodeGenerationFail
}

// JoinRoom 加入房间。同一连接重复加入时直接返回已有玩家。
func (s *RoomService) JoinRoom(ctx context.Context, code, name, connectionID string) (*domain.Room, *domain.Player, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "connection_id": connectionID})

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	if existing := room.GetPlayerByConnectionID(connectionID); existing != nil {
		logCtx.Debug("Connection already in room, join is a no-op")
		return room, existing, nil
	}
	if err := validatePlayerName(name); err != nil {
		return nil, nil, err
	}
	if room.State != domain.StateWaiting {
		return nil, nil, &domain.StateMismatchError{Action: "join", Want: domain.StateWaiting, Got: room.State}
	}
	if !room.CanJoin() {
		return nil, nil, domain.ErrRoomFull
	}

	player := domain.NewPlayer(strings.TrimSpace(name), connectionID, s.now())
	room.AddPlayer(player)
	if err := s.saveRoom(ctx, room); err != nil {
		return nil, nil, err
	}
	s.indexConnection(ctx, connectionID, code)

	s.broadcastRoom(ctx, room)
	s.notifyChat(ctx, code, fmt.Sprintf("%s joined the room", player.Name))
	logCtx.WithField("player_id", player.ID).Info("Player joined room")
	return room, room.GetPlayer(player.ID), nil
}

// Reconnect 为玩家绑定新的连接标识
func (s *RoomService) Reconnect(ctx context.Context, code string, playerID uuid.UUID, connectionID string) (*domain.Room, error) {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	player := room.GetPlayer(playerID)
	if player == nil {
		return nil, domain.ErrPlayerNotFound
	}
	previous := player.ConnectionID
	player.Connect(connectionID)
	if err := s.saveRoom(ctx, room); err != nil {
		return nil, err
	}
	if previous != "" && previous != connectionID {
		s.removeConnection(ctx, previous)
	}
	s.indexConnection(ctx, connectionID, code)

	s.broadcastRoom(ctx, room)
	logrus.WithFields(logrus.Fields{"room_code": code, "player_id": playerID}).Info("Player reconnected")
	return room, nil
}

// Disconnect 标记连接对应的玩家离线，不移除玩家
func (s *RoomService) Disconnect(ctx context.Context, connectionID string) error {
	code, err := s.store.LookupConnection(ctx, connectionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("look up connection: %w", err)
	}
	defer s.removeConnection(ctx, connectionID)

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil
		}
		return err
	}
	player := room.GetPlayerByConnectionID(connectionID)
	if player == nil {
		return nil
	}
	player.Disconnect()
	if err := s.saveRoom(ctx, room); err != nil {
		return err
	}
	s.broadcastRoom(ctx, room)
	logrus.WithFields(logrus.Fields{"room_code": code, "player_id": player.ID}).Info("Player disconnected")
	return nil
}

// LeaveRoom 移除玩家；房间为空时删除房间
func (s *RoomService) LeaveRoom(ctx context.Context, code string, playerID uuid.UUID) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "player_id": playerID})

	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	player := room.GetPlayer(playerID)
	if player == nil {
		return domain.ErrPlayerNotFound
	}
	name, connectionID := player.Name, player.ConnectionID
	room.RemovePlayer(playerID)
	if connectionID != "" {
		s.removeConnection(ctx, connectionID)
	}

	if room.IsEmpty() {
		if err := s.store.DeleteRoom(ctx, code); err != nil {
			return fmt.Errorf("delete room %s: %w", code, err)
		}
		logCtx.Info("Last player left, room deleted")
		return nil
	}

	if err := s.saveRoom(ctx, room); err != nil {
		return err
	}
	s.broadcastRoom(ctx, room)
	s.notifyChat(ctx, code, fmt.Sprintf("%s left the room", name))
	logCtx.Info("Player left room")
	return nil
}

// UpdateSettings 只有房主在等待状态下可以修改配置
func (s *RoomService) UpdateSettings(ctx context.Context, code string, playerID uuid.UUID, in SettingsInput) (*domain.Room, error) {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if !room.IsHost(playerID) {
		return nil, domain.ErrNotHost
	}
	if room.State != domain.StateWaiting {
		return nil, &domain.StateMismatchError{Action: "update settings", Want: domain.StateWaiting, Got: room.State}
	}
	if err := applySettings(room, in, len(room.Players)); err != nil {
		return nil, err
	}
	if in.Topics != nil {
		topics := make([]domain.Topic, 0, len(in.Topics))
		for _, name := range in.Topics {
			host := playerID
			topics = append(topics, domain.NewTopic(name, false, &host))
		}
		topics = domain.UniqueTopics(topics)
		if len(topics) == 0 {
			return nil, validationError("a room needs at least one topic")
		}
		room.ReplaceTopics(topics)
	}

	if err := s.saveRoom(ctx, room); err != nil {
		return nil, err
	}
	s.broadcastRoom(ctx, room)
	logrus.WithFields(logrus.Fields{"room_code": code, "settings": room.Settings}).Info("Room settings updated")
	return room, nil
}

const maxPlayerNameLength = 30

func validatePlayerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > maxPlayerNameLength {
		return validationError("player name must be 1-%d characters", maxPlayerNameLength)
	}
	return nil
}

// applySettings 校验后写入配置，任何一项非法时不修改房间
func applySettings(room *domain.Room, in SettingsInput, playerCount int) error {
	next := room.Settings
	if in.MaxPlayers != nil {
		minAllowed := minPlayersLimit
		if playerCount > minAllowed {
			minAllowed = playerCount
		}
		if *in.MaxPlayers < minAllowed || *in.MaxPlayers > maxPlayersLimit {
			return validationError("max_players must be between %d and %d", minAllowed, maxPlayersLimit)
		}
		next.MaxPlayers = *in.MaxPlayers
	}
	if in.RoundDurationSeconds != nil {
		if *in.RoundDurationSeconds < minDuration || *in.RoundDurationSeconds > maxDuration {
			return validationError("round_duration_seconds must be between %d and %d", minDuration, maxDuration)
		}
		next.RoundDurationSeconds = *in.RoundDurationSeconds
	}
	if in.VotingDurationSeconds != nil {
		if *in.VotingDurationSeconds < minDuration || *in.VotingDurationSeconds > maxDuration {
			return validationError("voting_duration_seconds must be between %d and %d", minDuration, maxDuration)
		}
		next.VotingDurationSeconds = *in.VotingDurationSeconds
	}
	if in.MaxRounds != nil {
		if *in.MaxRounds < 1 || *in.MaxRounds > maxRoundsLimit {
			return validationError("max_rounds must be between 1 and %d", maxRoundsLimit)
		}
		next.MaxRounds = *in.MaxRounds
	}
	room.Settings = next
	return nil
}

// StartRound 房主开始新回合，并安排回合截止任务
func (s *RoomService) StartRound(ctx context.Context, code string, playerID uuid.UUID) (*domain.Room, error) {
	var started *domain.Room
	err := s.withRoomLock(ctx, code, func(room *domain.Room) error {
		if !room.IsHost(playerID) {
			return domain.ErrNotHost
		}
		letter, err := domain.RandomLetter()
		if err != nil {
			return err
		}
		round, err := room.StartNewRound(letter, s.now())
		if err != nil {
			return err
		}
		if err := s.saveRoom(ctx, room); err != nil {
			return err
		}

		s.broadcastRoom(ctx, room)
		s.broadcast(ctx, code, EventRoundStarted, RoundStartedPayload{
			RoundID:         round.ID,
			Letter:          round.Letter,
			StartedAt:       round.StartedAt,
			DurationSeconds: room.Settings.RoundDurationSeconds,
		})
		s.notifyChat(ctx, code, fmt.Sprintf("Round %d started with letter %s!", len(room.Rounds), round.Letter))

		if err := s.dispatcher.ScheduleRoundDeadline(ctx, code, round.ID, room.Settings.RoundDuration()); err != nil {
			logrus.WithFields(logrus.Fields{"room_code": code, "round_id": round.ID}).
				WithError(err).Warn("Failed to schedule round deadline")
		}
		started = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"room_code": code, "rounds": len(started.Rounds)}).Info("Round started")
	return started, nil
}

// SubmitAnswers 做前置校验后把提交交给后台任务，锁等待不阻塞玩家连接
func (s *RoomService) SubmitAnswers(ctx context.Context, code string, playerID uuid.UUID, answers map[uuid.UUID]string) error {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	if room.GetPlayer(playerID) == nil {
		return domain.ErrNotInRoom
	}
	if room.State != domain.StatePlaying || room.ActiveRound() == nil {
		return domain.ErrRoundNotActive
	}
	for topicID := range answers {
		if room.GetTopic(topicID) == nil {
			return domain.ErrTopicNotFound
		}
	}
	cmd := SubmitAnswersCommand{RoomCode: code, PlayerID: playerID, Answers: answers}
	if err := s.dispatcher.EnqueueAnswerSubmission(ctx, cmd); err != nil {
		return fmt.Errorf("enqueue answer submission: %w", err)
	}
	return nil
}

// StopRound 房主强制结束当前回合
func (s *RoomService) StopRound(ctx context.Context, code string, playerID uuid.UUID) (*domain.Room, error) {
	var stopped *domain.Room
	err := s.withRoomLock(ctx, code, func(room *domain.Room) error {
		if !room.IsHost(playerID) {
			return domain.ErrNotHost
		}
		if err := s.closeRound(ctx, room, StopReasonHost); err != nil {
			return err
		}
		stopped = room
		return nil
	})
	return stopped, err
}

// ExpireRound 回合截止任务调用。回合已经结束或已被替换时什么都不做。
func (s *RoomService) ExpireRound(ctx context.Context, code string, roundID uuid.UUID) error {
	return s.withRoomLock(ctx, code, func(room *domain.Room) error {
		round := room.ActiveRound()
		if room.State != domain.StatePlaying || round == nil || round.ID != roundID {
			logrus.WithFields(logrus.Fields{"room_code": code, "round_id": roundID}).Debug("Round already closed, deadline ignored")
			return nil
		}
		return s.closeRound(ctx, room, StopReasonTimeout)
	})
}

// VoteInput 一张选票
type VoteInput struct {
	AnswerID uuid.UUID `json:"answer_id" binding:"required"`
	IsValid  bool      `json:"is_valid"`
}

// CastVotes 记录投票（不加锁，后写覆盖）。全部投完时自动结束投票阶段。
func (s *RoomService) CastVotes(ctx context.Context, code string, voterID uuid.UUID, votes []VoteInput) (*domain.Room, error) {
	if len(votes) == 0 {
		return nil, validationError("at least one vote is required")
	}
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, v := range votes {
		if err := room.CastVote(voterID, v.AnswerID, v.IsValid, now); err != nil {
			return nil, err
		}
	}
	if err := s.saveRoom(ctx, room); err != nil {
		return nil, err
	}

	round := room.CurrentRound()
	for _, v := range votes {
		answer := round.GetAnswer(v.AnswerID)
		valid, invalid := answer.VoteCounts()
		s.broadcast(ctx, code, EventVoteUpdate, VoteUpdatePayload{
			VoterID:      voterID,
			AnswerID:     answer.ID,
			ValidVotes:   valid,
			InvalidVotes: invalid,
		})
	}

	if !room.AllVotesCast() {
		s.broadcastRoom(ctx, room)
		return room, nil
	}

	logrus.WithField("room_code", code).Info("All votes cast, finishing voting phase")
	finished, err := s.finishVotingFor(ctx, code, round.ID)
	if errors.Is(err, domain.ErrLockUnavailable) {
		// 截止任务或房主会结束投票
		logrus.WithField("room_code", code).Warn("Room lock unavailable, automatic voting finish skipped")
		return room, nil
	}
	if err != nil {
		return nil, err
	}
	if finished == nil {
		return room, nil
	}
	return finished, nil
}

// finishVotingFor 在锁内结束指定回合的投票；投票已结束时返回 nil 房间
func (s *RoomService) finishVotingFor(ctx context.Context, code string, roundID uuid.UUID) (*domain.Room, error) {
	var finished *domain.Room
	err := s.withRoomLock(ctx, code, func(room *domain.Room) error {
		round := room.CurrentRound()
		if room.State != domain.StateVoting || round == nil || round.ID != roundID {
			return nil
		}
		if err := s.finishVoting(ctx, room); err != nil {
			return err
		}
		finished = room
		return nil
	})
	return finished, err
}

// FinishVotingPhase 房主结束投票阶段并结算分数
func (s *RoomService) FinishVotingPhase(ctx context.Context, code string, playerID uuid.UUID) (*domain.Room, error) {
	var finished *domain.Room
	err := s.withRoomLock(ctx, code, func(room *domain.Room) error {
		if !room.IsHost(playerID) {
			return domain.ErrNotHost
		}
		if err := s.finishVoting(ctx, room); err != nil {
			return err
		}
		finished = room
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"room_code": code, "state": finished.State}).Info("Voting phase finished")
	return finished, nil
}

// ExpireVoting 投票截止任务调用，幂等
func (s *RoomService) ExpireVoting(ctx context.Context, code string, roundID uuid.UUID) error {
	_, err := s.finishVotingFor(ctx, code, roundID)
	return err
}

// VotingData 当前回合按话题分组的答案与计票
func (s *RoomService) VotingData(ctx context.Context, code string) ([]domain.VoteGroup, error) {
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.State != domain.StateVoting {
		return nil, &domain.StateMismatchError{Action: "read voting data", Want: domain.StateVoting, Got: room.State}
	}
	return room.VoteGroups(), nil
}

// SendChat 转发玩家聊天消息
func (s *RoomService) SendChat(ctx context.Context, code string, playerID uuid.UUID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return validationError("message must not be empty")
	}
	room, err := s.loadRoom(ctx, code)
	if err != nil {
		return err
	}
	player := room.GetPlayer(playerID)
	if player == nil {
		return domain.ErrNotInRoom
	}
	id := player.ID
	s.broadcast(ctx, code, EventChatMessage, ChatPayload{
		PlayerID:   &id,
		PlayerName: player.Name,
		Message:    message,
		SentAt:     s.now(),
	})
	return nil
}

// GetRoom 读取房间快照
func (s *RoomService) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	return s.loadRoom(ctx, code)
}

// GetRoomByConnection 按连接标识查找房间
func (s *RoomService) GetRoomByConnection(ctx context.Context, connectionID string) (*domain.Room, error) {
	code, err := s.store.LookupConnection(ctx, connectionID)
	if err != nil {
		return nil, mapRepoError(err, domain.ErrRoomNotFound, "look up connection")
	}
	return s.loadRoom(ctx, code)
}

// ListActiveRooms 返回未过期的房间
func (s *RoomService) ListActiveRooms(ctx context.Context) ([]*domain.Room, error) {
	rooms, err := s.store.ListActiveRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active rooms: %w", err)
	}
	now := s.now()
	active := make([]*domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if !r.IsExpired(now) {
			active = append(active, r)
		}
	}
	return active, nil
}

// PurgeExpiredRooms 删除已过期的房间及其连接索引，返回删除数量
func (s *RoomService) PurgeExpiredRooms(ctx context.Context) (int, error) {
	rooms, err := s.store.ListActiveRooms(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active rooms: %w", err)
	}
	now := s.now()
	purged := 0
	for _, r := range rooms {
		if !r.IsExpired(now) {
			continue
		}
		if err := s.store.DeleteRoom(ctx, r.Code); err != nil {
			return purged, fmt.Errorf("delete expired room %s: %w", r.Code, err)
		}
		for _, p := range r.Players {
			if p.ConnectionID != "" {
				s.removeConnection(ctx, p.ConnectionID)
			}
		}
		purged++
	}
	if purged > 0 {
		logrus.WithField("purged", purged).Info("Expired rooms purged")
	}
	return purged, nil
}

// 连接索引失败不影响主流程
func (s *RoomService) indexConnection(ctx context.Context, connectionID, code string) {
	if connectionID == "" {
		return
	}
	if err := s.store.IndexConnection(ctx, connectionID, code, s.opts.RoomTTL); err != nil {
		logrus.WithFields(logrus.Fields{"room_code": code, "connection_id": connectionID}).
			WithError(err).Warn("Failed to index connection")
	}
}

func (s *RoomService) removeConnection(ctx context.Context, connectionID string) {
	if err := s.store.RemoveConnection(ctx, connectionID); err != nil {
		logrus.WithField("connection_id", connectionID).WithError(err).Warn("Failed to remove connection index")
	}
}
