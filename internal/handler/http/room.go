package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stop-game/internal/domain"
	"stop-game/internal/dto"
	"stop-game/internal/middleware"
	"stop-game/internal/service"
)

// RoomHandler 封装了房间会话相关的 HTTP 处理逻辑
type RoomHandler struct {
	roomService *service.RoomService
	tokens      *service.TokenService
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, tokens *service.TokenService) *RoomHandler {
	if roomService == nil {
		panic("RoomService cannot be nil for RoomHandler")
	}
	if tokens == nil {
		panic("TokenService cannot be nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, tokens: tokens}
}

func roomCode(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("code")))
}

func view(room *domain.Room) service.RoomView {
	return service.NewRoomView(room, time.Now())
}

func toSettingsInput(req dto.SettingsRequest) service.SettingsInput {
	return service.SettingsInput{
		MaxPlayers:            req.MaxPlayers,
		RoundDurationSeconds:  req.RoundDurationSeconds,
		VotingDurationSeconds: req.VotingDurationSeconds,
		MaxRounds:             req.MaxRounds,
		Topics:                req.Topics,
	}
}

// sessionResponse 为玩家签发 token 并写入响应
func (h *RoomHandler) sessionResponse(c *gin.Context, status int, room *domain.Room, player *domain.Player) {
	token, err := h.tokens.Issue(room.Code, player.ID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, status, dto.RoomSessionResponse{
		Room:     view(room),
		PlayerID: player.ID,
		Token:    token,
	})
}

// CreateRoom POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req dto.CreateRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	room, host, err := h.roomService.CreateRoom(c.Request.Context(), service.CreateRoomInput{
		HostName:         req.HostName,
		UseDefaultTopics: req.UseDefaultTopics,
		CustomTopics:     req.CustomTopics,
		CatalogTopicIDs:  req.TopicIDs,
		Settings:         toSettingsInput(req.Settings),
	})
	if err != nil {
		logrus.WithError(err).Warn("Handler.CreateRoom: Failed to create room via service")
		HandleServiceError(c, err)
		return
	}
	h.sessionResponse(c, http.StatusCreated, room, host)
}

// JoinRoom POST /api/rooms/:code/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req dto.JoinRoomRequest
	if !bindJSON(c, &req) {
		return
	}
	room, player, err := h.roomService.JoinRoom(c.Request.Context(), roomCode(c), req.PlayerName, "")
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	h.sessionResponse(c, http.StatusOK, room, player)
}

// GetRoom GET /api/rooms/:code
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.GetRoom(c.Request.Context(), roomCode(c))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view(room))
}

// ListActiveRooms GET /api/rooms
func (h *RoomHandler) ListActiveRooms(c *gin.Context) {
	rooms, err := h.roomService.ListActiveRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	views := make([]service.RoomView, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, view(r))
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": views})
}

// 以下处理器都要求 PlayerAuth 与 RequireRoomMatch 中间件

func playerFrom(c *gin.Context) (uuid.UUID, string, bool) {
	playerID, code, ok := middleware.PlayerFromContext(c)
	if !ok {
		logrus.Warn("Handler: Player identity not found in context, middleware missing or failed?")
		ErrorResponse(c, http.StatusUnauthorized, "Player not authenticated")
		return uuid.Nil, "", false
	}
	return playerID, code, true
}

// UpdateSettings PATCH /api/rooms/:code/settings
func (h *RoomHandler) UpdateSettings(c *gin.Context) {
	playerID, code, ok := playerFrom(c)
	if !ok {
		return
	}
	var req dto.SettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.roomService.UpdateSettings(c.Request.Context(), code, playerID, toSettingsInput(req))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view(room))
}

// StartRound POST /api/rooms/:code/rounds
func (h *RoomHandler) StartRound(c *gin.Context) {
	playerID, code, ok := playerFrom(c)
	if !ok {
		return
	}
	room, err := h.roomService.StartRound(c.Request.Context(), code, playerID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view(room))
}

// SubmitAnswers POST /api/rooms/:code/answers
// 提交由后台任务处理，返回 202
func (h *RoomHandler) SubmitAnswers(c *gin.Context) {
	playerID, code, ok := playerFrom(c)
	if !ok {
		return
	}
	var req dto.SubmitAnswersRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.roomService.SubmitAnswers(c.Request.Context(), code, playerID, req.Answers); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusAccepted, gin.H{"message": "Answers accepted"})
}

// StopRound POST /api/rooms/:code/rounds/stop
func (h *RoomHandler) StopRound(c *gin.Context) {
	playerID, code, ok := playerFrom(c)
	if !ok {
		return
	}
	room, err := h.roomService.StopRound(c.Request.Context(), code, playerID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view(room))
}

// CastVotes POST /api/rooms/:code/votes
func (h *RoomHandler) CastVotes(c *gin.Context) {
	playerID, code, ok := playerFrom(c)
	if !ok {
		return
	}
	var req dto.CastVotesRequest
	if !bindJSON(c, &req) {
		return
	}
	room, err := h.roomService.CastVotes(c.Request.Context(), code, playerID, dto.ToVoteInputs(req.Votes))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view(room))
}

// VotingData GET /api/rooms/:code/votes
func (h *RoomHandler) VotingData(c *gin.Context) {
	_, code, ok := playerFrom(c)
	if !ok {
		return
	}
	groups, err := h.roomService.VotingData(c.Request.Context(), code)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"groups": groups})
}

// FinishVoting POST /api/rooms/:code/votes/finish
func (h *RoomHandler) FinishVoting(c *gin.Context) {
	playerID, code, ok := playerFrom(c)
	if !ok {
		return
	}
	room, err := h.roomService.FinishVotingPhase(c.Request.Context(), code, playerID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, view(room))
}

// SendChat POST /api/rooms/:code/chat
func (h *RoomHandler) SendChat(c *gin.Context) {
	playerID, code, ok := playerFrom(c)
	if !ok {
		return
	}
	var req dto.ChatMessage
	if !bindJSON(c, &req) {
		return
	}
	if err := h.roomService.SendChat(c.Request.Context(), code, playerID, req.Message); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LeaveRoom POST /api/rooms/:code/leave
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	playerID, code, ok := playerFrom(c)
	if !ok {
		return
	}
	if err := h.roomService.LeaveRoom(c.Request.Context(), code, playerID); err != nil {
		HandleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
