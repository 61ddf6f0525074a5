package websocket

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	httpHandler "stop-game/internal/handler/http"
	"stop-game/internal/hub"
	"stop-game/internal/middleware"
	"stop-game/internal/service"
)

// WebSocketHandler 负责处理 WebSocket 升级请求和客户端注册
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	roomService *service.RoomService
}

// NewWebSocketHandler 创建 WebSocketHandler 实例。allowedOrigins 为空时接受任意来源。
func NewWebSocketHandler(hub *hub.Hub, roomService *service.RoomService, allowedOrigins []string) *WebSocketHandler {
	if hub == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         hub,
		roomService: roomService,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleConnection 处理 WebSocket 连接请求
// URL 格式: /ws/rooms/:code?token=...
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	// 1. 读取认证中间件写入的玩家身份
	playerID, code, ok := middleware.PlayerFromContext(c)
	if !ok {
		logrus.Warn("WS Handler: Player identity not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Player not authenticated"})
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_code": code, "player_id": playerID})

	// 2. 为本次连接绑定新的连接标识，顺便校验房间与玩家
	connectionID := uuid.NewString()
	if _, err := h.roomService.Reconnect(c.Request.Context(), code, playerID, connectionID); err != nil {
		logCtx.WithError(err).Warn("WS Handler: Failed to bind connection to player")
		httpHandler.HandleServiceError(c, err)
		return
	}
	logCtx = logCtx.WithField("connection_id", connectionID)

	// 3. 升级 HTTP 连接到 WebSocket，Upgrade 失败时已自行写入响应
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		if disconnectErr := h.roomService.Disconnect(c.Request.Context(), connectionID); disconnectErr != nil {
			logCtx.WithError(disconnectErr).Warn("WS Handler: Failed to roll back connection binding")
		}
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	// 4. 注册客户端并启动读写 goroutine
	client := hub.NewClient(h.hub, conn, code, playerID, connectionID)
	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", Client: client}) {
		logCtx.Error("WS Handler: Hub message channel full, failed to register client")
		client.CloseConn()
		if err := h.roomService.Disconnect(c.Request.Context(), connectionID); err != nil {
			logCtx.WithError(err).Warn("WS Handler: Failed to mark player disconnected")
		}
		return
	}
	client.Run()
	logCtx.Info("WS Handler: Client read/write pumps started")
}
