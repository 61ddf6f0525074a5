package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"stop-game/internal/service"
)

// Context 中保存的玩家身份键
const (
	ContextPlayerID = "player_id"
	ContextRoomCode = "room_code"
)

// TokenParser 解析玩家会话 token
type TokenParser interface {
	Parse(tokenStr string) (*service.PlayerClaims, error)
}

// ErrMissingAuthHeader 定义一个自定义错误，用于表示缺少 Authorization 头
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// PlayerAuth 返回一个 Gin 中间件，校验玩家 token 并把玩家 ID 和房间码写入 Context。
// WebSocket 握手无法设置请求头，因此也接受 token 查询参数。
func PlayerAuth(tokens TokenParser) gin.HandlerFunc {
	if tokens == nil {
		panic("TokenParser cannot be nil for PlayerAuth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				logrus.Warnf("Auth middleware: Malformed token format: %v", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}

		claims, err := tokens.Parse(tokenStr)
		if err != nil {
			logCtx := logrus.WithError(err)
			logCtx.Warn("Auth middleware: Invalid token")
			if errors.Is(err, jwt.ErrTokenExpired) {
				logCtx.Warn("Reason: Token is expired")
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextPlayerID, claims.PlayerID)
		c.Set(ContextRoomCode, claims.RoomCode)
		logrus.WithFields(logrus.Fields{
			"player_id": claims.PlayerID,
			"room_code": claims.RoomCode,
		}).Debug("Auth middleware: Player authenticated via JWT")

		c.Next()
	}
}

// RequireRoomMatch 拒绝 token 所属房间与路径参数 :code 不一致的请求
func RequireRoomMatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.ToUpper(c.Param("code"))
		if code != "" && code != c.GetString(ContextRoomCode) {
			logrus.WithFields(logrus.Fields{
				"token_room": c.GetString(ContextRoomCode),
				"path_room":  code,
			}).Warn("Auth middleware: Token does not belong to this room")
			c.JSON(http.StatusForbidden, gin.H{"error": "Token does not grant access to this room"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// PlayerFromContext 读取认证中间件写入的玩家身份
func PlayerFromContext(c *gin.Context) (uuid.UUID, string, bool) {
	raw, exists := c.Get(ContextPlayerID)
	if !exists {
		return uuid.Nil, "", false
	}
	playerID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, "", false
	}
	return playerID, c.GetString(ContextRoomCode), true
}

// extractToken 优先读取 Bearer 头，其次读取 token 查询参数
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if q := c.Query("token"); q != "" {
			return q, nil
		}
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}
