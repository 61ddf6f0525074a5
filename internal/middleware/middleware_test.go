package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stop-game/internal/middleware"
	"stop-game/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(t *testing.T) (*gin.Engine, *service.TokenService) {
	t.Helper()
	tokens, err := service.NewTokenService("test-secret", 1)
	require.NoError(t, err)

	r := gin.New()
	r.GET("/rooms/:code", middleware.PlayerAuth(tokens), middleware.RequireRoomMatch(), func(c *gin.Context) {
		playerID, code, ok := middleware.PlayerFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"player_id": playerID, "room_code": code})
	})
	return r, tokens
}

func TestPlayerAuth_AcceptsBearerToken(t *testing.T) {
	// Arrange
	r, tokens := newAuthRouter(t)
	playerID := uuid.New()
	token, err := tokens.Issue("ABC123", playerID)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/rooms/ABC123", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	// Act
	r.ServeHTTP(w, req)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), playerID.String())
}

func TestPlayerAuth_AcceptsQueryToken(t *testing.T) {
	r, tokens := newAuthRouter(t)
	token, err := tokens.Issue("ABC123", uuid.New())
	require.NoError(t, err)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rooms/ABC123?token="+token, nil))

	assert.Equal(t, http.StatusOK, w.Code, "WebSocket 握手使用查询参数传递 token")
}

func TestPlayerAuth_RejectsMissingAndMalformed(t *testing.T) {
	r, _ := newAuthRouter(t)

	cases := map[string]string{
		"missing":    "",
		"not bearer": "Token abc",
		"garbage":    "Bearer not-a-jwt",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rooms/ABC123", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestPlayerAuth_RejectsTokenSignedWithOtherSecret(t *testing.T) {
	r, _ := newAuthRouter(t)
	other, err := service.NewTokenService("another-secret", 1)
	require.NoError(t, err)
	token, err := other.Issue("ABC123", uuid.New())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/rooms/ABC123", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoomMatch_RejectsOtherRoom(t *testing.T) {
	r, tokens := newAuthRouter(t)
	token, err := tokens.Issue("ABC123", uuid.New())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/rooms/XYZ789", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code, "token 只能访问自己所在的房间")
}

// countingLimiter 在第 limit 次之后报告超限
type countingLimiter struct {
	counts map[string]int
	err    error
}

func (l *countingLimiter) CheckRateLimit(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.counts[key]++
	return l.counts[key] > limit, nil
}

func TestRateLimit_BlocksAfterLimit(t *testing.T) {
	// Arrange
	limiter := &countingLimiter{counts: map[string]int{}}
	r := gin.New()
	r.GET("/ping", middleware.RateLimit(limiter, 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	// Act
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		codes = append(codes, w.Code)
	}

	// Assert
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_LimiterFailure(t *testing.T) {
	limiter := &countingLimiter{err: errors.New("redis down")}
	r := gin.New()
	r.GET("/ping", middleware.RateLimit(limiter, 2, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimit_PanicsOnInvalidConfig(t *testing.T) {
	assert.Panics(t, func() { middleware.RateLimit(nil, 1, time.Second) })
	assert.Panics(t, func() { middleware.RateLimit(&countingLimiter{}, 0, time.Second) })
	assert.Panics(t, func() { middleware.RateLimit(&countingLimiter{}, 1, 0) })
}
