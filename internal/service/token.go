package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// PlayerClaims 把请求绑定到 (房间码, 玩家)
type PlayerClaims struct {
	PlayerID uuid.UUID `json:"player_id"`
	RoomCode string    `json:"room_code"`
	jwt.RegisteredClaims
}

// TokenService 签发与校验玩家会话 token
type TokenService struct {
	secret []byte
	expiry time.Duration
}

// NewTokenService expiryHours <= 0 时默认 24 小时
func NewTokenService(secret string, expiryHours int) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret cannot be empty")
	}
	if expiryHours <= 0 {
		expiryHours = 24
	}
	return &TokenService{
		secret: []byte(secret),
		expiry: time.Duration(expiryHours) * time.Hour,
	}, nil
}

func (s *TokenService) Issue(roomCode string, playerID uuid.UUID) (string, error) {
	now := time.Now()
	claims := PlayerClaims{
		PlayerID: playerID,
		RoomCode: roomCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   playerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign player token: %w", err)
	}
	return token, nil
}

// Parse 校验签名与过期时间，失败时返回包装了 ErrInvalidToken 的错误
func (s *TokenService) Parse(tokenStr string) (*PlayerClaims, error) {
	claims := &PlayerClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.PlayerID == uuid.Nil || claims.RoomCode == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
