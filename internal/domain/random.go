package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// RandomLetter 从 A-Z 中均匀随机选择一个字母
func RandomLetter() (rune, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(26))
	if err != nil {
		return 0, fmt.Errorf("failed to pick round letter: %w", err)
	}
	return rune('A' + n.Int64()), nil
}

// RandomRoomCode 生成一个候选房间码，唯一性由调用方对照存储检查
func RandomRoomCode() (string, error) {
	b := make([]byte, RoomCodeLength)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i := range b {
		b[i] = RoomCodeAlphabet[int(b[i])%len(RoomCodeAlphabet)]
	}
	return string(b), nil
}
